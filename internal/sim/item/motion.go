package item

import (
	"github.com/rs/zerolog"

	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/tasks"
)

const motionSlot = "motion"

// MotionConfig shapes settle and shrink motion.
type MotionConfig struct {
	Accel         float64
	Epsilon       float64
	StackOffset   model.Vec3
	ShrinkSeconds float64
}

// Releaser takes an item back once its shrink finishes.
type Releaser interface {
	Release(it *Item) bool
}

// Animator runs item motion as scheduler tasks, one motion slot per item.
type Animator struct {
	sched *tasks.Scheduler
	cfg   MotionConfig
	rel   Releaser
	log   zerolog.Logger
}

func NewAnimator(sched *tasks.Scheduler, cfg MotionConfig, rel Releaser, log zerolog.Logger) *Animator {
	return &Animator{sched: sched, cfg: cfg, rel: rel, log: log.With().Str("component", "motion").Logger()}
}

func motionKey(it *Item) tasks.Key {
	return tasks.Key{Owner: string(it.ID()), Slot: motionSlot}
}

// AttachToTarget settles it onto target at stackOrder and keeps it pinned there while the target lives.
// Any motion already running for it is replaced.
func (a *Animator) AttachToTarget(it *Item, target model.Anchor, stackOrder int) {
	a.sched.Spawn(motionKey(it), tasks.KindSettle, a.newSettle(it, target, stackOrder, false))
}

// MoveToTargetAndShrink settles it onto target, scales it to zero and releases it to its pool.
func (a *Animator) MoveToTargetAndShrink(it *Item, target model.Anchor) {
	a.sched.Spawn(motionKey(it), tasks.KindShrink, a.newSettle(it, target, 0, true))
}

// Attached reports whether a motion task (settling, pinned or shrinking) owns it.
func (a *Animator) Attached(it *Item) bool { return a.sched.Has(motionKey(it)) }

// Detach drops the motion slot without touching the item.
func (a *Animator) Detach(it *Item) { a.sched.Cancel(motionKey(it)) }

type settlePhase uint8

const (
	phaseApproach settlePhase = iota
	phasePinned
	phaseShrink
)

type settleTask struct {
	a      *Animator
	it     *Item
	gen    uint64
	target model.Anchor
	order  int
	shrink bool

	phase    settlePhase
	speed    float64
	maxDist  float64
	startRot model.Quat
	elapsed  float64
}

func (a *Animator) newSettle(it *Item, target model.Anchor, order int, shrink bool) *settleTask {
	return &settleTask{
		a:        a,
		it:       it,
		gen:      it.Generation(),
		target:   target,
		order:    order,
		shrink:   shrink,
		startRot: it.Transform.Rot,
	}
}

func (t *settleTask) stale() bool {
	return !t.it.Active() || t.it.Generation() != t.gen
}

func (t *settleTask) Step(dt float64) tasks.Wait {
	if t.stale() {
		return tasks.Done()
	}
	if t.phase == phaseShrink {
		return t.stepShrink(dt)
	}

	tr, ok := t.target.Transform()
	if !ok {
		t.a.log.Debug().Str("item", string(t.it.ID())).Msg("settle target gone")
		return tasks.Done()
	}
	dest := tr.Pos.Add(t.a.cfg.StackOffset.Scale(float64(t.order)))

	if t.phase == phasePinned {
		t.it.Transform = model.Transform{Pos: dest, Rot: tr.Rot}
		return tasks.Yield()
	}

	pos := t.it.Transform.Pos
	if d := pos.Dist(dest); d > t.maxDist {
		t.maxDist = d
	}
	t.speed += t.a.cfg.Accel * dt
	pos = pos.MoveTowards(dest, t.speed*dt)
	remaining := pos.Dist(dest)
	if remaining > t.maxDist {
		t.maxDist = remaining
	}

	if remaining <= t.a.cfg.Epsilon {
		t.it.Transform = model.Transform{Pos: dest, Rot: tr.Rot}
		if t.shrink {
			t.phase = phaseShrink
			return tasks.Yield()
		}
		t.phase = phasePinned
		return tasks.Yield()
	}

	frac := 1.0
	if t.maxDist > 0 {
		frac = 1 - remaining/t.maxDist
	}
	t.it.Transform = model.Transform{Pos: pos, Rot: model.Slerp(t.startRot, tr.Rot, frac)}
	return tasks.Yield()
}

func (t *settleTask) stepShrink(dt float64) tasks.Wait {
	t.elapsed += dt
	dur := t.a.cfg.ShrinkSeconds
	if dur <= 0 || t.elapsed >= dur {
		t.it.Scale = 0
		t.a.rel.Release(t.it)
		return tasks.Done()
	}
	t.it.Scale = 1 - t.elapsed/dur
	return tasks.Yield()
}

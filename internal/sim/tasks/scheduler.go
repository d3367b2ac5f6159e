package tasks

import (
	"fmt"

	"github.com/rs/zerolog"
)

const waitEpsilon = 1e-9

type entry struct {
	key       Key
	kind      Kind
	task      Task
	wait      Wait
	cancelled bool
}

// Scheduler advances every registered task once per tick. It is not safe for concurrent use;
// the owning world loop is the only caller.
type Scheduler struct {
	log     zerolog.Logger
	entries []*entry
	bySlot  map[Key]*entry
	faults  uint64
}

func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		log:    log.With().Str("component", "scheduler").Logger(),
		bySlot: map[Key]*entry{},
	}
}

// Spawn registers t under key, replacing (and stopping) whatever occupied that slot.
// A task spawned while Tick is running is first resumed on the following tick.
func (s *Scheduler) Spawn(key Key, kind Kind, t Task) {
	if t == nil {
		return
	}
	s.Cancel(key)
	e := &entry{key: key, kind: kind, task: t, wait: Yield()}
	s.entries = append(s.entries, e)
	s.bySlot[key] = e
}

// Cancel stops the task in key. Idempotent.
func (s *Scheduler) Cancel(key Key) {
	e := s.bySlot[key]
	if e == nil {
		return
	}
	delete(s.bySlot, key)
	e.cancelled = true
	if st, ok := e.task.(Stopper); ok {
		st.Stop()
	}
}

// CancelOwner stops every task belonging to owner, in spawn order.
func (s *Scheduler) CancelOwner(owner string) {
	for _, e := range s.entries {
		if e.key.Owner == owner && !e.cancelled && s.bySlot[e.key] == e {
			s.Cancel(e.key)
		}
	}
}

func (s *Scheduler) Has(key Key) bool {
	_, ok := s.bySlot[key]
	return ok
}

// Len is the number of live tasks.
func (s *Scheduler) Len() int { return len(s.bySlot) }

// Faults counts tasks dropped after a panic.
func (s *Scheduler) Faults() uint64 { return s.faults }

// Tick resumes every task whose suspension is satisfied, in spawn order.
func (s *Scheduler) Tick(dt float64) {
	n := len(s.entries)
	for i := 0; i < n; i++ {
		e := s.entries[i]
		if e.cancelled {
			continue
		}
		switch e.wait.kind {
		case waitFor:
			e.wait.left -= dt
			if e.wait.left > waitEpsilon {
				continue
			}
		case waitUntil:
			if !e.wait.until() {
				continue
			}
		}
		e.wait = s.resume(e, dt)
		if e.wait.kind == waitDone && !e.cancelled {
			e.cancelled = true
			if s.bySlot[e.key] == e {
				delete(s.bySlot, e.key)
			}
		}
	}
	s.compact()
}

func (s *Scheduler) resume(e *entry, dt float64) (w Wait) {
	defer func() {
		if r := recover(); r != nil {
			s.faults++
			s.log.Error().
				Str("owner", e.key.Owner).
				Str("slot", e.key.Slot).
				Str("kind", string(e.kind)).
				Str("panic", fmt.Sprint(r)).
				Msg("task panicked; dropped")
			w = Done()
		}
	}()
	return e.task.Step(dt)
}

func (s *Scheduler) compact() {
	live := s.entries[:0]
	for _, e := range s.entries {
		if !e.cancelled {
			live = append(live, e)
		}
	}
	for i := len(live); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = live
}

package item

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/tasks"
)

func newRig(t *testing.T) (*Pools, *tasks.Scheduler, *Animator) {
	t.Helper()
	log := zerolog.Nop()
	pools := NewPools(log)
	pools.Warm(Template{Kind: "ore", Value: 1}, 2)
	sched := tasks.NewScheduler(log)
	anim := NewAnimator(sched, MotionConfig{
		Accel:         30,
		Epsilon:       0.01,
		StackOffset:   model.Vec3{Y: 0.25},
		ShrinkSeconds: 0.5,
	}, pools, log)
	return pools, sched, anim
}

func TestAttachToTarget_SnapsToStackSlot(t *testing.T) {
	pools, sched, anim := newRig(t)
	it, err := pools.Acquire("ore", model.Zero, model.Identity)
	require.NoError(t, err)

	target := model.StaticAnchor{Pos: model.Vec3{X: 10}, Rot: model.YawQuat(90)}
	anim.AttachToTarget(it, target, 2)

	sched.Tick(0.5)
	assert.InDelta(t, 7.5, it.Pos().Len(), 1e-9, "first step moves speed*dt")
	assert.Less(t, model.Angle(it.Transform.Rot, target.Rot), model.Angle(model.Identity, target.Rot))

	sched.Tick(0.5)
	assert.Equal(t, model.Vec3{X: 10, Y: 0.5}, it.Pos())
	assert.Equal(t, target.Rot, it.Transform.Rot)
	assert.True(t, anim.Attached(it), "pinned while target lives")
}

func TestAttachToTarget_TargetGoneStopsInPlace(t *testing.T) {
	pools, sched, anim := newRig(t)
	it, _ := pools.Acquire("ore", model.Zero, model.Identity)

	alive := true
	target := model.AnchorFunc(func() (model.Transform, bool) {
		return model.Transform{Pos: model.Vec3{X: 10}, Rot: model.Identity}, alive
	})
	anim.AttachToTarget(it, target, 0)
	sched.Tick(0.5)
	where := it.Pos()

	alive = false
	sched.Tick(0.5)
	assert.Equal(t, where, it.Pos())
	assert.True(t, it.Active())
	assert.False(t, anim.Attached(it))
	assert.Equal(t, 0, sched.Len())
}

func TestMoveToTargetAndShrink_ReleasesToPool(t *testing.T) {
	pools, sched, anim := newRig(t)
	it, _ := pools.Acquire("ore", model.Vec3{X: 1}, model.Identity)

	anim.MoveToTargetAndShrink(it, model.StaticAnchor{Pos: model.Vec3{X: 1}, Rot: model.Identity})
	sched.Tick(0.25)
	assert.Equal(t, 1.0, it.Scale)
	sched.Tick(0.25)
	assert.InDelta(t, 0.5, it.Scale, 1e-12)
	sched.Tick(0.25)

	assert.False(t, it.Active())
	assert.Equal(t, 0.0, it.Scale)
	assert.Equal(t, map[string][2]int{"ore": {2, 0}}, pools.Stats())
}

func TestSettle_ReusedInstanceIsLeftAlone(t *testing.T) {
	pools, sched, anim := newRig(t)
	it, _ := pools.Acquire("ore", model.Zero, model.Identity)
	anim.AttachToTarget(it, model.StaticAnchor{Pos: model.Vec3{X: 10}, Rot: model.Identity}, 0)

	require.True(t, pools.Release(it))
	again, _ := pools.Acquire("ore", model.Vec3{Z: 3}, model.Identity)
	require.Same(t, it, again)

	sched.Tick(0.5)
	assert.Equal(t, model.Vec3{Z: 3}, again.Pos())
	assert.Equal(t, 0, sched.Len())
}

func TestRelease_ClearsOwner(t *testing.T) {
	pools, _, _ := newRig(t)
	it, _ := pools.Acquire("ore", model.Zero, model.Identity)
	it.SetOwner("worker-1")
	pools.Release(it)
	assert.Empty(t, it.Owner())

	_, err := pools.Acquire("gear", model.Zero, model.Identity)
	assert.ErrorIs(t, err, ErrNoPool)
}

package station

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/model"
)

func newTwoPhaseRig(t *testing.T) (*rig, *TwoPhaseStation) {
	r := newRig(t)
	r.host.prepTime = 1
	r.host.prodTime = 2
	s := NewTwoPhase(spec("sw-1"), r.host, r.env)
	s.Activate()
	r.fillQueue("ore")
	return r, s
}

func TestTwoPhase_MoveResetsPreparation(t *testing.T) {
	r, s := newTwoPhaseRig(t)
	p := r.agent("player", 5, false)
	assert.True(t, s.Workable())

	s.Enter("player")
	require.Equal(t, PhasePreparing, s.Phase())
	assert.False(t, s.Workable())

	r.tick(1, 0.5)
	assert.Equal(t, 0.5, s.PrepareProgress())

	p.moving = true
	r.tick(2, 0.5)
	assert.Equal(t, 0.0, s.PrepareProgress())
	assert.Equal(t, 1, r.rec.Count(events.PrepareReset))

	p.moving = false
	r.tick(1, 0.5)
	assert.Equal(t, 0.5, s.PrepareProgress())
	r.tick(1, 0.5)
	assert.Equal(t, PhaseOperating, s.Phase())
	assert.Equal(t, 0.0, s.PrepareProgress())
}

func TestTwoPhase_OperatingRunsUnattended(t *testing.T) {
	r, s := newTwoPhaseRig(t)
	p := r.agent("player", 5, false)

	s.Enter("player")
	r.tick(2, 0.5)
	require.Equal(t, PhaseOperating, s.Phase())

	s.Exit("player")
	assert.False(t, p.working)
	assert.Equal(t, PhaseOperating, s.Phase(), "operating is irreversible")

	r.tick(3, 0.5)
	assert.Equal(t, PhaseOperating, s.Phase())
	r.tick(1, 0.5)
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Equal(t, 0, r.host.queue.Len())
	assert.Equal(t, 1, r.host.output)
	assert.Equal(t, 0, r.sched.Len())
}

func TestTwoPhase_ExitWhilePreparingGoesIdle(t *testing.T) {
	r, s := newTwoPhaseRig(t)
	p := r.agent("player", 5, false)

	s.Enter("player")
	r.tick(1, 0.5)
	s.Exit("player")

	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Equal(t, 0.0, s.PrepareProgress())
	assert.False(t, p.working)
	assert.False(t, s.Reserved())
	assert.True(t, s.Workable())
}

func TestTwoPhase_TakeoverReleasesPreviousWorker(t *testing.T) {
	r, s := newTwoPhaseRig(t)
	first := r.agent("player", 5, false)
	second := r.agent("visitor", 5, false)

	s.Enter("player")
	r.tick(2, 0.5)
	require.Equal(t, PhaseOperating, s.Phase())

	s.Enter("visitor")
	assert.False(t, first.working)
	assert.True(t, second.working)
	assert.Equal(t, model.AgentID("visitor"), s.Worker())
	assert.Equal(t, model.AgentID("visitor"), s.ReservedBy())

	r.tick(4, 0.5)
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.False(t, second.working)
	assert.False(t, s.Reserved())
}

func TestTwoPhase_EmptyQueueStallsPreparation(t *testing.T) {
	r, s := newTwoPhaseRig(t)
	r.agent("player", 5, false)
	s.Enter("player")

	it, _ := r.host.queue.Pop()
	r.pools.Release(it)
	r.tick(4, 0.5)
	assert.Equal(t, PhasePreparing, s.Phase())
	assert.Equal(t, 0.0, s.PrepareProgress())
}

func TestTwoPhase_ZeroPrepareTimeStartsOperating(t *testing.T) {
	r, s := newTwoPhaseRig(t)
	r.host.prepTime = 0
	r.host.prodTime = 1
	p := r.agent("player", 5, false)

	s.Enter("player")
	require.Equal(t, PhasePreparing, s.Phase())
	r.tick(1, 0.5)
	assert.Equal(t, PhaseOperating, s.Phase())

	r.tick(2, 0.5)
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Equal(t, 1, s.Completed())
	assert.False(t, p.working)
	assert.False(t, s.Reserved())
}

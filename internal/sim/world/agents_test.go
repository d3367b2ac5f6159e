package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorysim.ai/internal/protocol"
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/station"
)

// mineLayout is one ore mine with the player parked away from it.
func mineLayout(workers ...AgentLayout) Layout {
	return Layout{
		WorldID: "mine",
		Facilities: []FacilityLayout{{
			ID:       "mine-1",
			Kind:     "ore_mine",
			Stations: []StationLayout{{ID: "mine-1/gen", Category: "generation", Pos: [3]float64{0, 0, 2}, Radius: 1.5}},
		}},
		Player:  &AgentLayout{ID: "player", Pos: [3]float64{10, 0, 10}},
		Workers: workers,
	}
}

func despawn(target string) []InputEnvelope {
	return []InputEnvelope{{AgentID: "player", Input: protocol.InputMsg{Action: protocol.ActionDespawnAgent, Target: target}}}
}

func pickUp(target string) []InputEnvelope {
	return []InputEnvelope{{AgentID: "player", Input: protocol.InputMsg{Action: protocol.ActionPickUp, Target: target}}}
}

func TestPlayerInOverlappingVolumesWorksOneStation(t *testing.T) {
	l := yardLayout(t)
	l.Player.Pos = [3]float64{9, 0, 2.5}
	w := newTestWorld(t, testTuning(), l)
	in, _ := w.Station("smelter-1/in")
	work, _ := w.Station("smelter-1/work")

	stepN(w, 3)
	assert.Equal(t, model.AgentID("player"), in.ReservedBy())
	assert.Empty(t, work.ReservedBy())
	assert.Empty(t, work.Occupant())
	assert.Zero(t, w.Metrics().Violations)

	// Stepping out of the insertion volume frees the player for the transformation station.
	p, _ := w.Agent("player")
	p.SetPos(model.Vec3{X: 10.5, Z: 3.5})
	w.StepOnce(nil)
	assert.Empty(t, in.ReservedBy())
	assert.Equal(t, model.AgentID("player"), work.Occupant())
	assert.Zero(t, w.Metrics().Violations)
}

func TestDespawnReleasesCarriedItemsAndReservations(t *testing.T) {
	w := newTestWorld(t, testTuning(), mineLayout(
		AgentLayout{ID: "near", Pos: [3]float64{1, 0, 2}},
		AgentLayout{ID: "far", Pos: [3]float64{20, 0, 2}},
	))
	log := &memTickLog{}
	audit := &memAudit{}
	w.SetTickLogger(log)
	w.SetAuditLogger(audit)
	st, _ := w.Station("mine-1/gen")

	stepN(w, 10)
	near, _ := w.Agent("near")
	require.Equal(t, 1, near.Stack().Len())
	require.Equal(t, 1, w.Pools().Stats()["ore"][1])

	w.StepOnce(despawn("near"))
	_, ok := w.Agent("near")
	assert.False(t, ok)
	assert.False(t, near.Alive())
	assert.Zero(t, w.Pools().Stats()["ore"][1], "carried ore went back to the pool")
	assert.Len(t, w.Agents(), 2)
	require.Len(t, log.events(events.AgentDespawned), 1)
	assert.Equal(t, 1, log.events(events.AgentDespawned)[0].Count)

	// The far worker is sent once the next ore is out, then despawned on the way.
	for i := 0; i < 20 && st.ReservedBy() != "far"; i++ {
		w.StepOnce(nil)
	}
	require.Equal(t, model.AgentID("far"), st.ReservedBy())
	far, _ := w.Agent("far")
	require.NotEmpty(t, far.Target())

	w.StepOnce(despawn("far"))
	assert.False(t, st.Reserved())
	assert.True(t, st.WantsWorker())
	assert.Empty(t, w.reg.Workers())

	stepN(w, 4)
	assert.Zero(t, w.Metrics().Violations)

	w.StepOnce(despawn("far"))
	require.Len(t, audit.entries, 3)
	assert.Empty(t, audit.entries[0].Reason)
	assert.Empty(t, audit.entries[1].Reason)
	assert.Equal(t, protocol.ErrInvalidTarget, audit.entries[2].Reason)
}

func TestDespawnedOccupantLeavesStation(t *testing.T) {
	l := mineLayout()
	l.Player.Pos = [3]float64{0, 0, 3}
	l.Workers = []AgentLayout{{ID: "worker-1", Pos: [3]float64{10, 0, 10}}}
	w := newTestWorld(t, testTuning(), l)
	st, _ := w.Station("mine-1/gen")

	w.StepOnce(nil)
	require.Equal(t, model.AgentID("player"), st.Occupant())

	w.StepOnce([]InputEnvelope{{AgentID: "worker-1", Input: protocol.InputMsg{Action: protocol.ActionDespawnAgent, Target: "player"}}})
	assert.Empty(t, st.Occupant())
	assert.False(t, st.Reserved())
	assert.Empty(t, w.inside["mine-1/gen"])
	assert.Zero(t, w.Metrics().Violations)
}

func TestPickUpNeedsReach(t *testing.T) {
	w := newTestWorld(t, testTuning(), mineLayout())
	st, _ := w.Station("mine-1/gen")
	gen := st.(*station.GenerationStation)
	p, _ := w.Agent("player")

	stepN(w, 9)
	_, held := gen.Held()
	require.True(t, held)

	w.StepOnce(pickUp("mine-1/gen"))
	assert.Zero(t, p.Stack().Len())
	_, held = gen.Held()
	assert.True(t, held)

	p.SetPos(model.Vec3{Z: 3})
	w.StepOnce(pickUp("mine-1/gen"))
	assert.Equal(t, 1, p.Stack().Len())
}

func TestPickUpLeavesReservedStationAlone(t *testing.T) {
	w := newTestWorld(t, testTuning(), mineLayout(AgentLayout{ID: "far", Pos: [3]float64{20, 0, 2}}))
	st, _ := w.Station("mine-1/gen")
	gen := st.(*station.GenerationStation)
	p, _ := w.Agent("player")

	stepN(w, 9)
	require.Equal(t, model.AgentID("far"), st.ReservedBy())

	p.SetPos(model.Vec3{Z: 3})
	w.StepOnce(pickUp("mine-1/gen"))
	assert.Zero(t, p.Stack().Len())
	_, held := gen.Held()
	assert.True(t, held)
	assert.Equal(t, model.AgentID("far"), st.ReservedBy())
}

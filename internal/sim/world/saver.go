package world

import (
	"sync"

	"factorysim.ai/internal/sim/facility"
	"factorysim.ai/internal/sim/model"
)

// MemorySaver keeps facility state in memory. Replays seed it from the run's start header so the
// rebuilt world starts from the same levels as the recorded one.
type MemorySaver struct {
	mu     sync.Mutex
	states map[model.FacilityID]facility.State
}

func NewMemorySaver(seed []facility.State) *MemorySaver {
	m := &MemorySaver{states: map[model.FacilityID]facility.State{}}
	for _, st := range seed {
		m.states[st.ID] = st
	}
	return m
}

func (m *MemorySaver) LoadFacility(id model.FacilityID) (facility.State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	return st, ok, nil
}

func (m *MemorySaver) SaveFacility(st facility.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.ID] = st
	return nil
}

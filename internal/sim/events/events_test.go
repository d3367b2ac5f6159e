package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_StampsTickAndDrains(t *testing.T) {
	var b Bus
	b.SetTick(7)
	b.Emit(Event{Type: ItemProduced})
	b.Emit(Event{Type: ItemInserted})
	assert.Equal(t, 2, b.Len())

	out := b.Drain()
	assert.Len(t, out, 2)
	assert.Equal(t, uint64(7), out[1].Tick)
	assert.Nil(t, b.Drain())
}

func TestRecorder_NilReceiverDropsEvents(t *testing.T) {
	var r *Recorder
	var ev Emitter = r
	assert.NotPanics(t, func() { ev.Emit(Event{Type: AgentState}) })
	assert.Equal(t, 0, r.Count(AgentState))
}

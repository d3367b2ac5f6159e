package inventory

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorysim.ai/internal/sim/item"
	"factorysim.ai/internal/sim/model"
)

func acquire(t *testing.T, p *item.Pools, kind model.ItemKind) *item.Item {
	t.Helper()
	it, err := p.Acquire(kind, model.Zero, model.Identity)
	require.NoError(t, err)
	return it
}

func TestStack_LIFOAndCapacity(t *testing.T) {
	p := item.NewPools(zerolog.Nop())
	p.Warm(item.Template{Kind: "ore"}, 3)
	p.Warm(item.Template{Kind: "ingot"}, 1)

	s := NewStack(2, "player")
	a := acquire(t, p, "ore")
	b := acquire(t, p, "ingot")
	c := acquire(t, p, "ore")

	require.True(t, s.Push(a))
	require.True(t, s.Push(b))
	assert.False(t, s.Push(c), "full stack refuses")
	assert.Empty(t, c.Owner())

	assert.Equal(t, model.AgentID("player"), a.Owner())
	assert.Equal(t, model.ItemKind("ingot"), s.TopKind())
	assert.False(t, s.Accepts("ingot"), "full")

	top, ok := s.Pop()
	require.True(t, ok)
	assert.Same(t, b, top)
	assert.Empty(t, b.Owner())
	assert.True(t, s.Accepts("ore"))
	assert.False(t, s.Accepts("ingot"), "top mismatch")
	assert.Equal(t, 1, s.Count(a.ID()))
}

func TestStack_LoweredCapKeepsItems(t *testing.T) {
	p := item.NewPools(zerolog.Nop())
	p.Warm(item.Template{Kind: "ore"}, 3)

	s := NewStack(3, "")
	for i := 0; i < 3; i++ {
		require.True(t, s.Push(acquire(t, p, "ore")))
	}
	s.SetCap(1)
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Full())

	_, ok := NewStack(0, "").Pop()
	assert.False(t, ok)
}

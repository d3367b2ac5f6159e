package station

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutput_PickUpSpendsCountAndShrinksAway(t *testing.T) {
	r := newRig(t)
	out := NewOutput(spec("out-1"), r.host, r.env)
	out.Activate()
	r.host.out = out
	p := r.agent("player", 5, false)

	assert.False(t, out.PickUp("player"))
	r.host.AddOutput(2)
	assert.True(t, out.Workable())

	require.True(t, out.PickUp("player"))
	assert.Equal(t, 1, out.Count())
	assert.Equal(t, 0, p.stack.Len(), "finished goods do not enter the stack")

	r.tick(8, 0.25)
	assert.Equal(t, [2]int{4, 0}, r.pools.Stats()["ingot"])
}

func TestOutput_OccupantCollectsEverything(t *testing.T) {
	r := newRig(t)
	out := NewOutput(spec("out-1"), r.host, r.env)
	out.Activate()
	r.agent("player", 5, false)
	out.Add(2)

	out.Enter("player")
	r.tick(1, 0.5)
	assert.Equal(t, 1, out.Count())
	r.tick(1, 0.5)
	assert.Equal(t, 0, out.Count())
	assert.Equal(t, 2, out.Collected())

	out.Add(1)
	r.tick(1, 0.5)
	assert.Equal(t, 0, out.Count(), "waiting occupant collects new goods")
}

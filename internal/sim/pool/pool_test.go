package pool

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorysim.ai/internal/sim/model"
)

type crate struct {
	Entity
	enabled, disabled int
}

func (c *crate) OnEnable()  { c.enabled++ }
func (c *crate) OnDisable() { c.disabled++ }

func newCratePool(t *testing.T) *Pool[*crate] {
	t.Helper()
	return New[*crate]("crate", func(model.EntityID) *crate { return &crate{} }, zerolog.Nop())
}

func TestPool_AcquireBeyondWarmGrows(t *testing.T) {
	p := newCratePool(t)
	p.Warm(2)
	grew := 0
	p.OnGrow(func(string, int) { grew++ })

	var got []*crate
	require.NotPanics(t, func() {
		for i := 0; i < 5; i++ {
			got = append(got, p.Acquire(model.Vec3{X: float64(i)}, model.Identity))
		}
	})
	assert.Equal(t, 5, p.Size())
	assert.Equal(t, 3, grew)
	assert.Equal(t, 5, p.ActiveLen())
	assert.Equal(t, 0, p.FreeLen())
	for _, c := range got {
		assert.True(t, c.Active())
	}
}

func TestPool_SizeNeverShrinks(t *testing.T) {
	p := newCratePool(t)
	p.Warm(1)
	last := p.Size()
	var held []*crate
	for i := 0; i < 20; i++ {
		if i%3 == 2 && len(held) > 0 {
			p.Release(held[0])
			held = held[1:]
		} else {
			held = append(held, p.Acquire(model.Zero, model.Identity))
		}
		require.GreaterOrEqual(t, p.Size(), last)
		require.Equal(t, p.Size(), p.ActiveLen()+p.FreeLen())
		last = p.Size()
	}
}

func TestPool_ReleaseThenAcquireRoundTrip(t *testing.T) {
	p := newCratePool(t)
	p.Warm(1)
	c := p.Acquire(model.Vec3{X: 1}, model.Identity)
	parent := c.ParentPool()

	require.True(t, p.Release(c))
	assert.False(t, c.Active())
	assert.Equal(t, 1, c.disabled)

	again := p.Acquire(model.Vec3{Y: 2}, model.Identity)
	assert.Same(t, c, again)
	assert.True(t, again.Active())
	assert.Equal(t, parent, again.ParentPool())
	assert.Equal(t, model.Vec3{Y: 2}, again.Transform.Pos)
	assert.Equal(t, 2, again.enabled)
}

func TestPool_DoubleReleaseIsNoop(t *testing.T) {
	p := newCratePool(t)
	p.Warm(1)
	c := p.Acquire(model.Zero, model.Identity)
	require.True(t, p.Release(c))
	assert.False(t, p.Release(c))
	assert.Equal(t, 1, p.FreeLen())
	assert.Equal(t, 0, p.ActiveLen())
}

func TestPool_ReleaseIntoForeignPoolIgnored(t *testing.T) {
	a := newCratePool(t)
	b := New[*crate]("other", func(model.EntityID) *crate { return &crate{} }, zerolog.Nop())
	a.Warm(1)
	b.Warm(1)
	c := a.Acquire(model.Zero, model.Identity)
	assert.False(t, b.Release(c))
	assert.True(t, c.Active())
	assert.Equal(t, 1, b.FreeLen())
}

func TestPool_AcquireUnwarmedPanics(t *testing.T) {
	p := newCratePool(t)
	assert.PanicsWithError(t, "pool: acquire before warm: crate", func() {
		p.Acquire(model.Zero, model.Identity)
	})
}

func TestSet_WarmTwiceAddsToSamePool(t *testing.T) {
	s := NewSet[*crate](zerolog.Nop())
	mk := func(model.EntityID) *crate { return &crate{} }
	p1 := s.Warm("ore", 2, mk)
	p2 := s.Warm("ore", 3, mk)
	assert.Same(t, p1, p2)
	assert.Equal(t, 5, p1.Size())
	assert.Nil(t, s.Get("missing"))
	assert.Equal(t, []string{"ore"}, s.Keys())
}

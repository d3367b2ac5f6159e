package item

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/pool"
)

var ErrNoPool = errors.New("no pool bound for item kind")

// Item is a pooled, carryable resource unit.
type Item struct {
	pool.Entity

	Kind  model.ItemKind
	Value int

	owner model.AgentID
}

func (it *Item) Owner() model.AgentID          { return it.owner }
func (it *Item) SetOwner(id model.AgentID)     { it.owner = id }
func (it *Item) ClearOwner()                   { it.owner = "" }
func (it *Item) Pos() model.Vec3               { return it.Transform.Pos }
func (it *Item) OwnedBy(id model.AgentID) bool { return id != "" && it.owner == id }

func (it *Item) OnDisable() { it.owner = "" }

// Template is what a pool needs to build instances of one kind.
type Template struct {
	Kind  model.ItemKind
	Value int
}

// Pools is the per-kind item allocator.
type Pools struct {
	set *pool.Set[*Item]
}

func NewPools(log zerolog.Logger) *Pools {
	return &Pools{set: pool.NewSet[*Item](log)}
}

func (p *Pools) OnGrow(fn pool.GrowFunc) { p.set.OnGrow(fn) }

func (p *Pools) Warm(t Template, count int) {
	p.set.Warm(string(t.Kind), count, func(model.EntityID) *Item {
		return &Item{Kind: t.Kind, Value: t.Value}
	})
}

func (p *Pools) Bound(kind model.ItemKind) bool { return p.set.Get(string(kind)) != nil }

func (p *Pools) Kinds() []string { return p.set.Keys() }

// Acquire activates one item of kind at pos.
func (p *Pools) Acquire(kind model.ItemKind, pos model.Vec3, rot model.Quat) (*Item, error) {
	pl := p.set.Get(string(kind))
	if pl == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPool, kind)
	}
	return pl.Acquire(pos, rot), nil
}

// Release returns it to the pool it came from.
func (p *Pools) Release(it *Item) bool {
	if it == nil {
		return false
	}
	pl := p.set.Get(it.ParentPool())
	if pl == nil {
		return false
	}
	return pl.Release(it)
}

// Stats reports size and active count per kind.
func (p *Pools) Stats() map[string][2]int {
	out := map[string][2]int{}
	for _, k := range p.set.Keys() {
		pl := p.set.Get(k)
		out[k] = [2]int{pl.Size(), pl.ActiveLen()}
	}
	return out
}

// EachActive visits every active item of every kind, kinds in sorted order.
func (p *Pools) EachActive(fn func(*Item)) {
	for _, k := range p.set.Keys() {
		p.set.Get(k).EachActive(fn)
	}
}

// Package pool is a fixed-size store of reusable entities. Pools grow by one instance when
// exhausted and never shrink.
package pool

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"factorysim.ai/internal/sim/model"
)

// ErrNotWarmed is the panic value for Acquire on a pool that was never warmed.
var ErrNotWarmed = errors.New("pool: acquire before warm")

// Entity is the pooled part of a member: identity, activation and the transform it was placed at.
type Entity struct {
	id     model.EntityID
	parent string
	active bool
	gen    uint64

	Transform model.Transform
	Scale     float64
}

func (e *Entity) ID() model.EntityID { return e.id }
func (e *Entity) Active() bool       { return e.active }

// ParentPool is the name of the pool the entity belongs to. It never changes after construction.
func (e *Entity) ParentPool() string { return e.parent }

// Generation increments on every Acquire so holders of a stale handle can tell a reused instance apart.
func (e *Entity) Generation() uint64 { return e.gen }

func (e *Entity) Base() *Entity { return e }

// Member is anything that embeds an Entity.
type Member interface {
	Base() *Entity
}

// Enabler members are notified after activation.
type Enabler interface{ OnEnable() }

// Disabler members are notified before deactivation.
type Disabler interface{ OnDisable() }

// GrowFunc observes overflow growth.
type GrowFunc func(pool string, size int)

// Pool is not safe for concurrent use.
type Pool[T Member] struct {
	name   string
	newFn  func(id model.EntityID) T
	free   []T
	active map[model.EntityID]T
	size   int
	warmed bool

	log    zerolog.Logger
	onGrow GrowFunc
}

func New[T Member](name string, newFn func(id model.EntityID) T, log zerolog.Logger) *Pool[T] {
	return &Pool[T]{
		name:   name,
		newFn:  newFn,
		active: map[model.EntityID]T{},
		log:    log.With().Str("pool", name).Logger(),
	}
}

// OnGrow installs an observer for overflow growth.
func (p *Pool[T]) OnGrow(fn GrowFunc) { p.onGrow = fn }

func (p *Pool[T]) Name() string   { return p.name }
func (p *Pool[T]) Size() int      { return p.size }
func (p *Pool[T]) FreeLen() int   { return len(p.free) }
func (p *Pool[T]) ActiveLen() int { return len(p.active) }
func (p *Pool[T]) Warmed() bool   { return p.warmed }

// Warm pre-allocates count inactive instances. Calling it again adds more.
func (p *Pool[T]) Warm(count int) {
	for i := 0; i < count; i++ {
		p.free = append(p.free, p.build())
	}
	p.warmed = true
}

func (p *Pool[T]) build() T {
	p.size++
	id := model.EntityID(fmt.Sprintf("%s#%06d", p.name, p.size))
	m := p.newFn(id)
	e := m.Base()
	e.id = id
	e.parent = p.name
	e.active = false
	e.Scale = 1
	return m
}

// Acquire activates a free instance at the given transform. When the free stack is empty the pool
// grows by one and logs a warning; it never fails.
func (p *Pool[T]) Acquire(pos model.Vec3, rot model.Quat) T {
	if !p.warmed {
		panic(fmt.Errorf("%w: %s", ErrNotWarmed, p.name))
	}
	var m T
	if n := len(p.free); n > 0 {
		m = p.free[n-1]
		var zero T
		p.free[n-1] = zero
		p.free = p.free[:n-1]
	} else {
		m = p.build()
		p.log.Warn().Int("size", p.size).Msg("pool exhausted; grew by one")
		if p.onGrow != nil {
			p.onGrow(p.name, p.size)
		}
	}
	e := m.Base()
	e.Transform = model.Transform{Pos: pos, Rot: rot}
	e.Scale = 1
	e.active = true
	e.gen++
	p.active[e.id] = m
	if en, ok := any(m).(Enabler); ok {
		en.OnEnable()
	}
	return m
}

// Release deactivates m and returns it to the free stack. Releasing a member of another pool or an
// already-free member is a no-op reported as false.
func (p *Pool[T]) Release(m T) bool {
	e := m.Base()
	if e.parent != p.name {
		p.log.Warn().Str("entity", string(e.id)).Str("parent", e.parent).Msg("release into foreign pool ignored")
		return false
	}
	if _, ok := p.active[e.id]; !ok {
		return false
	}
	if d, ok := any(m).(Disabler); ok {
		d.OnDisable()
	}
	delete(p.active, e.id)
	e.active = false
	p.free = append(p.free, m)
	return true
}

// Lookup returns an active member by id.
func (p *Pool[T]) Lookup(id model.EntityID) (T, bool) {
	m, ok := p.active[id]
	return m, ok
}

// EachActive visits active members in no particular order.
func (p *Pool[T]) EachActive(fn func(T)) {
	for _, m := range p.active {
		fn(m)
	}
}

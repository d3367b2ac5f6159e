package pool

import (
	"sort"

	"github.com/rs/zerolog"

	"factorysim.ai/internal/sim/model"
)

// Set keeps one pool per prefab key and is the allocator handed to facilities at construction.
type Set[T Member] struct {
	pools  map[string]*Pool[T]
	log    zerolog.Logger
	onGrow GrowFunc
}

func NewSet[T Member](log zerolog.Logger) *Set[T] {
	return &Set[T]{pools: map[string]*Pool[T]{}, log: log}
}

// OnGrow applies to every pool created afterwards and every existing pool.
func (s *Set[T]) OnGrow(fn GrowFunc) {
	s.onGrow = fn
	for _, p := range s.pools {
		p.OnGrow(fn)
	}
}

// Warm creates the pool for key if needed and pre-allocates count instances.
func (s *Set[T]) Warm(key string, count int, newFn func(id model.EntityID) T) *Pool[T] {
	p := s.pools[key]
	if p == nil {
		p = New[T](key, newFn, s.log)
		p.OnGrow(s.onGrow)
		s.pools[key] = p
	}
	p.Warm(count)
	return p
}

// Get returns the pool bound to key, or nil when nothing was warmed for it.
func (s *Set[T]) Get(key string) *Pool[T] { return s.pools[key] }

// Keys returns bound keys in sorted order.
func (s *Set[T]) Keys() []string {
	out := make([]string, 0, len(s.pools))
	for k := range s.pools {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

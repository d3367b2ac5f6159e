// Package inventory holds the capacity-gated LIFO stacks carried by agents and facility queues.
package inventory

import (
	"factorysim.ai/internal/sim/item"
	"factorysim.ai/internal/sim/model"
)

// Stack is a LIFO of items. Only the top is addressable.
// When owner is set, pushed items take that owner and popped items lose it.
type Stack struct {
	items []*item.Item
	cap   int
	owner model.AgentID
}

func NewStack(capacity int, owner model.AgentID) *Stack {
	if capacity < 0 {
		capacity = 0
	}
	return &Stack{cap: capacity, owner: owner}
}

func (s *Stack) Len() int             { return len(s.items) }
func (s *Stack) Cap() int             { return s.cap }
func (s *Stack) Full() bool           { return len(s.items) >= s.cap }
func (s *Stack) Empty() bool          { return len(s.items) == 0 }
func (s *Stack) Owner() model.AgentID { return s.owner }

// SetCap changes the capacity. Items already above a lowered capacity stay; Push is refused until
// the stack drains below it.
func (s *Stack) SetCap(n int) {
	if n < 0 {
		n = 0
	}
	s.cap = n
}

// Push adds it on top. It reports false when the stack is full or it is nil.
func (s *Stack) Push(it *item.Item) bool {
	if it == nil || s.Full() {
		return false
	}
	if s.owner != "" {
		it.SetOwner(s.owner)
	}
	s.items = append(s.items, it)
	return true
}

func (s *Stack) Pop() (*item.Item, bool) {
	n := len(s.items)
	if n == 0 {
		return nil, false
	}
	it := s.items[n-1]
	s.items[n-1] = nil
	s.items = s.items[:n-1]
	if s.owner != "" && it.Owner() == s.owner {
		it.ClearOwner()
	}
	return it, true
}

func (s *Stack) Peek() (*item.Item, bool) {
	if len(s.items) == 0 {
		return nil, false
	}
	return s.items[len(s.items)-1], true
}

// TopKind is the kind of the top item, or "" when empty.
func (s *Stack) TopKind() model.ItemKind {
	if it, ok := s.Peek(); ok {
		return it.Kind
	}
	return ""
}

// Accepts reports whether an item of kind could be pushed: room left and the top is empty or the
// same kind.
func (s *Stack) Accepts(kind model.ItemKind) bool {
	if s.Full() {
		return false
	}
	top := s.TopKind()
	return top == "" || top == kind
}

// Count is how many occurrences of id the stack holds.
func (s *Stack) Count(id model.EntityID) int {
	n := 0
	for _, it := range s.items {
		if it.ID() == id {
			n++
		}
	}
	return n
}

// Kinds lists item kinds bottom to top.
func (s *Stack) Kinds() []model.ItemKind {
	out := make([]model.ItemKind, len(s.items))
	for i, it := range s.items {
		out[i] = it.Kind
	}
	return out
}

// Each visits items bottom to top with their stack depth.
func (s *Stack) Each(fn func(depth int, it *item.Item)) {
	for i, it := range s.items {
		fn(i, it)
	}
}

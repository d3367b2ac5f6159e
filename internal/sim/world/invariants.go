package world

import (
	"fmt"
	"sort"

	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/item"
	"factorysim.ai/internal/sim/model"
)

// Invariant kinds reported through logs, events and metrics.
const (
	violationQueueCapacity  = "queue_capacity"
	violationOrphanReserve  = "reservation_orphan"
	violationDoubleReserve  = "reservation_multiple"
	violationItemOwner      = "item_owner"
	violationStackOwnership = "stack_ownership"
)

// checkInvariants verifies the end-of-tick state. Violations never stop the world; they are
// reported and counted.
func (w *World) checkInvariants() {
	for _, f := range w.facilities {
		if q := f.Queue(); q.Len() > f.Runtime().Capacity {
			w.violation(violationQueueCapacity, string(f.ID()), fmt.Sprintf("queue %d > capacity %d", q.Len(), f.Runtime().Capacity))
		}
	}

	held := map[model.AgentID]int{}
	for _, f := range w.facilities {
		for _, s := range f.Stations() {
			by := s.ReservedBy()
			if by == "" {
				continue
			}
			a := w.agentByID[by]
			if a == nil || !a.Alive() {
				w.violation(violationOrphanReserve, string(s.ID()), "reserved by "+string(by))
				continue
			}
			held[by]++
		}
	}
	for _, a := range w.agents {
		if n := held[a.ID()]; n > 1 {
			w.violation(violationDoubleReserve, string(a.ID()), fmt.Sprintf("holds %d reservations", n))
		}
		a.Stack().Each(func(_ int, it *item.Item) {
			if !it.OwnedBy(a.ID()) {
				w.violation(violationStackOwnership, string(it.ID()), "carried by "+string(a.ID())+" owned by "+string(it.Owner()))
			}
		})
	}

	var bad []string
	w.pools.EachActive(func(it *item.Item) {
		owner := it.Owner()
		if owner == "" {
			return
		}
		a := w.agentByID[owner]
		if a == nil || a.Stack().Count(it.ID()) != 1 {
			bad = append(bad, string(it.ID()))
		}
	})
	sort.Strings(bad)
	for _, id := range bad {
		w.violation(violationItemOwner, id, "owner does not carry it exactly once")
	}
}

func (w *World) violation(kind, subject, detail string) {
	w.violations++
	w.log.Error().Str("invariant", kind).Str("subject", subject).Str("detail", detail).Msg("invariant violated")
	w.bus.Emit(events.Event{Type: events.InvariantBroken, Detail: kind + ": " + subject + ": " + detail})
	w.sink.InvariantViolation(kind)
}

package world

import (
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/registry"
	"factorysim.ai/internal/sim/station"
)

// systemDispatch sends idle workers to stations that want one, category by category. Within a
// category stations are served in registration order and each gets the nearest acceptable worker.
func (w *World) systemDispatch() {
	for _, cat := range station.Categories {
		for _, s := range w.reg.ByCategory(cat) {
			if !s.WantsWorker() {
				continue
			}
			wk, ok := w.reg.AssignNearest(s, w.acceptFor(s))
			if !ok {
				continue
			}
			w.bus.Emit(events.Event{
				Type:     events.WorkerDispatched,
				Facility: string(s.Facility()),
				Station:  string(s.ID()),
				Agent:    string(wk.ID()),
			})
		}
	}
}

// acceptFor picks which workers are useful at s. Carriers go where their load is wanted; everything
// else needs empty hands so it can collect what the station produces.
func (w *World) acceptFor(s station.Station) func(registry.Worker) bool {
	return func(wk registry.Worker) bool {
		a := w.agentByID[wk.ID()]
		if a == nil {
			return false
		}
		stack := a.Stack()
		switch st := s.(type) {
		case *station.InsertionStation:
			return st.Accepts(stack.TopKind())
		case *station.GenerationStation:
			return stack.Accepts(st.Offers())
		default:
			return stack.Empty()
		}
	}
}

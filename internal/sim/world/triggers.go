package world

import (
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/station"
)

// systemTriggers turns agent positions into station enter/exit calls. A station volume is a sphere
// of the station's radius. Agents that stay inside an unoccupied station are offered again, so a
// player can start a new cycle without stepping out and a worker re-assigned to the station it is
// already standing in gets bound.
func (w *World) systemTriggers() {
	w.reg.Each(func(s station.Station) {
		in := w.inside[s.ID()]
		if in == nil {
			in = map[model.AgentID]bool{}
			w.inside[s.ID()] = in
		}
		for _, a := range w.agents {
			id := a.ID()
			now := a.Alive() && a.Pos().Dist(s.Position()) <= s.Radius()
			was := in[id]
			switch {
			case now && !was:
				in[id] = true
				s.Enter(id)
			case !now && was:
				delete(in, id)
				s.Exit(id)
			case now && s.Occupant() == "":
				s.Enter(id)
			}
		}
	})
}

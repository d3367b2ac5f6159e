package agent

import (
	"factorysim.ai/internal/sim/model"
)

// Assign sends a worker toward a station it already holds the reservation for.
func (a *Agent) Assign(id model.StationID, dest model.Vec3) bool {
	if a.kind != KindWorker || !a.Idle() {
		return false
	}
	a.target = id
	a.nav.SetDestination(dest)
	a.direction = dest.Sub(a.pos).Normalized()
	return true
}

// workerArrival decides what a navigating worker does this tick.
func (a *Agent) workerArrival() State {
	st, ok := a.stations.Station(a.target)
	if !ok || !st.Active() {
		a.log.Debug().Str("station", string(a.target)).Msg("target station gone")
		a.abandon()
		return a.settledState()
	}
	mine := st.ReservedBy() == a.id
	if !mine && (st.Reserved() || !st.Workable()) {
		// Bound to someone else, or our job there already finished.
		a.abandon()
		return a.settledState()
	}
	if a.nav.RemainingDistance(a.pos) >= a.arrivalEps {
		return Move
	}
	a.nav.Stop()
	a.direction = model.Zero
	if st.Workable() || mine {
		return Work
	}
	a.abandon()
	return Idle
}

func (a *Agent) settledState() State {
	if a.working {
		return Work
	}
	return Idle
}

// abandon drops the worker's target and any reservation it still holds there.
func (a *Agent) abandon() {
	if a.target == "" {
		return
	}
	if a.stations != nil {
		if st, ok := a.stations.Station(a.target); ok {
			st.Release(a.id)
		}
	}
	a.target = ""
	a.direction = model.Zero
	if a.nav != nil {
		a.nav.Stop()
	}
}

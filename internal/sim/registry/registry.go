// Package registry is the directory of active stations by category and of the workers that can be
// sent to them.
package registry

import (
	"github.com/rs/zerolog"

	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/station"
)

// Worker is an assignable agent.
type Worker interface {
	ID() model.AgentID
	Pos() model.Vec3
	Idle() bool
	Assign(id model.StationID, dest model.Vec3) bool
}

type Registry struct {
	byCat   map[station.Category][]station.Station
	byID    map[model.StationID]station.Station
	workers []Worker
	log     zerolog.Logger
}

func New(log zerolog.Logger) *Registry {
	return &Registry{
		byCat: map[station.Category][]station.Station{},
		byID:  map[model.StationID]station.Station{},
		log:   log.With().Str("component", "registry").Logger(),
	}
}

// Register adds s to its category list. Registering twice is a no-op.
func (r *Registry) Register(s station.Station) {
	if _, ok := r.byID[s.ID()]; ok {
		return
	}
	r.byID[s.ID()] = s
	r.byCat[s.Category()] = append(r.byCat[s.Category()], s)
}

func (r *Registry) Unregister(s station.Station) {
	if _, ok := r.byID[s.ID()]; !ok {
		return
	}
	delete(r.byID, s.ID())
	list := r.byCat[s.Category()]
	for i, x := range list {
		if x.ID() == s.ID() {
			r.byCat[s.Category()] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
}

func (r *Registry) Station(id model.StationID) (station.Station, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// ByCategory returns the live list for cat in registration order. Callers must not mutate it.
func (r *Registry) ByCategory(cat station.Category) []station.Station { return r.byCat[cat] }

func (r *Registry) Len() int { return len(r.byID) }

// Each visits stations category by category in registration order.
func (r *Registry) Each(fn func(station.Station)) {
	for _, c := range station.Categories {
		for _, s := range r.byCat[c] {
			fn(s)
		}
	}
}

func (r *Registry) AddWorker(w Worker) {
	for _, x := range r.workers {
		if x.ID() == w.ID() {
			return
		}
	}
	r.workers = append(r.workers, w)
}

func (r *Registry) RemoveWorker(id model.AgentID) {
	for i, w := range r.workers {
		if w.ID() == id {
			r.workers = append(r.workers[:i:i], r.workers[i+1:]...)
			return
		}
	}
}

func (r *Registry) Workers() []Worker { return r.workers }

// Nearest returns the idle worker closest to pos that passes accept (nil accepts all).
// Ties go to the first one found.
func (r *Registry) Nearest(pos model.Vec3, accept func(Worker) bool) (Worker, bool) {
	var best Worker
	bestDist := 0.0
	for _, w := range r.workers {
		if !w.Idle() {
			continue
		}
		if accept != nil && !accept(w) {
			continue
		}
		d := w.Pos().Dist(pos)
		if best == nil || d < bestDist {
			best, bestDist = w, d
		}
	}
	return best, best != nil
}

// AssignNearest reserves s for the nearest acceptable idle worker and sends it there.
func (r *Registry) AssignNearest(s station.Station, accept func(Worker) bool) (Worker, bool) {
	if s.Reserved() {
		return nil, false
	}
	w, ok := r.Nearest(s.Position(), accept)
	if !ok {
		return nil, false
	}
	if !s.Reserve(w.ID()) {
		return nil, false
	}
	if !w.Assign(s.ID(), s.Position()) {
		s.Release(w.ID())
		return nil, false
	}
	r.log.Debug().Str("station", string(s.ID())).Str("worker", string(w.ID())).Msg("worker assigned")
	return w, true
}

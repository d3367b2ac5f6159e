// Package nav holds the navigation collaborator workers drive toward their stations.
package nav

import "factorysim.ai/internal/sim/model"

// Navigator moves an agent toward a destination. Core code only reads arrival distance.
type Navigator interface {
	SetDestination(p model.Vec3)
	Destination() (model.Vec3, bool)
	RemainingDistance(from model.Vec3) float64
	Stopped() bool
	// Step returns where an agent at from ends up after moving for dt at speed.
	Step(from model.Vec3, speed, dt float64) model.Vec3
	Stop()
}

// Straight walks a straight line with no obstacle avoidance.
type Straight struct {
	dest model.Vec3
	has  bool
}

func NewStraight() *Straight { return &Straight{} }

func (s *Straight) SetDestination(p model.Vec3) {
	s.dest = p
	s.has = true
}

func (s *Straight) Destination() (model.Vec3, bool) { return s.dest, s.has }

func (s *Straight) RemainingDistance(from model.Vec3) float64 {
	if !s.has {
		return 0
	}
	return from.Dist(s.dest)
}

func (s *Straight) Stopped() bool { return !s.has }

func (s *Straight) Step(from model.Vec3, speed, dt float64) model.Vec3 {
	if !s.has || speed <= 0 || dt <= 0 {
		return from
	}
	return from.MoveTowards(s.dest, speed*dt)
}

func (s *Straight) Stop() { s.has = false }

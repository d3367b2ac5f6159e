package agent

import (
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/model"
)

type State uint8

const (
	Idle State = iota
	Move
	Work
	Stun
)

func (s State) String() string {
	switch s {
	case Move:
		return "move"
	case Work:
		return "work"
	case Stun:
		return "stun"
	default:
		return "idle"
	}
}

type stateHandler interface {
	enter(a *Agent)
	exit(a *Agent)
	// update returns the state to be in after this tick.
	update(a *Agent, dt float64) State
	fixedUpdate(a *Agent, dt float64)
}

var handlers = [...]stateHandler{
	Idle: idleState{},
	Move: moveState{},
	Work: workState{},
	Stun: stunState{},
}

// Update runs the state machine once per tick.
func (a *Agent) Update(dt float64) {
	if !a.alive {
		return
	}
	if next := handlers[a.state].update(a, dt); next != a.state {
		a.transition(next)
	}
}

// FixedUpdate runs one physics sub-step.
func (a *Agent) FixedUpdate(dt float64) {
	if !a.alive {
		return
	}
	handlers[a.state].fixedUpdate(a, dt)
}

// Stun freezes the agent for seconds, then it returns to Idle.
func (a *Agent) Stun(seconds float64) {
	a.stunLeft = seconds
	if a.state != Stun {
		a.transition(Stun)
	}
}

func (a *Agent) transition(next State) {
	prev := a.state
	handlers[prev].exit(a)
	a.state = next
	handlers[next].enter(a)
	a.ev.Emit(events.Event{
		Type:    events.AgentState,
		Agent:   string(a.id),
		Station: string(a.target),
		Detail:  prev.String() + "->" + next.String(),
	})
}

type idleState struct{}

func (idleState) enter(a *Agent) {}
func (idleState) exit(a *Agent)  {}

func (idleState) update(a *Agent, dt float64) State {
	if !a.direction.IsZero() || a.target != "" {
		return Move
	}
	if a.working {
		return Work
	}
	return Idle
}

func (idleState) fixedUpdate(a *Agent, dt float64) {}

type moveState struct{}

func (moveState) enter(a *Agent) { a.moving = true }

func (moveState) exit(a *Agent) {
	a.velocity = model.Zero
	a.moving = false
}

func (moveState) update(a *Agent, dt float64) State {
	if a.kind == KindWorker && a.target != "" {
		return a.workerArrival()
	}
	if !a.direction.IsZero() {
		return Move
	}
	if a.working {
		return Work
	}
	return Idle
}

func (moveState) fixedUpdate(a *Agent, dt float64) {
	if a.kind == KindWorker && a.target != "" {
		next := a.nav.Step(a.pos, a.speed, dt)
		if dt > 0 {
			a.velocity = next.Sub(a.pos).Scale(1 / dt)
		}
		a.pos = next
		a.direction = model.Zero
		if dest, ok := a.nav.Destination(); ok && a.nav.RemainingDistance(a.pos) >= a.arrivalEps {
			a.direction = dest.Sub(a.pos).Normalized()
		}
		return
	}
	d := a.direction
	if l := d.Len(); l > 1 {
		d = d.Scale(1 / l)
	}
	a.velocity = d.Scale(a.speed)
	a.pos = a.pos.Add(a.velocity.Scale(dt))
}

type workState struct{}

func (workState) enter(a *Agent) {}

func (workState) exit(a *Agent) {
	if a.kind == KindWorker && !a.working {
		a.abandon()
	}
}

func (workState) update(a *Agent, dt float64) State {
	if !a.direction.IsZero() {
		return Move
	}
	if !a.working {
		return Idle
	}
	return Work
}

func (workState) fixedUpdate(a *Agent, dt float64) {}

type stunState struct{}

func (stunState) enter(a *Agent) {
	a.velocity = model.Zero
	a.moving = false
	if a.kind == KindWorker {
		a.abandon()
	}
}

func (stunState) exit(a *Agent) { a.stunLeft = 0 }

func (stunState) update(a *Agent, dt float64) State {
	a.stunLeft -= dt
	if a.stunLeft > 0 {
		return Stun
	}
	return Idle
}

func (stunState) fixedUpdate(a *Agent, dt float64) {}

// Package station implements the interaction points of a facility: insertion, transformation (simple
// and two-phase), generation and output. Every timed behavior is a task on the shared scheduler.
package station

import (
	"github.com/rs/zerolog"

	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/inventory"
	"factorysim.ai/internal/sim/item"
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/tasks"
)

type Category string

const (
	Insertion      Category = "insertion"
	Transformation Category = "transformation"
	TwoPhase       Category = "two_phase"
	Generation     Category = "generation"
	Output         Category = "output"
)

// Categories lists every category in a stable order.
var Categories = []Category{Insertion, Transformation, TwoPhase, Generation, Output}

// Station is the capability contract shared by every variant.
type Station interface {
	ID() model.StationID
	Category() Category
	Facility() model.FacilityID
	Position() model.Vec3
	Radius() float64

	Workable() bool
	Reserved() bool
	ReservedBy() model.AgentID
	// Reserve binds agent. It fails when a different agent holds the reservation.
	Reserve(agent model.AgentID) bool
	// Release drops the reservation if agent holds it. Idempotent.
	Release(agent model.AgentID)
	// WantsWorker reports whether dispatch should send an idle worker here.
	WantsWorker() bool

	Enter(agent model.AgentID)
	Exit(agent model.AgentID)
	Occupant() model.AgentID

	Activate()
	Deactivate()
	Active() bool

	Status() Status
}

// Status is the presentation view of a station.
type Status struct {
	ID         model.StationID  `json:"id"`
	Category   Category         `json:"category"`
	Facility   model.FacilityID `json:"facility"`
	Workable   bool             `json:"workable"`
	ReservedBy model.AgentID    `json:"reserved_by,omitempty"`
	Occupant   model.AgentID    `json:"occupant,omitempty"`
	Phase      string           `json:"phase,omitempty"`
	Progress   float64          `json:"progress"`
	Count      int              `json:"count,omitempty"`
}

// Occupant is the agent side of an interaction, resolved by id each time it is needed.
type Occupant interface {
	ID() model.AgentID
	Stack() *inventory.Stack
	Carry() model.Anchor
	Moving() bool
	Working() bool
	SetWorking(bool)
	// Autonomous occupants only interact with the station reserved for them.
	Autonomous() bool
}

type AgentLookup interface {
	Occupant(id model.AgentID) (Occupant, bool)
}

// Host is the owning facility as seen from its stations.
type Host interface {
	ID() model.FacilityID
	Queue() *inventory.Stack
	QueueAnchor() model.Anchor
	RequiredInput() model.ItemKind
	Product() model.ItemKind
	ProductionTime() float64
	PrepareTime() float64
	Broken() bool
	AddOutput(n int)
}

// Env carries the collaborators every station needs.
type Env struct {
	Sched       *tasks.Scheduler
	Pools       *item.Pools
	Anim        *item.Animator
	Agents      AgentLookup
	Events      events.Emitter
	Log         zerolog.Logger
	InsertDelay float64
}

// Spec is the placement of one station.
type Spec struct {
	ID       model.StationID
	Position model.Vec3
	Rotation model.Quat
	Radius   float64
}

type base struct {
	id     model.StationID
	cat    Category
	host   Host
	env    *Env
	pos    model.Vec3
	rot    model.Quat
	radius float64
	log    zerolog.Logger

	active     bool
	reservedBy model.AgentID
	occupant   model.AgentID
}

func newBase(cat Category, spec Spec, host Host, env *Env) base {
	rot := spec.Rotation
	if rot == (model.Quat{}) {
		rot = model.Identity
	}
	if env.Events == nil {
		env.Events = events.Discard
	}
	return base{
		id:     spec.ID,
		cat:    cat,
		host:   host,
		env:    env,
		pos:    spec.Position,
		rot:    rot,
		radius: spec.Radius,
		log:    env.Log.With().Str("station", string(spec.ID)).Str("category", string(cat)).Logger(),
	}
}

func (b *base) ID() model.StationID        { return b.id }
func (b *base) Category() Category         { return b.cat }
func (b *base) Facility() model.FacilityID { return b.host.ID() }
func (b *base) Position() model.Vec3       { return b.pos }
func (b *base) Radius() float64            { return b.radius }
func (b *base) Reserved() bool             { return b.reservedBy != "" }
func (b *base) ReservedBy() model.AgentID  { return b.reservedBy }
func (b *base) Occupant() model.AgentID    { return b.occupant }
func (b *base) Active() bool               { return b.active }

func (b *base) anchor() model.Anchor {
	return model.StaticAnchor{Pos: b.pos, Rot: b.rot}
}

func (b *base) Reserve(agent model.AgentID) bool {
	if agent == "" {
		return false
	}
	if b.reservedBy == agent {
		return true
	}
	if b.reservedBy != "" {
		return false
	}
	b.reservedBy = agent
	b.emit(events.StationReserved, agent, nil)
	return true
}

func (b *base) Release(agent model.AgentID) {
	if agent == "" || b.reservedBy != agent {
		return
	}
	b.reservedBy = ""
	b.emit(events.StationReleased, agent, nil)
}

func (b *base) key(slot string) tasks.Key {
	return tasks.Key{Owner: string(b.id), Slot: slot}
}

func (b *base) lookup(id model.AgentID) (Occupant, bool) {
	if id == "" || b.env.Agents == nil {
		return nil, false
	}
	return b.env.Agents.Occupant(id)
}

// admit decides whether agent may start interacting. Autonomous agents need the reservation; others
// only need nobody else to hold it. An agent already working another station is refused.
func (b *base) admit(agent model.AgentID) (Occupant, bool) {
	if !b.active || b.host.Broken() {
		return nil, false
	}
	occ, ok := b.lookup(agent)
	if !ok || b.busyElsewhere(occ) {
		return nil, false
	}
	if b.reservedBy != "" && b.reservedBy != agent {
		return nil, false
	}
	if occ.Autonomous() && b.reservedBy != agent {
		return nil, false
	}
	return occ, true
}

func (b *base) busyElsewhere(occ Occupant) bool {
	return occ.Working() && b.occupant != occ.ID()
}

// bind makes agent the occupant: reserved and working.
func (b *base) bind(occ Occupant) {
	b.occupant = occ.ID()
	b.Reserve(occ.ID())
	occ.SetWorking(true)
}

// unbind clears occupancy and reservation for agent and drops its working flag.
func (b *base) unbind(agent model.AgentID) {
	if agent == "" {
		return
	}
	if occ, ok := b.lookup(agent); ok {
		occ.SetWorking(false)
	}
	if b.occupant == agent {
		b.occupant = ""
	}
	b.Release(agent)
}

func (b *base) emit(t events.Type, agent model.AgentID, it *item.Item) {
	e := events.Event{
		Type:     t,
		Facility: string(b.host.ID()),
		Station:  string(b.id),
		Agent:    string(agent),
	}
	if it != nil {
		e.Item = string(it.ID())
		e.Kind = string(it.Kind)
	}
	b.env.Events.Emit(e)
}

// deactivate is shared teardown: every task owned by the station stops and bindings are dropped.
func (b *base) deactivate() {
	if !b.active {
		return
	}
	b.active = false
	b.env.Sched.CancelOwner(string(b.id))
	b.unbind(b.occupant)
	b.Release(b.reservedBy)
}

func (b *base) status() Status {
	return Status{
		ID:         b.id,
		Category:   b.cat,
		Facility:   b.host.ID(),
		ReservedBy: b.reservedBy,
		Occupant:   b.occupant,
	}
}

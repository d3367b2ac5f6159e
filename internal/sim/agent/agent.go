// Package agent implements item carriers: the player and autonomous workers. Both share one
// Idle/Move/Work/Stun state machine; workers add navigation toward an assigned station.
package agent

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/inventory"
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/nav"
	"factorysim.ai/internal/sim/station"
)

var (
	ErrMaxLevel = errors.New("agent: already at max level")
	ErrBadLevel = errors.New("agent: level outside stat table")
)

type Kind string

const (
	KindPlayer Kind = "player"
	KindWorker Kind = "worker"
)

// carryHeight lifts the stack attach point above the agent's feet.
const carryHeight = 1.0

// Stations resolves station handles for workers.
type Stations interface {
	Station(id model.StationID) (station.Station, bool)
}

type Config struct {
	ID       model.AgentID
	Kind     Kind
	Def      catalogs.AgentDef
	Level    int
	Position model.Vec3
	Rotation model.Quat

	// Worker only.
	Nav            nav.Navigator
	Stations       Stations
	ArrivalEpsilon float64
}

type Agent struct {
	id    model.AgentID
	kind  Kind
	def   catalogs.AgentDef
	level int
	speed float64

	pos       model.Vec3
	rot       model.Quat
	velocity  model.Vec3
	direction model.Vec3

	stack   *inventory.Stack
	working bool
	moving  bool
	alive   bool

	state    State
	stunLeft float64

	nav        nav.Navigator
	stations   Stations
	target     model.StationID
	arrivalEps float64

	ev  events.Emitter
	log zerolog.Logger
}

func New(cfg Config, ev events.Emitter, log zerolog.Logger) (*Agent, error) {
	if ev == nil {
		ev = events.Discard
	}
	rot := cfg.Rotation
	if rot == (model.Quat{}) {
		rot = model.Identity
	}
	a := &Agent{
		id:         cfg.ID,
		kind:       cfg.Kind,
		def:        cfg.Def,
		pos:        cfg.Position,
		rot:        rot,
		alive:      true,
		state:      Idle,
		nav:        cfg.Nav,
		stations:   cfg.Stations,
		arrivalEps: cfg.ArrivalEpsilon,
		ev:         ev,
		log:        log.With().Str("agent", string(cfg.ID)).Logger(),
	}
	a.stack = inventory.NewStack(0, cfg.ID)
	if a.kind == KindWorker && a.nav == nil {
		a.nav = nav.NewStraight()
	}
	if err := a.applyLevel(cfg.Level); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Agent) applyLevel(level int) error {
	c, ok := a.def.Capacity.At(level)
	if !ok {
		return fmt.Errorf("%w: capacity level %d", ErrBadLevel, level)
	}
	sp, ok := a.def.Speed.At(level)
	if !ok {
		return fmt.Errorf("%w: speed level %d", ErrBadLevel, level)
	}
	a.level = level
	a.speed = sp
	a.stack.SetCap(int(math.Round(c)))
	return nil
}

// LevelUp raises capacity and speed together and returns the listed price.
func (a *Agent) LevelUp() (int, error) {
	maxLevel := a.def.Capacity.MaxLevel()
	if m := a.def.Speed.MaxLevel(); m < maxLevel {
		maxLevel = m
	}
	if a.level >= maxLevel {
		return 0, ErrMaxLevel
	}
	cost, _ := a.def.Capacity.UpgradeCost(a.level)
	if err := a.applyLevel(a.level + 1); err != nil {
		return 0, err
	}
	return cost, nil
}

func (a *Agent) ID() model.AgentID       { return a.id }
func (a *Agent) Kind() Kind              { return a.kind }
func (a *Agent) Level() int              { return a.level }
func (a *Agent) Speed() float64          { return a.speed }
func (a *Agent) Pos() model.Vec3         { return a.pos }
func (a *Agent) Rot() model.Quat         { return a.rot }
func (a *Agent) Velocity() model.Vec3    { return a.velocity }
func (a *Agent) Direction() model.Vec3   { return a.direction }
func (a *Agent) Stack() *inventory.Stack { return a.stack }
func (a *Agent) Moving() bool            { return a.moving }
func (a *Agent) Working() bool           { return a.working }
func (a *Agent) SetWorking(v bool)       { a.working = v }
func (a *Agent) Autonomous() bool        { return a.kind == KindWorker }
func (a *Agent) State() State            { return a.state }
func (a *Agent) Target() model.StationID { return a.target }
func (a *Agent) Alive() bool             { return a.alive }
func (a *Agent) SetPos(p model.Vec3)     { a.pos = p }

// SetDirection is the movement input: zero means stand still.
func (a *Agent) SetDirection(d model.Vec3) { a.direction = d }

func (a *Agent) Navigator() nav.Navigator { return a.nav }

// Carry is the stack attach point. It goes invalid when the agent despawns.
func (a *Agent) Carry() model.Anchor {
	return model.AnchorFunc(func() (model.Transform, bool) {
		return model.Transform{Pos: a.pos.Add(model.Vec3{Y: carryHeight}), Rot: a.rot}, a.alive
	})
}

// Despawn invalidates the agent; carried items stop following it. A worker gives up the station it
// was heading to.
func (a *Agent) Despawn() {
	a.abandon()
	a.alive = false
	a.working = false
	a.direction = model.Zero
	a.velocity = model.Zero
	if a.nav != nil {
		a.nav.Stop()
	}
}

// Idle reports whether dispatch may hand this agent a new station.
func (a *Agent) Idle() bool {
	return a.alive && a.state == Idle && !a.working && a.target == ""
}

type Status struct {
	ID      model.AgentID    `json:"id"`
	Kind    Kind             `json:"kind"`
	State   string           `json:"state"`
	Pos     [3]float64       `json:"pos"`
	Level   int              `json:"level"`
	Stack   []model.ItemKind `json:"stack"`
	Target  model.StationID  `json:"target,omitempty"`
	Working bool             `json:"working"`
}

func (a *Agent) Status() Status {
	return Status{
		ID:      a.id,
		Kind:    a.kind,
		State:   a.state.String(),
		Pos:     a.pos.ToArray(),
		Level:   a.level,
		Stack:   a.stack.Kinds(),
		Target:  a.target,
		Working: a.working,
	}
}

// Package world owns one simulation instance: it builds facilities and agents from a layout, runs
// the fixed-rate tick loop, and feeds tick logs, event indexes and observers.
package world

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"factorysim.ai/internal/protocol"
	"factorysim.ai/internal/sim/agent"
	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/facility"
	"factorysim.ai/internal/sim/item"
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/registry"
	"factorysim.ai/internal/sim/station"
	"factorysim.ai/internal/sim/tasks"
	"factorysim.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID     string
	RunID  string
	Tuning tuning.Tuning
}

// Deps are the collaborators a world is built with. Only Catalogs is required.
type Deps struct {
	Catalogs *catalogs.Catalogs
	Saver    facility.Saver
	Sink     MetricsSink
	Log      zerolog.Logger
}

type InputEnvelope struct {
	AgentID model.AgentID
	Input   protocol.InputMsg
}

type RecordedInput struct {
	AgentID model.AgentID     `json:"agent_id"`
	Input   protocol.InputMsg `json:"input"`
}

// RunStart is written with the first tick so a replay can rebuild the same starting state.
type RunStart struct {
	WorldID    string           `json:"world_id"`
	Facilities []facility.State `json:"facilities"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// EventIndex receives every tick's events for later querying. Implementations must not block.
type EventIndex interface {
	WriteEvents(runID string, evs []events.Event)
}

type TickLogEntry struct {
	Tick   uint64          `json:"tick"`
	RunID  string          `json:"run_id,omitempty"`
	Start  *RunStart       `json:"start,omitempty"`
	Inputs []RecordedInput `json:"inputs,omitempty"`
	Events []events.Event  `json:"events,omitempty"`
	Digest string          `json:"digest"`
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Target string `json:"target"`
	Cost   int    `json:"cost,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ObserverJoinRequest registers a read-only frame subscriber. Frames are JSON FRAME messages; a
// slow reader loses the older frame.
type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
}

type World struct {
	cfg  WorldConfig
	cats *catalogs.Catalogs
	log  zerolog.Logger

	tick atomic.Uint64

	sched *tasks.Scheduler
	pools *item.Pools
	anim  *item.Animator
	reg   *registry.Registry
	bus   *events.Bus
	env   *station.Env

	facilities []*facility.Facility
	facByID    map[model.FacilityID]*facility.Facility
	agents     []*agent.Agent
	agentByID  map[model.AgentID]*agent.Agent
	playerID   model.AgentID

	// inside tracks which agents stood in which station volume after the last fixed step.
	inside map[model.StationID]map[model.AgentID]bool

	started    bool
	violations uint64

	inbox         chan InputEnvelope
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	stop          chan struct{}
	observers     map[string]chan []byte
	observerOrder []string

	tickLogger  TickLogger
	auditLogger AuditLogger
	eventIndex  EventIndex
	sink        MetricsSink
	metrics     atomic.Value
}

// New builds the world described by layout. Facilities with configuration faults are built broken
// rather than failing the whole world; unknown facility or agent kinds are errors.
func New(cfg WorldConfig, deps Deps, layout Layout) (*World, error) {
	if deps.Catalogs == nil {
		return nil, fmt.Errorf("world: catalogs required")
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}
	if cfg.ID == "" {
		cfg.ID = layout.WorldID
	}
	w := &World{
		cfg:           cfg,
		cats:          deps.Catalogs,
		log:           deps.Log.With().Str("world", cfg.ID).Logger(),
		bus:           &events.Bus{},
		facByID:       map[model.FacilityID]*facility.Facility{},
		agentByID:     map[model.AgentID]*agent.Agent{},
		inside:        map[model.StationID]map[model.AgentID]bool{},
		inbox:         make(chan InputEnvelope, 1024),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerLeave: make(chan string, 64),
		stop:          make(chan struct{}),
		observers:     map[string]chan []byte{},
		sink:          deps.Sink,
	}
	if w.sink == nil {
		w.sink = nopSink{}
	}
	w.sched = tasks.NewScheduler(w.log)
	w.reg = registry.New(w.log)
	w.warmPools()

	st := cfg.Tuning.Settle
	w.anim = item.NewAnimator(w.sched, item.MotionConfig{
		Accel:         st.Accel,
		Epsilon:       st.Epsilon,
		StackOffset:   model.Vec3FromArray(st.StackOffset),
		ShrinkSeconds: st.ShrinkSeconds,
	}, w.pools, w.log)
	w.env = &station.Env{
		Sched:       w.sched,
		Pools:       w.pools,
		Anim:        w.anim,
		Agents:      w,
		Events:      w.bus,
		Log:         w.log,
		InsertDelay: cfg.Tuning.InsertDelaySeconds,
	}

	for _, fl := range layout.Facilities {
		def, err := w.cats.Facility(fl.Kind)
		if err != nil {
			return nil, fmt.Errorf("facility %s: %w", fl.ID, err)
		}
		f := facility.New(facility.Config{
			ID:       model.FacilityID(fl.ID),
			Def:      def,
			Level:    fl.Level,
			Attach:   fl.Attach.Transform(),
			Stations: stationConfigs(fl.Stations),
		}, w.env, w.reg, deps.Saver)
		w.facilities = append(w.facilities, f)
		w.facByID[f.ID()] = f
	}

	if layout.Player != nil {
		a, err := w.spawnAgent(*layout.Player, agent.KindPlayer)
		if err != nil {
			return nil, err
		}
		w.playerID = a.ID()
	}
	for _, wl := range layout.Workers {
		a, err := w.spawnAgent(wl, agent.KindWorker)
		if err != nil {
			return nil, err
		}
		w.reg.AddWorker(a)
	}

	for _, f := range w.facilities {
		f.Activate()
	}
	// Activation may have emitted FACILITY_BROKEN; those belong to tick 0.
	return w, nil
}

func stationConfigs(in []StationLayout) []facility.StationConfig {
	out := make([]facility.StationConfig, 0, len(in))
	for _, s := range in {
		out = append(out, facility.StationConfig{
			Category: station.Category(s.Category),
			Spec: station.Spec{
				ID:       model.StationID(s.ID),
				Position: model.Vec3FromArray(s.Pos),
				Rotation: model.YawQuat(s.Yaw),
				Radius:   s.Radius,
			},
		})
	}
	return out
}

// warmPools binds one pool per item kind. Tuning overrides the catalog count; zero means the kind
// gets no pool at all.
func (w *World) warmPools() {
	w.pools = item.NewPools(w.log)
	w.pools.OnGrow(func(kind string, size int) {
		w.bus.Emit(events.Event{Type: events.PoolGrow, Kind: kind, Count: size})
	})
	for _, id := range w.cats.Items.Palette {
		def := w.cats.Items.Defs[id]
		n := def.PoolWarm
		if v, ok := w.cfg.Tuning.PoolWarm[def.ID]; ok {
			n = v
		}
		if n <= 0 {
			w.log.Warn().Str("kind", def.ID).Msg("no pool warmed for item kind")
			continue
		}
		w.pools.Warm(item.Template{Kind: def.Kind(), Value: def.Value}, n)
	}
}

// spawnAgent builds an agent with the given behavior. The layout kind only picks the catalog entry,
// so several worker flavors can share the worker state machine.
func (w *World) spawnAgent(l AgentLayout, kind agent.Kind) (*agent.Agent, error) {
	defID := l.Kind
	if defID == "" {
		defID = string(kind)
	}
	def, err := w.cats.Agent(defID)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", l.ID, err)
	}
	a, err := agent.New(agent.Config{
		ID:             model.AgentID(l.ID),
		Kind:           kind,
		Def:            def,
		Level:          l.Level,
		Position:       model.Vec3FromArray(l.Pos),
		Stations:       w.reg,
		ArrivalEpsilon: w.cfg.Tuning.ArrivalEpsilon,
	}, w.bus, w.log)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", l.ID, err)
	}
	w.agents = append(w.agents, a)
	w.agentByID[a.ID()] = a
	return a, nil
}

// Occupant resolves agent handles for stations.
func (w *World) Occupant(id model.AgentID) (station.Occupant, bool) {
	a, ok := w.agentByID[id]
	if !ok || !a.Alive() {
		return nil, false
	}
	return a, true
}

// Despawn takes an agent out of the world. Stations it occupies or holds are let go, dispatch no
// longer sees it and the items it carried go back to their pools. It runs on the world goroutine,
// between or inside steps.
func (w *World) Despawn(id model.AgentID) bool {
	a, ok := w.agentByID[id]
	if !ok || !a.Alive() {
		return false
	}
	w.reg.Each(func(s station.Station) {
		if s.Occupant() == id {
			s.Exit(id)
		}
		s.Release(id)
		delete(w.inside[s.ID()], id)
	})
	a.Despawn()

	dropped := 0
	for {
		it, ok := a.Stack().Pop()
		if !ok {
			break
		}
		w.anim.Detach(it)
		w.pools.Release(it)
		dropped++
	}

	w.reg.RemoveWorker(id)
	delete(w.agentByID, id)
	for i, x := range w.agents {
		if x.ID() == id {
			w.agents = append(w.agents[:i:i], w.agents[i+1:]...)
			break
		}
	}
	w.bus.Emit(events.Event{Type: events.AgentDespawned, Agent: string(id), Count: dropped})
	w.log.Info().Str("agent", string(id)).Int("dropped", dropped).Msg("agent despawned")
	return true
}

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }
func (w *World) SetEventIndex(ix EventIndex)  { w.eventIndex = ix }

func (w *World) ID() string                   { return w.cfg.ID }
func (w *World) RunID() string                { return w.cfg.RunID }
func (w *World) TickRateHz() int              { return w.cfg.Tuning.TickRateHz }
func (w *World) Tuning() tuning.Tuning        { return w.cfg.Tuning }
func (w *World) CurrentTick() uint64          { return w.tick.Load() }
func (w *World) PlayerID() model.AgentID      { return w.playerID }
func (w *World) Catalogs() *catalogs.Catalogs { return w.cats }

func (w *World) Inbox() chan<- InputEnvelope              { return w.inbox }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }

func (w *World) Facility(id model.FacilityID) (*facility.Facility, bool) {
	f, ok := w.facByID[id]
	return f, ok
}

func (w *World) Agent(id model.AgentID) (*agent.Agent, bool) {
	a, ok := w.agentByID[id]
	return a, ok
}

func (w *World) Station(id model.StationID) (station.Station, bool) { return w.reg.Station(id) }

func (w *World) Facilities() []*facility.Facility { return w.facilities }
func (w *World) Agents() []*agent.Agent           { return w.agents }
func (w *World) Pools() *item.Pools               { return w.pools }

// FacilityStates is the persisted view of every facility, in layout order.
func (w *World) FacilityStates() []facility.State {
	out := make([]facility.State, 0, len(w.facilities))
	for _, f := range w.facilities {
		out = append(out, f.State())
	}
	return out
}

// Shutdown deactivates every facility, which stops station tasks and persists state. Call it only
// after Run has returned.
func (w *World) Shutdown() {
	for _, f := range w.facilities {
		f.Deactivate()
	}
}

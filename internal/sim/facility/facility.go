package facility

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/inventory"
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/station"
)

var (
	ErrMissingPool    = errors.New("facility: product has no pool")
	ErrMissingInput   = errors.New("facility: insertion without required input")
	ErrMissingProduct = errors.New("facility: station needs a product")
	ErrUnknownStation = errors.New("facility: unknown station category")
	ErrBadLevel       = errors.New("facility: level outside stat table")
	ErrMaxLevel       = errors.New("facility: already at max level")
)

// Registry is where stations are announced while the facility is active.
type Registry interface {
	Register(s station.Station)
	Unregister(s station.Station)
}

// Saver persists level and counters. The facility reads once at construction and writes back on
// level-up and deactivation.
type Saver interface {
	LoadFacility(id model.FacilityID) (State, bool, error)
	SaveFacility(st State) error
}

type State struct {
	ID       model.FacilityID `json:"id"`
	Kind     string           `json:"kind"`
	Level    int              `json:"level"`
	Produced int              `json:"produced"`
}

// Runtime is the current-level view of the leveled stats.
type Runtime struct {
	ProductionTime float64 `json:"production_time"`
	Capacity       int     `json:"capacity"`
}

type StationConfig struct {
	Category station.Category
	Spec     station.Spec
}

type Config struct {
	ID       model.FacilityID
	Def      catalogs.FacilityDef
	Level    int
	Attach   model.Transform
	Stations []StationConfig
}

type Facility struct {
	id     model.FacilityID
	def    catalogs.FacilityDef
	level  int
	rt     Runtime
	queue  *inventory.Stack
	attach model.Transform

	stations []station.Station
	outputs  []*station.OutputStation
	produced int
	active   bool
	err      error

	reg  Registry
	save Saver
	ev   events.Emitter
	log  zerolog.Logger
}

// New builds a facility and its stations. Configuration faults do not fail construction: the
// facility is returned broken, every station reports unworkable, and Err explains why.
func New(cfg Config, env *station.Env, reg Registry, save Saver) *Facility {
	f := &Facility{
		id:     cfg.ID,
		def:    cfg.Def,
		level:  cfg.Level,
		attach: cfg.Attach,
		reg:    reg,
		save:   save,
		ev:     env.Events,
		log:    env.Log.With().Str("facility", string(cfg.ID)).Str("kind", cfg.Def.ID).Logger(),
	}
	if f.ev == nil {
		f.ev = events.Discard
	}
	f.queue = inventory.NewStack(0, "")

	if save != nil {
		st, ok, err := save.LoadFacility(cfg.ID)
		if err != nil {
			f.log.Warn().Err(err).Msg("load saved state")
		} else if ok {
			f.level = st.Level
			f.produced = st.Produced
		}
	}

	if err := f.applyLevel(f.level); err != nil {
		f.fail(err)
	}
	if p := model.ItemKind(cfg.Def.Product); p != "" && !env.Pools.Bound(p) {
		f.fail(fmt.Errorf("%w: %s", ErrMissingPool, p))
	}

	for _, sc := range cfg.Stations {
		s, err := f.buildStation(sc, env)
		if err != nil {
			f.fail(err)
			continue
		}
		f.stations = append(f.stations, s)
	}
	return f
}

func (f *Facility) buildStation(sc StationConfig, env *station.Env) (station.Station, error) {
	switch sc.Category {
	case station.Insertion:
		if f.def.RequiredInput == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, sc.Spec.ID)
		}
		return station.NewInsertion(sc.Spec, f, env), nil
	case station.Transformation:
		return station.NewTransform(sc.Spec, f, env), nil
	case station.TwoPhase:
		return station.NewTwoPhase(sc.Spec, f, env), nil
	case station.Generation:
		if f.def.Product == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingProduct, sc.Spec.ID)
		}
		return station.NewGeneration(sc.Spec, f, env), nil
	case station.Output:
		if f.def.Product == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingProduct, sc.Spec.ID)
		}
		o := station.NewOutput(sc.Spec, f, env)
		f.outputs = append(f.outputs, o)
		return o, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStation, sc.Category)
	}
}

func (f *Facility) fail(err error) {
	if f.err == nil {
		f.err = err
	} else {
		f.err = errors.Join(f.err, err)
	}
	f.log.Error().Err(err).Msg("facility misconfigured; stations disabled")
}

func (f *Facility) applyLevel(level int) error {
	pt, ok := f.def.ProductionTime.At(level)
	if !ok {
		return fmt.Errorf("%w: production_time level %d", ErrBadLevel, level)
	}
	c, ok := f.def.Capacity.At(level)
	if !ok {
		return fmt.Errorf("%w: capacity level %d", ErrBadLevel, level)
	}
	f.level = level
	f.rt = Runtime{ProductionTime: pt, Capacity: int(math.Round(c))}
	f.queue.SetCap(f.rt.Capacity)
	return nil
}

func (f *Facility) ID() model.FacilityID          { return f.id }
func (f *Facility) Kind() string                  { return f.def.ID }
func (f *Facility) Level() int                    { return f.level }
func (f *Facility) Runtime() Runtime              { return f.rt }
func (f *Facility) Queue() *inventory.Stack       { return f.queue }
func (f *Facility) RequiredInput() model.ItemKind { return model.ItemKind(f.def.RequiredInput) }
func (f *Facility) Product() model.ItemKind       { return model.ItemKind(f.def.Product) }
func (f *Facility) ProductionTime() float64       { return f.rt.ProductionTime }
func (f *Facility) PrepareTime() float64          { return f.def.PrepareTime }
func (f *Facility) Produced() int                 { return f.produced }
func (f *Facility) Active() bool                  { return f.active }
func (f *Facility) Err() error                    { return f.err }
func (f *Facility) Broken() bool                  { return f.err != nil }
func (f *Facility) Stations() []station.Station   { return f.stations }

// QueueAnchor is the attach point queued items settle onto. It goes invalid on deactivation.
func (f *Facility) QueueAnchor() model.Anchor {
	return model.AnchorFunc(func() (model.Transform, bool) {
		return f.attach, f.active
	})
}

// AddOutput credits finished goods to the first output station.
func (f *Facility) AddOutput(n int) {
	f.produced += n
	if len(f.outputs) > 0 {
		f.outputs[0].Add(n)
	}
}

// Pending is the number of finished goods waiting at output stations.
func (f *Facility) Pending() int {
	n := 0
	for _, o := range f.outputs {
		n += o.Count()
	}
	return n
}

func (f *Facility) Activate() {
	if f.active {
		return
	}
	f.active = true
	if f.err != nil {
		f.ev.Emit(events.Event{Type: events.FacilityBroken, Facility: string(f.id), Detail: f.err.Error()})
	}
	for _, s := range f.stations {
		s.Activate()
		if f.reg != nil {
			f.reg.Register(s)
		}
	}
}

func (f *Facility) Deactivate() {
	if !f.active {
		return
	}
	for _, s := range f.stations {
		if f.reg != nil {
			f.reg.Unregister(s)
		}
		s.Deactivate()
	}
	f.active = false
	f.persist()
}

// LevelUp moves to the next level and returns the price paid, as listed in the stat table.
func (f *Facility) LevelUp() (int, error) {
	if f.level >= f.def.MaxLevel() {
		return 0, ErrMaxLevel
	}
	cost, _ := f.def.ProductionTime.UpgradeCost(f.level)
	if err := f.applyLevel(f.level + 1); err != nil {
		return 0, err
	}
	f.persist()
	f.ev.Emit(events.Event{Type: events.FacilityLevelUp, Facility: string(f.id), Count: f.level})
	f.log.Info().Int("level", f.level).Float64("production_time", f.rt.ProductionTime).Int("capacity", f.rt.Capacity).Msg("level up")
	return cost, nil
}

func (f *Facility) State() State {
	return State{ID: f.id, Kind: f.def.ID, Level: f.level, Produced: f.produced}
}

func (f *Facility) persist() {
	if f.save == nil {
		return
	}
	if err := f.save.SaveFacility(f.State()); err != nil {
		f.log.Warn().Err(err).Msg("save facility")
	}
}

// Status is the presentation view of a facility.
type Status struct {
	ID       model.FacilityID `json:"id"`
	Kind     string           `json:"kind"`
	Level    int              `json:"level"`
	Runtime  Runtime          `json:"runtime"`
	Queue    int              `json:"queue"`
	Produced int              `json:"produced"`
	Pending  int              `json:"pending"`
	Broken   string           `json:"broken,omitempty"`
	Stations []station.Status `json:"stations"`
}

func (f *Facility) Status() Status {
	st := Status{
		ID:       f.id,
		Kind:     f.def.ID,
		Level:    f.level,
		Runtime:  f.rt,
		Queue:    f.queue.Len(),
		Produced: f.produced,
		Pending:  f.Pending(),
	}
	if f.err != nil {
		st.Broken = f.err.Error()
	}
	for _, s := range f.stations {
		st.Stations = append(st.Stations, s.Status())
	}
	return st
}

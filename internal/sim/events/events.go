// Package events carries the state-changed signals the simulation exposes to presentation and logging.
package events

type Type string

const (
	ItemProduced     Type = "ITEM_PRODUCED"
	ItemInserted     Type = "ITEM_INSERTED"
	ItemConsumed     Type = "ITEM_CONSUMED"
	ItemPickedUp     Type = "ITEM_PICKED_UP"
	PrepareStarted   Type = "PREPARE_STARTED"
	PrepareReset     Type = "PREPARE_RESET"
	OperateStarted   Type = "OPERATE_STARTED"
	CycleCompleted   Type = "CYCLE_COMPLETED"
	AgentState       Type = "AGENT_STATE"
	AgentDespawned   Type = "AGENT_DESPAWNED"
	PoolGrow         Type = "POOL_GROW"
	StationReserved  Type = "STATION_RESERVED"
	StationReleased  Type = "STATION_RELEASED"
	FacilityLevelUp  Type = "FACILITY_LEVEL_UP"
	FacilityBroken   Type = "FACILITY_BROKEN"
	InvariantBroken  Type = "INVARIANT_VIOLATION"
	WorkerDispatched Type = "WORKER_DISPATCHED"
)

type Event struct {
	Tick     uint64 `json:"tick"`
	Type     Type   `json:"type"`
	Facility string `json:"facility,omitempty"`
	Station  string `json:"station,omitempty"`
	Agent    string `json:"agent,omitempty"`
	Item     string `json:"item,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Count    int    `json:"count,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Emitter is what simulation components publish through.
type Emitter interface {
	Emit(e Event)
}

// Discard drops everything.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(Event) {}

// Bus buffers events for the current tick. The world stamps the tick and drains once per step.
type Bus struct {
	tick uint64
	buf  []Event
}

func (b *Bus) SetTick(t uint64) { b.tick = t }

func (b *Bus) Emit(e Event) {
	e.Tick = b.tick
	b.buf = append(b.buf, e)
}

// Drain returns buffered events and empties the bus.
func (b *Bus) Drain() []Event {
	if len(b.buf) == 0 {
		return nil
	}
	out := b.buf
	b.buf = nil
	return out
}

func (b *Bus) Len() int { return len(b.buf) }

// Recorder keeps everything it is given; used by tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(e Event) {
	if r == nil {
		return
	}
	r.Events = append(r.Events, e)
}

// Count returns how many recorded events have type t.
func (r *Recorder) Count(t Type) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, e := range r.Events {
		if e.Type == t {
			n++
		}
	}
	return n
}

package station

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/inventory"
	"factorysim.ai/internal/sim/item"
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/tasks"
)

type fakeHost struct {
	id       model.FacilityID
	queue    *inventory.Stack
	required model.ItemKind
	product  model.ItemKind
	prodTime float64
	prepTime float64
	broken   bool
	output   int
	out      *OutputStation
}

func (h *fakeHost) ID() model.FacilityID          { return h.id }
func (h *fakeHost) Queue() *inventory.Stack       { return h.queue }
func (h *fakeHost) RequiredInput() model.ItemKind { return h.required }
func (h *fakeHost) Product() model.ItemKind       { return h.product }
func (h *fakeHost) ProductionTime() float64       { return h.prodTime }
func (h *fakeHost) PrepareTime() float64          { return h.prepTime }
func (h *fakeHost) Broken() bool                  { return h.broken }

func (h *fakeHost) QueueAnchor() model.Anchor {
	return model.StaticAnchor{Pos: model.Vec3{Y: 1}, Rot: model.Identity}
}

func (h *fakeHost) AddOutput(n int) {
	h.output += n
	if h.out != nil {
		h.out.Add(n)
	}
}

type fakeAgent struct {
	id      model.AgentID
	stack   *inventory.Stack
	pos     model.Vec3
	moving  bool
	working bool
	auto    bool
}

func (a *fakeAgent) ID() model.AgentID       { return a.id }
func (a *fakeAgent) Stack() *inventory.Stack { return a.stack }
func (a *fakeAgent) Moving() bool            { return a.moving }
func (a *fakeAgent) Working() bool           { return a.working }
func (a *fakeAgent) SetWorking(v bool)       { a.working = v }
func (a *fakeAgent) Autonomous() bool        { return a.auto }

func (a *fakeAgent) Carry() model.Anchor {
	return model.StaticAnchor{Pos: a.pos, Rot: model.Identity}
}

type directory map[model.AgentID]*fakeAgent

func (d directory) Occupant(id model.AgentID) (Occupant, bool) {
	a, ok := d[id]
	if !ok {
		return nil, false
	}
	return a, true
}

type rig struct {
	t      *testing.T
	sched  *tasks.Scheduler
	pools  *item.Pools
	env    *Env
	host   *fakeHost
	agents directory
	rec    *events.Recorder
}

func newRig(t *testing.T) *rig {
	t.Helper()
	log := zerolog.Nop()
	sched := tasks.NewScheduler(log)
	pools := item.NewPools(log)
	for _, k := range []model.ItemKind{"ore", "ingot", "gear"} {
		pools.Warm(item.Template{Kind: k}, 4)
	}
	anim := item.NewAnimator(sched, item.MotionConfig{Accel: 30, Epsilon: 0.01, ShrinkSeconds: 0.5}, pools, log)
	rec := &events.Recorder{}
	agents := directory{}
	host := &fakeHost{
		id:       "smelter-1",
		queue:    inventory.NewStack(2, ""),
		required: "ore",
		product:  "ingot",
		prodTime: 1,
		prepTime: 1,
	}
	return &rig{
		t:     t,
		sched: sched,
		pools: pools,
		env: &Env{
			Sched:       sched,
			Pools:       pools,
			Anim:        anim,
			Agents:      agents,
			Events:      rec,
			Log:         log,
			InsertDelay: 0.5,
		},
		host:   host,
		agents: agents,
		rec:    rec,
	}
}

func (r *rig) agent(id model.AgentID, capacity int, auto bool) *fakeAgent {
	a := &fakeAgent{id: id, stack: inventory.NewStack(capacity, id), auto: auto}
	r.agents[id] = a
	return a
}

// give pushes kinds bottom to top.
func (r *rig) give(a *fakeAgent, kinds ...model.ItemKind) {
	r.t.Helper()
	for _, k := range kinds {
		it, err := r.pools.Acquire(k, a.pos, model.Identity)
		require.NoError(r.t, err)
		require.True(r.t, a.stack.Push(it))
	}
}

func (r *rig) fillQueue(kinds ...model.ItemKind) {
	r.t.Helper()
	for _, k := range kinds {
		it, err := r.pools.Acquire(k, model.Zero, model.Identity)
		require.NoError(r.t, err)
		require.True(r.t, r.host.queue.Push(it))
	}
}

func (r *rig) tick(n int, dt float64) {
	for i := 0; i < n; i++ {
		r.sched.Tick(dt)
	}
}

func spec(id string) Spec {
	return Spec{ID: model.StationID(id), Radius: 1.5}
}

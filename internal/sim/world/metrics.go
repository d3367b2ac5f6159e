package world

import (
	"time"

	"factorysim.ai/internal/sim/events"
)

// MetricsSink is fed from the world loop once per tick. Implementations must be cheap and must not
// block.
type MetricsSink interface {
	ObserveStep(d time.Duration)
	CountEvents(counts map[events.Type]int)
	SetQueueDepth(facility string, depth int)
	SetPool(kind string, size, active int)
	SetTasks(n int)
	InvariantViolation(kind string)
}

type nopSink struct{}

func (nopSink) ObserveStep(time.Duration)       {}
func (nopSink) CountEvents(map[events.Type]int) {}
func (nopSink) SetQueueDepth(string, int)       {}
func (nopSink) SetPool(string, int, int)        {}
func (nopSink) SetTasks(int)                    {}
func (nopSink) InvariantViolation(string)       {}

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers and tests.
type WorldMetrics struct {
	Tick       uint64  `json:"tick"`
	Agents     int     `json:"agents"`
	Observers  int     `json:"observers"`
	Tasks      int     `json:"tasks"`
	TaskFaults uint64  `json:"task_faults"`
	Violations uint64  `json:"violations"`
	InboxDepth int     `json:"inbox_depth"`
	StepMS     float64 `json:"step_ms"`

	Produced map[string]int      `json:"produced"`
	Events   map[events.Type]int `json:"events"`
	Pools    map[string][2]int   `json:"pools"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(nextTick uint64, evs []events.Event, step time.Duration) {
	counts := countByType(evs)
	prev := w.Metrics()

	m := WorldMetrics{
		Tick:       nextTick,
		Agents:     len(w.agents),
		Observers:  len(w.observers),
		Tasks:      w.sched.Len(),
		TaskFaults: w.sched.Faults(),
		Violations: w.violations,
		InboxDepth: len(w.inbox),
		StepMS:     float64(step.Microseconds()) / 1000.0,
		Produced:   map[string]int{},
		Events:     map[events.Type]int{},
		Pools:      w.pools.Stats(),
	}
	for k, v := range prev.Events {
		m.Events[k] = v
	}
	for k, v := range counts {
		m.Events[k] += v
	}
	for _, f := range w.facilities {
		m.Produced[string(f.ID())] = f.Produced()
		w.sink.SetQueueDepth(string(f.ID()), f.Queue().Len())
	}
	for k, v := range m.Pools {
		w.sink.SetPool(k, v[0], v[1])
	}
	w.sink.ObserveStep(step)
	w.sink.CountEvents(counts)
	w.sink.SetTasks(m.Tasks)
	w.metrics.Store(m)
}

package station

import (
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/logic/progress"
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/tasks"
)

const slotTransform = "transform"

// TransformStation consumes one queued item every production time while it is occupied.
// Without an occupant the clock pauses; it never resets.
type TransformStation struct {
	base
	timer     progress.Timer
	completed int
}

func NewTransform(spec Spec, host Host, env *Env) *TransformStation {
	return &TransformStation{base: newBase(Transformation, spec, host, env)}
}

func (s *TransformStation) Activate() {
	if s.active {
		return
	}
	s.active = true
	if s.host.Broken() {
		return
	}
	s.env.Sched.Spawn(s.key(slotTransform), tasks.KindTransform, tasks.StepFunc(s.step))
}

func (s *TransformStation) Deactivate() { s.deactivate() }

func (s *TransformStation) Workable() bool {
	return s.active && !s.host.Broken() && s.occupant == "" && !s.host.Queue().Empty()
}

func (s *TransformStation) WantsWorker() bool { return s.Workable() && s.reservedBy == "" }

func (s *TransformStation) Progress() float64 { return s.timer.Ratio() }
func (s *TransformStation) Completed() int    { return s.completed }

func (s *TransformStation) Enter(agent model.AgentID) {
	if s.occupant != "" {
		return
	}
	occ, ok := s.admit(agent)
	if !ok {
		return
	}
	s.bind(occ)
}

func (s *TransformStation) Exit(agent model.AgentID) {
	if agent == "" || s.occupant != agent {
		return
	}
	s.unbind(agent)
}

func (s *TransformStation) Status() Status {
	st := s.status()
	st.Workable = s.Workable()
	st.Progress = s.timer.Ratio()
	st.Count = s.completed
	return st
}

func (s *TransformStation) step(dt float64) tasks.Wait {
	if s.occupant == "" {
		return tasks.Yield()
	}
	occ, ok := s.lookup(s.occupant)
	if !ok {
		s.unbind(s.occupant)
		return tasks.Yield()
	}
	q := s.host.Queue()
	if q.Empty() {
		if occ.Autonomous() {
			s.unbind(occ.ID())
		}
		return tasks.Yield()
	}

	s.timer.Duration = s.host.ProductionTime()
	if !s.timer.Add(dt) {
		return tasks.Yield()
	}
	it, _ := q.Pop()
	s.env.Anim.Detach(it)
	s.emit(events.ItemConsumed, occ.ID(), it)
	s.env.Pools.Release(it)
	s.host.AddOutput(1)
	s.completed++
	s.timer.Reset()
	s.emit(events.CycleCompleted, occ.ID(), nil)
	return tasks.Yield()
}

package station

import (
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/logic/progress"
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/tasks"
)

const slotSwitch = "switch"

type Phase uint8

const (
	PhaseIdle Phase = iota
	PhasePreparing
	PhaseOperating
)

func (p Phase) String() string {
	switch p {
	case PhasePreparing:
		return "preparing"
	case PhaseOperating:
		return "operating"
	default:
		return "idle"
	}
}

// TwoPhaseStation needs a stationary worker for the preparation interval; the operating cycle that
// follows runs unattended.
type TwoPhaseStation struct {
	base
	phase     Phase
	worker    model.AgentID
	prepare   progress.Timer
	operate   progress.Timer
	completed int
}

func NewTwoPhase(spec Spec, host Host, env *Env) *TwoPhaseStation {
	return &TwoPhaseStation{base: newBase(TwoPhase, spec, host, env)}
}

func (s *TwoPhaseStation) Activate() { s.active = true }

func (s *TwoPhaseStation) Deactivate() {
	s.deactivate()
	s.worker = ""
	s.phase = PhaseIdle
	s.prepare.Reset()
	s.operate.Reset()
}

func (s *TwoPhaseStation) Phase() Phase             { return s.phase }
func (s *TwoPhaseStation) Worker() model.AgentID    { return s.worker }
func (s *TwoPhaseStation) PrepareProgress() float64 { return s.prepare.Elapsed }
func (s *TwoPhaseStation) Completed() int           { return s.completed }

func (s *TwoPhaseStation) Workable() bool {
	return s.active && !s.host.Broken() && s.worker == "" && !s.host.Queue().Empty() && s.phase != PhaseOperating
}

func (s *TwoPhaseStation) WantsWorker() bool { return s.Workable() && s.reservedBy == "" }

func (s *TwoPhaseStation) Enter(agent model.AgentID) {
	if agent == "" || agent == s.worker {
		return
	}
	switch s.phase {
	case PhaseIdle:
		if s.worker != "" || s.host.Queue().Empty() {
			return
		}
		occ, ok := s.admit(agent)
		if !ok {
			return
		}
		s.worker = agent
		s.bind(occ)
		s.phase = PhasePreparing
		s.prepare = progress.Timer{Duration: s.host.PrepareTime()}
		s.emit(events.PrepareStarted, agent, nil)
		s.env.Sched.Spawn(s.key(slotSwitch), tasks.KindSwitchWork, &switchTask{s: s})
	case PhaseOperating:
		// A new interaction takes over the running cycle; the previous worker is let go.
		if !s.active || s.host.Broken() {
			return
		}
		occ, ok := s.lookup(agent)
		if !ok || s.busyElsewhere(occ) || (occ.Autonomous() && s.reservedBy != agent) {
			return
		}
		prev := s.worker
		s.unbind(prev)
		s.worker = agent
		s.bind(occ)
	}
}

func (s *TwoPhaseStation) Exit(agent model.AgentID) {
	if agent == "" || agent != s.worker {
		return
	}
	switch s.phase {
	case PhasePreparing:
		s.resetPrepare(agent)
		s.env.Sched.Cancel(s.key(slotSwitch))
		s.phase = PhaseIdle
		s.worker = ""
		s.unbind(agent)
	case PhaseOperating:
		s.worker = ""
		s.unbind(agent)
	}
}

func (s *TwoPhaseStation) Status() Status {
	st := s.status()
	st.Workable = s.Workable()
	st.Phase = s.phase.String()
	st.Count = s.completed
	switch s.phase {
	case PhasePreparing:
		st.Progress = s.prepare.Ratio()
	case PhaseOperating:
		st.Progress = s.operate.Ratio()
	}
	return st
}

func (s *TwoPhaseStation) resetPrepare(agent model.AgentID) {
	if s.prepare.Elapsed > 0 {
		s.prepare.Reset()
		s.emit(events.PrepareReset, agent, nil)
	}
}

type switchTask struct {
	s *TwoPhaseStation
}

// Stop runs on external cancellation and lets go of whoever is bound.
func (t *switchTask) Stop() {
	s := t.s
	if s.worker != "" {
		s.unbind(s.worker)
		s.worker = ""
	}
	if s.phase == PhasePreparing {
		s.prepare.Reset()
		s.phase = PhaseIdle
	}
}

func (t *switchTask) Step(dt float64) tasks.Wait {
	s := t.s
	switch s.phase {
	case PhasePreparing:
		return t.stepPrepare(dt)
	case PhaseOperating:
		return t.stepOperate(dt)
	default:
		return tasks.Done()
	}
}

func (t *switchTask) stepPrepare(dt float64) tasks.Wait {
	s := t.s
	occ, ok := s.lookup(s.worker)
	if !ok {
		s.resetPrepare(s.worker)
		s.unbind(s.worker)
		s.worker = ""
		s.phase = PhaseIdle
		return tasks.Done()
	}
	if occ.Moving() {
		s.resetPrepare(occ.ID())
		return tasks.Yield()
	}
	if s.host.Queue().Empty() {
		return tasks.Yield()
	}
	if !s.prepare.Add(dt) {
		return tasks.Yield()
	}
	s.prepare.Reset()
	s.phase = PhaseOperating
	s.operate = progress.Timer{Duration: s.host.ProductionTime()}
	s.emit(events.OperateStarted, occ.ID(), nil)
	return tasks.Yield()
}

func (t *switchTask) stepOperate(dt float64) tasks.Wait {
	s := t.s
	s.operate.Duration = s.host.ProductionTime()
	if !s.operate.Add(dt) {
		return tasks.Yield()
	}
	q := s.host.Queue()
	if it, ok := q.Pop(); ok {
		s.env.Anim.Detach(it)
		s.emit(events.ItemConsumed, s.worker, it)
		s.env.Pools.Release(it)
		s.host.AddOutput(1)
		s.completed++
	}
	s.operate.Reset()
	s.emit(events.CycleCompleted, s.worker, nil)
	if s.worker != "" {
		s.unbind(s.worker)
		s.worker = ""
	}
	s.phase = PhaseIdle
	return tasks.Done()
}

package station

import (
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/tasks"
)

const slotCollect = "collect"

// OutputStation counts finished goods. Taking one spawns a product item that flies to the taker and
// vanishes back into its pool.
type OutputStation struct {
	base
	count     int
	collected int
}

func NewOutput(spec Spec, host Host, env *Env) *OutputStation {
	return &OutputStation{base: newBase(Output, spec, host, env)}
}

func (s *OutputStation) Activate()   { s.active = true }
func (s *OutputStation) Deactivate() { s.deactivate() }

func (s *OutputStation) Count() int     { return s.count }
func (s *OutputStation) Collected() int { return s.collected }

// Add credits n finished goods.
func (s *OutputStation) Add(n int) {
	if n > 0 {
		s.count += n
	}
}

func (s *OutputStation) Workable() bool {
	return s.active && !s.host.Broken() && s.count > 0
}

func (s *OutputStation) WantsWorker() bool {
	return s.Workable() && s.reservedBy == "" && s.occupant == ""
}

func (s *OutputStation) Enter(agent model.AgentID) {
	if s.occupant != "" {
		return
	}
	occ, ok := s.admit(agent)
	if !ok {
		return
	}
	s.bind(occ)
	s.env.Sched.Spawn(s.key(slotCollect), tasks.KindCollect, tasks.StepFunc(func(float64) tasks.Wait {
		return s.collectStep(agent)
	}))
}

func (s *OutputStation) Exit(agent model.AgentID) {
	if agent == "" || s.occupant != agent {
		return
	}
	s.env.Sched.Cancel(s.key(slotCollect))
	s.unbind(agent)
}

func (s *OutputStation) Status() Status {
	st := s.status()
	st.Workable = s.Workable()
	st.Count = s.count
	return st
}

// PickUp takes one finished good for agent. It reports false when nothing is waiting.
func (s *OutputStation) PickUp(agent model.AgentID) bool {
	if s.count <= 0 || s.host.Broken() || (s.reservedBy != "" && s.reservedBy != agent) {
		return false
	}
	occ, ok := s.lookup(agent)
	if !ok {
		return false
	}
	it, err := s.env.Pools.Acquire(s.host.Product(), s.pos, s.rot)
	if err != nil {
		s.log.Error().Err(err).Msg("output has no pool")
		return false
	}
	s.count--
	s.collected++
	s.env.Anim.MoveToTargetAndShrink(it, occ.Carry())
	s.emit(events.ItemPickedUp, agent, it)
	return true
}

func (s *OutputStation) collectStep(agent model.AgentID) tasks.Wait {
	if s.occupant != agent {
		return tasks.Done()
	}
	if s.count <= 0 {
		if occ, ok := s.lookup(agent); !ok || occ.Autonomous() {
			s.unbind(agent)
			return tasks.Done()
		}
		return tasks.Until(func() bool { return s.count > 0 || s.occupant != agent })
	}
	if !s.PickUp(agent) {
		s.unbind(agent)
		return tasks.Done()
	}
	return tasks.Sleep(s.env.InsertDelay)
}

package station

import (
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/item"
	"factorysim.ai/internal/sim/logic/progress"
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/tasks"
)

const slotGenerate = "generate"

// GenerationStation manufactures one item per production time and holds it until picked up.
type GenerationStation struct {
	base
	timer    progress.Timer
	held     *item.Item
	heldGen  uint64
	produced int
}

func NewGeneration(spec Spec, host Host, env *Env) *GenerationStation {
	return &GenerationStation{base: newBase(Generation, spec, host, env)}
}

func (s *GenerationStation) Activate() {
	if s.active {
		return
	}
	s.active = true
	if s.host.Broken() {
		return
	}
	s.env.Sched.Spawn(s.key(slotGenerate), tasks.KindGenerate, tasks.StepFunc(s.step))
}

func (s *GenerationStation) Deactivate() {
	s.deactivate()
	if s.held != nil {
		s.env.Pools.Release(s.held)
		s.held = nil
	}
	s.timer.Reset()
}

// Held returns the item waiting for pickup, if any.
func (s *GenerationStation) Held() (*item.Item, bool) {
	if s.held == nil {
		return nil, false
	}
	return s.held, true
}

func (s *GenerationStation) Progress() float64 { return s.timer.Ratio() }
func (s *GenerationStation) Produced() int     { return s.produced }

func (s *GenerationStation) Workable() bool {
	return s.active && !s.host.Broken() && s.held != nil
}

func (s *GenerationStation) WantsWorker() bool { return s.Workable() && s.reservedBy == "" }

// Offers reports what a carrier would receive here.
func (s *GenerationStation) Offers() model.ItemKind { return s.host.Product() }

func (s *GenerationStation) Enter(agent model.AgentID) {
	if s.occupant != "" {
		return
	}
	occ, ok := s.admit(agent)
	if !ok {
		return
	}
	s.bind(occ)
	s.tryPickup(occ)
}

func (s *GenerationStation) Exit(agent model.AgentID) {
	if agent == "" || s.occupant != agent {
		return
	}
	s.unbind(agent)
}

func (s *GenerationStation) Status() Status {
	st := s.status()
	st.Workable = s.Workable()
	st.Progress = s.timer.Ratio()
	if s.held != nil {
		st.Phase = "holding"
		st.Progress = 1
	} else {
		st.Phase = "generating"
	}
	st.Count = s.produced
	return st
}

// PickUp hands the held item to agent when its stack top is empty or the same kind and it has room.
// A station reserved for someone else keeps its item.
func (s *GenerationStation) PickUp(agent model.AgentID) bool {
	if s.reservedBy != "" && s.reservedBy != agent {
		return false
	}
	occ, ok := s.lookup(agent)
	if !ok {
		return false
	}
	return s.tryPickup(occ)
}

func (s *GenerationStation) tryPickup(occ Occupant) bool {
	if s.held == nil {
		return false
	}
	stack := occ.Stack()
	if !stack.Accepts(s.held.Kind) {
		if occ.Autonomous() {
			s.unbind(occ.ID())
		}
		return false
	}
	it := s.held
	s.held = nil
	stack.Push(it)
	s.env.Anim.AttachToTarget(it, occ.Carry(), stack.Len()-1)
	s.emit(events.ItemPickedUp, occ.ID(), it)
	if occ.Autonomous() {
		s.unbind(occ.ID())
	}
	return true
}

func (s *GenerationStation) step(dt float64) tasks.Wait {
	if s.held != nil {
		if !s.held.Active() || s.held.Generation() != s.heldGen {
			s.held = nil
			return tasks.Yield()
		}
		if occ, ok := s.lookup(s.occupant); ok {
			s.tryPickup(occ)
		}
		return tasks.Yield()
	}

	s.timer.Duration = s.host.ProductionTime()
	if !s.timer.Add(dt) {
		return tasks.Yield()
	}
	it, err := s.env.Pools.Acquire(s.host.Product(), s.pos, s.rot)
	if err != nil {
		s.log.Error().Err(err).Str("kind", string(s.host.Product())).Msg("generation has no pool")
		return tasks.Done()
	}
	s.held = it
	s.heldGen = it.Generation()
	s.timer.Reset()
	s.produced++
	s.emit(events.ItemProduced, "", it)
	return tasks.Yield()
}

package station

import (
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/tasks"
)

const slotInsert = "insert"

// InsertionStation moves items one at a time from the occupant's stack top into the facility queue.
type InsertionStation struct {
	base
	inserted int
}

func NewInsertion(spec Spec, host Host, env *Env) *InsertionStation {
	return &InsertionStation{base: newBase(Insertion, spec, host, env)}
}

func (s *InsertionStation) Activate() { s.active = true }

func (s *InsertionStation) Deactivate() { s.deactivate() }

// Workable while the queue has room.
func (s *InsertionStation) Workable() bool {
	return s.active && !s.host.Broken() && !s.host.Queue().Full()
}

func (s *InsertionStation) WantsWorker() bool {
	return s.Workable() && s.reservedBy == "" && s.occupant == ""
}

// Accepts reports whether a carrier whose top item is kind has anything to deliver here.
func (s *InsertionStation) Accepts(kind model.ItemKind) bool {
	return kind != "" && kind == s.host.RequiredInput()
}

func (s *InsertionStation) Inserted() int { return s.inserted }

func (s *InsertionStation) Enter(agent model.AgentID) {
	if s.occupant != "" {
		return
	}
	occ, ok := s.admit(agent)
	if !ok {
		return
	}
	s.bind(occ)
	s.env.Sched.Spawn(s.key(slotInsert), tasks.KindInsert, &insertTask{s: s, agent: agent})
}

func (s *InsertionStation) Exit(agent model.AgentID) {
	if agent == "" || s.occupant != agent {
		return
	}
	s.env.Sched.Cancel(s.key(slotInsert))
	s.unbind(agent)
}

func (s *InsertionStation) Status() Status {
	st := s.status()
	st.Workable = s.Workable()
	st.Count = s.inserted
	return st
}

type insertTask struct {
	s     *InsertionStation
	agent model.AgentID
}

func (t *insertTask) Step(float64) tasks.Wait {
	s := t.s
	if s.occupant != t.agent {
		return tasks.Done()
	}
	occ, ok := s.lookup(t.agent)
	if !ok {
		s.log.Debug().Str("agent", string(t.agent)).Msg("occupant vanished")
		s.unbind(t.agent)
		return tasks.Done()
	}
	q := s.host.Queue()
	if q.Full() {
		return tasks.Until(func() bool { return !q.Full() || s.occupant != t.agent })
	}

	top, ok := occ.Stack().Peek()
	if !ok || top.Kind != s.host.RequiredInput() {
		// Only the top is addressable; a mismatch blocks until the stack changes.
		if occ.Autonomous() {
			s.unbind(t.agent)
			return tasks.Done()
		}
		return tasks.Yield()
	}

	it, _ := occ.Stack().Pop()
	q.Push(it)
	s.env.Anim.AttachToTarget(it, s.host.QueueAnchor(), q.Len()-1)
	s.inserted++
	s.emit(events.ItemInserted, t.agent, it)
	return tasks.Sleep(s.env.InsertDelay)
}

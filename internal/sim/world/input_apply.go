package world

import (
	"errors"

	"factorysim.ai/internal/protocol"
	"factorysim.ai/internal/sim/agent"
	"factorysim.ai/internal/sim/facility"
	"factorysim.ai/internal/sim/model"
)

// picker is implemented by stations that hand items out on request.
type picker interface {
	PickUp(agent model.AgentID) bool
}

// applyInputs applies inputs in receive order. Inputs for unknown agents are dropped and not
// recorded.
func (w *World) applyInputs(inputs []InputEnvelope, nowTick uint64) []RecordedInput {
	recorded := make([]RecordedInput, 0, len(inputs))
	for _, env := range inputs {
		a := w.agentByID[env.AgentID]
		if a == nil || !a.Alive() {
			continue
		}
		recorded = append(recorded, RecordedInput{AgentID: env.AgentID, Input: env.Input})
		w.applyInput(a, env.Input, nowTick)
	}
	return recorded
}

func (w *World) applyInput(a *agent.Agent, in protocol.InputMsg, nowTick uint64) {
	if !a.Autonomous() {
		a.SetDirection(model.Vec3FromArray(in.Direction))
	}
	switch in.Action {
	case protocol.ActionMove:
	case protocol.ActionLevelUpFacility:
		f, ok := w.facByID[model.FacilityID(in.Target)]
		if !ok {
			w.audit(AuditEntry{Tick: nowTick, Actor: string(a.ID()), Action: in.Action, Target: in.Target, Reason: protocol.ErrInvalidTarget})
			return
		}
		cost, err := f.LevelUp()
		w.audit(AuditEntry{Tick: nowTick, Actor: string(a.ID()), Action: in.Action, Target: in.Target, Cost: cost, Reason: levelUpReason(err)})
	case protocol.ActionLevelUpAgent:
		target := a
		if in.Target != "" {
			target = w.agentByID[model.AgentID(in.Target)]
		}
		if target == nil {
			w.audit(AuditEntry{Tick: nowTick, Actor: string(a.ID()), Action: in.Action, Target: in.Target, Reason: protocol.ErrInvalidTarget})
			return
		}
		cost, err := target.LevelUp()
		w.audit(AuditEntry{Tick: nowTick, Actor: string(a.ID()), Action: in.Action, Target: string(target.ID()), Cost: cost, Reason: levelUpReason(err)})
	case protocol.ActionPickUp:
		st, ok := w.reg.Station(model.StationID(in.Target))
		p, canPick := st.(picker)
		if !ok || !canPick {
			w.log.Debug().Str("agent", string(a.ID())).Str("target", in.Target).Msg("pick up: not a pickup station")
			return
		}
		if a.Pos().Dist(st.Position()) > st.Radius() {
			w.log.Debug().Str("agent", string(a.ID())).Str("target", in.Target).Msg("pick up: out of reach")
			return
		}
		if !p.PickUp(a.ID()) {
			w.log.Debug().Str("agent", string(a.ID())).Str("target", in.Target).Msg("pick up refused")
		}
	case protocol.ActionDespawnAgent:
		if !w.Despawn(model.AgentID(in.Target)) {
			w.audit(AuditEntry{Tick: nowTick, Actor: string(a.ID()), Action: in.Action, Target: in.Target, Reason: protocol.ErrInvalidTarget})
			return
		}
		w.audit(AuditEntry{Tick: nowTick, Actor: string(a.ID()), Action: in.Action, Target: in.Target})
	default:
		w.log.Debug().Str("agent", string(a.ID())).Str("action", in.Action).Msg("unknown action")
	}
}

func levelUpReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, facility.ErrMaxLevel), errors.Is(err, agent.ErrMaxLevel):
		return protocol.ErrMaxLevel
	default:
		return protocol.ErrInternal
	}
}

func (w *World) audit(e AuditEntry) {
	ev := w.log.Info()
	if e.Reason != "" {
		ev = w.log.Debug()
	}
	ev.Str("actor", e.Actor).Str("action", e.Action).Str("target", e.Target).Int("cost", e.Cost).Str("reason", e.Reason).Msg("input applied")
	if w.auditLogger == nil {
		return
	}
	if err := w.auditLogger.WriteAudit(e); err != nil {
		w.log.Warn().Err(err).Msg("audit write failed")
	}
}

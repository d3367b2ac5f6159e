package world

import (
	"encoding/json"
	"sort"

	"factorysim.ai/internal/protocol"
	"factorysim.ai/internal/sim/events"
)

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	if _, ok := w.observers[req.SessionID]; !ok {
		w.observerOrder = append(w.observerOrder, req.SessionID)
	}
	w.observers[req.SessionID] = req.Out
	w.log.Info().Str("session", req.SessionID).Int("observers", len(w.observers)).Msg("observer joined")
}

func (w *World) handleObserverLeave(id string) {
	if _, ok := w.observers[id]; !ok {
		return
	}
	delete(w.observers, id)
	for i, x := range w.observerOrder {
		if x == id {
			w.observerOrder = append(w.observerOrder[:i:i], w.observerOrder[i+1:]...)
			break
		}
	}
	w.log.Info().Str("session", id).Int("observers", len(w.observers)).Msg("observer left")
}

func (w *World) stepObservers(nowTick uint64, evs []events.Event) {
	if len(w.observers) == 0 {
		return
	}
	b, err := json.Marshal(w.Frame(nowTick, evs))
	if err != nil {
		w.log.Error().Err(err).Msg("frame marshal failed")
		return
	}
	for _, id := range w.observerOrder {
		sendLatest(w.observers[id], b)
	}
}

// Frame is the presentation snapshot of the current state.
func (w *World) Frame(nowTick uint64, evs []events.Event) protocol.FrameMsg {
	msg := protocol.FrameMsg{
		Type:            protocol.TypeFrame,
		ProtocolVersion: protocol.Version,
		WorldID:         w.cfg.ID,
		Tick:            nowTick,
		Events:          evs,
	}
	for _, f := range w.facilities {
		st := f.Status()
		ff := protocol.FacilityFrame{
			ID:             string(st.ID),
			Kind:           st.Kind,
			Level:          st.Level,
			ProductionTime: st.Runtime.ProductionTime,
			Capacity:       st.Runtime.Capacity,
			Queue:          st.Queue,
			Produced:       st.Produced,
			Pending:        st.Pending,
			Broken:         st.Broken,
		}
		for _, s := range st.Stations {
			ff.Stations = append(ff.Stations, protocol.StationFrame{
				ID:         string(s.ID),
				Category:   string(s.Category),
				Workable:   s.Workable,
				ReservedBy: string(s.ReservedBy),
				Occupant:   string(s.Occupant),
				Phase:      s.Phase,
				Progress:   s.Progress,
				Count:      s.Count,
			})
		}
		msg.Facilities = append(msg.Facilities, ff)
	}
	for _, a := range w.agents {
		st := a.Status()
		af := protocol.AgentFrame{
			ID:      string(st.ID),
			Kind:    string(st.Kind),
			State:   st.State,
			Pos:     st.Pos,
			Level:   st.Level,
			Target:  string(st.Target),
			Working: st.Working,
		}
		for _, k := range st.Stack {
			af.Stack = append(af.Stack, string(k))
		}
		msg.Agents = append(msg.Agents, af)
	}
	stats := w.pools.Stats()
	kinds := make([]string, 0, len(stats))
	for k := range stats {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		msg.Pools = append(msg.Pools, protocol.PoolFrame{Kind: k, Size: stats[k][0], Active: stats[k][1]})
	}
	return msg
}

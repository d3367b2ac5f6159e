package world

import (
	"time"

	"factorysim.ai/internal/sim/events"
)

// stepInternal runs one tick: inputs, physics sub-steps with trigger volumes, agent state machines,
// dispatch, scheduled tasks, invariant checks, then the sinks.
func (w *World) stepInternal(inputs []InputEnvelope) string {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	w.bus.SetTick(nowTick)

	var start *RunStart
	if !w.started {
		start = &RunStart{WorldID: w.cfg.ID, Facilities: w.FacilityStates()}
		w.started = true
	}

	recorded := w.applyInputs(inputs, nowTick)

	dt := w.cfg.Tuning.TickSeconds()
	sub := w.cfg.Tuning.Substeps()
	fixed := dt / float64(sub)
	for i := 0; i < sub; i++ {
		for _, a := range w.agents {
			a.FixedUpdate(fixed)
		}
		w.systemTriggers()
	}
	for _, a := range w.agents {
		a.Update(dt)
	}
	if nowTick%uint64(w.cfg.Tuning.AssignEveryTicks) == 0 {
		w.systemDispatch()
	}
	w.sched.Tick(dt)
	w.checkInvariants()

	evs := w.bus.Drain()
	digest := w.stateDigest(nowTick)

	if w.tickLogger != nil {
		entry := TickLogEntry{Tick: nowTick, Inputs: recorded, Events: evs, Digest: digest}
		if start != nil {
			entry.RunID = w.cfg.RunID
			entry.Start = start
		}
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.log.Warn().Err(err).Uint64("tick", nowTick).Msg("tick log write failed")
		}
	}
	if w.eventIndex != nil && len(evs) > 0 {
		w.eventIndex.WriteEvents(w.cfg.RunID, evs)
	}
	w.stepObservers(nowTick, evs)

	w.tick.Add(1)
	w.publishMetrics(nowTick+1, evs, time.Since(stepStart))
	return digest
}

func countByType(evs []events.Event) map[events.Type]int {
	out := map[events.Type]int{}
	for _, e := range evs {
		out[e.Type]++
	}
	return out
}

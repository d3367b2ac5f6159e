package world

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog"

	"factorysim.ai/internal/protocol"
	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/tuning"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

// yardContext holds state for one scenario.
type yardContext struct {
	cats    *catalogs.Catalogs
	world   *World
	twin    *World
	log     *memTickLog
	audit   *memAudit
	pending []InputEnvelope
	diverge string
}

func (c *yardContext) build(tu tuning.Tuning) (*World, error) {
	if c.cats == nil {
		cats, err := catalogs.Load(configDir)
		if err != nil {
			return nil, err
		}
		c.cats = cats
	}
	l, err := LoadLayout(configDir + "/layout.yaml")
	if err != nil {
		return nil, err
	}
	return New(WorldConfig{ID: "yard", RunID: "bdd", Tuning: tu}, Deps{Catalogs: c.cats, Log: zerolog.Nop()}, l)
}

func (c *yardContext) attach(w *World) {
	c.world = w
	c.log = &memTickLog{}
	c.audit = &memAudit{}
	w.SetTickLogger(c.log)
	w.SetAuditLogger(c.audit)
}

func (c *yardContext) theYard() error {
	w, err := c.build(testTuning())
	if err != nil {
		return err
	}
	c.attach(w)
	return nil
}

func (c *yardContext) theYardWithNoPoolFor(kind string) error {
	tu := testTuning()
	tu.PoolWarm = map[string]int{kind: 0}
	w, err := c.build(tu)
	if err != nil {
		return err
	}
	c.attach(w)
	return nil
}

func (c *yardContext) twoCopiesOfTheYard() error {
	if err := c.theYard(); err != nil {
		return err
	}
	twin, err := c.build(testTuning())
	if err != nil {
		return err
	}
	c.twin = twin
	return nil
}

func (c *yardContext) thePlayerLevelsUpFacility(id string) error {
	c.pending = append(c.pending, InputEnvelope{
		AgentID: "player",
		Input:   protocol.InputMsg{Action: protocol.ActionLevelUpFacility, Target: id},
	})
	return nil
}

func (c *yardContext) theWorldRunsFor(n int) error {
	for i := 0; i < n; i++ {
		c.world.StepOnce(c.pending)
		c.pending = nil
	}
	return nil
}

func (c *yardContext) bothRunWithTheScriptedPlayer(n int) error {
	for i := 0; i < n; i++ {
		ta, da := c.world.StepOnce(scriptedInputs(uint64(i)))
		_, db := c.twin.StepOnce(scriptedInputs(uint64(i)))
		if da != db && c.diverge == "" {
			c.diverge = fmt.Sprintf("tick %d: %s != %s", ta, da, db)
		}
	}
	return nil
}

func (c *yardContext) everyTickDigestMatches() error {
	if c.diverge != "" {
		return fmt.Errorf("digests diverged at %s", c.diverge)
	}
	return nil
}

func (c *yardContext) facilityHasProducedAtLeast(id string, n int) error {
	f, ok := c.world.Facility(model.FacilityID(id))
	if !ok {
		return fmt.Errorf("no facility %s", id)
	}
	if f.Produced() < n {
		return fmt.Errorf("facility %s produced %d, want at least %d", id, f.Produced(), n)
	}
	return nil
}

func (c *yardContext) noInvariantWasViolated() error {
	if v := c.world.Metrics().Violations; v != 0 {
		return fmt.Errorf("%d invariant violations: %v", v, c.log.events(events.InvariantBroken))
	}
	return nil
}

func (c *yardContext) facilityIsAtLevel(id string, level, capacity int, pt float64) error {
	f, ok := c.world.Facility(model.FacilityID(id))
	if !ok {
		return fmt.Errorf("no facility %s", id)
	}
	rt := f.Runtime()
	if f.Level() != level || rt.Capacity != capacity || rt.ProductionTime != pt {
		return fmt.Errorf("facility %s: level %d capacity %d production time %g", id, f.Level(), rt.Capacity, rt.ProductionTime)
	}
	return nil
}

func (c *yardContext) theLastLevelUpWasRefusedWith(code string) error {
	if len(c.audit.entries) == 0 {
		return fmt.Errorf("no audit entries")
	}
	last := c.audit.entries[len(c.audit.entries)-1]
	if last.Reason != code {
		return fmt.Errorf("last level-up reason %q, want %q", last.Reason, code)
	}
	return nil
}

func (c *yardContext) facilityIsBroken(id string) error {
	f, ok := c.world.Facility(model.FacilityID(id))
	if !ok {
		return fmt.Errorf("no facility %s", id)
	}
	if !f.Broken() {
		return fmt.Errorf("facility %s is not broken", id)
	}
	return nil
}

func (c *yardContext) anEventWasEmittedFor(typ, facility string) error {
	for _, e := range c.log.events(events.Type(typ)) {
		if e.Facility == facility {
			return nil
		}
	}
	return fmt.Errorf("no %s event for %s", typ, facility)
}

func InitializeScenario(sc *godog.ScenarioContext) {
	c := &yardContext{}
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*c = yardContext{}
		return ctx, nil
	})

	sc.Step(`^the yard$`, c.theYard)
	sc.Step(`^the yard with no pool for "([^"]*)"$`, c.theYardWithNoPoolFor)
	sc.Step(`^two copies of the yard$`, c.twoCopiesOfTheYard)
	sc.Step(`^the player levels up facility "([^"]*)"$`, c.thePlayerLevelsUpFacility)
	sc.Step(`^the world runs for (\d+) ticks?$`, c.theWorldRunsFor)
	sc.Step(`^both run for (\d+) ticks with the scripted player$`, c.bothRunWithTheScriptedPlayer)
	sc.Step(`^every tick digest matches$`, c.everyTickDigestMatches)
	sc.Step(`^facility "([^"]*)" has produced at least (\d+) items?$`, c.facilityHasProducedAtLeast)
	sc.Step(`^no invariant was violated$`, c.noInvariantWasViolated)
	sc.Step(`^facility "([^"]*)" is at level (\d+) with capacity (\d+) and production time ([\d.]+)$`, c.facilityIsAtLevel)
	sc.Step(`^the last level-up was refused with "([^"]*)"$`, c.theLastLevelUpWasRefusedWith)
	sc.Step(`^facility "([^"]*)" is broken$`, c.facilityIsBroken)
	sc.Step(`^a "([^"]*)" event was emitted for "([^"]*)"$`, c.anEventWasEmittedFor)
}

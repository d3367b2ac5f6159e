package world

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/tuning"
)

const configDir = "../../../configs"

// testTuning runs one fixed step per tick with binary-exact tick lengths.
func testTuning() tuning.Tuning {
	tu := tuning.Defaults()
	tu.TickRateHz = 4
	tu.FixedStepHz = 4
	tu.AssignEveryTicks = 1
	return tu
}

func mustCatalogs(t testing.TB) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.Load(configDir)
	require.NoError(t, err)
	return c
}

func yardLayout(t testing.TB) Layout {
	t.Helper()
	l, err := LoadLayout(configDir + "/layout.yaml")
	require.NoError(t, err)
	return l
}

func newTestWorld(t testing.TB, tu tuning.Tuning, l Layout) *World {
	t.Helper()
	w, err := New(WorldConfig{ID: "test", RunID: "run-test", Tuning: tu}, Deps{Catalogs: mustCatalogs(t), Log: zerolog.Nop()}, l)
	require.NoError(t, err)
	return w
}

func stepN(w *World, n int) {
	for i := 0; i < n; i++ {
		w.StepOnce(nil)
	}
}

type memTickLog struct {
	entries []TickLogEntry
}

func (m *memTickLog) WriteTick(e TickLogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memTickLog) events(t events.Type) []events.Event {
	var out []events.Event
	for _, e := range m.entries {
		for _, ev := range e.Events {
			if ev.Type == t {
				out = append(out, ev)
			}
		}
	}
	return out
}

type memAudit struct {
	entries []AuditEntry
}

func (m *memAudit) WriteAudit(e AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type recordingSink struct {
	nopSink
	violations []string
}

func (r *recordingSink) InvariantViolation(kind string) { r.violations = append(r.violations, kind) }

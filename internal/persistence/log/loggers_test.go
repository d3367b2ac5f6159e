package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/world"
)

func TestTickLoggerRoundTripAcrossRotation(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	var sealed []string
	l := NewTickLoggerWithOptions(dir, Options{
		Now:    func() time.Time { return now },
		OnSeal: func(p string) { sealed = append(sealed, filepath.Base(p)) },
	})

	require.NoError(t, l.WriteTick(world.TickLogEntry{Tick: 0, RunID: "r1", Start: &world.RunStart{WorldID: "yard"}, Digest: "d0"}))
	require.NoError(t, l.WriteTick(world.TickLogEntry{Tick: 1, Digest: "d1", Events: []events.Event{{Tick: 1, Type: events.ItemProduced}}}))
	now = now.Add(2 * time.Minute)
	require.NoError(t, l.WriteTick(world.TickLogEntry{Tick: 2, Digest: "d2"}))
	assert.Equal(t, []string{"ticks-2026-03-01-10.jsonl.zst"}, sealed)
	assert.Equal(t, uint64(3), l.Lines())
	require.NoError(t, l.Close())
	assert.Len(t, sealed, 2)

	files, err := TickFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "ticks-2026-03-01-10.jsonl.zst", filepath.Base(files[0]))
	assert.Equal(t, "ticks-2026-03-01-11.jsonl.zst", filepath.Base(files[1]))

	var got []world.TickLogEntry
	require.NoError(t, ReadTicks(dir, func(e world.TickLogEntry) error {
		got = append(got, e)
		return nil
	}))
	require.Len(t, got, 3)
	assert.Equal(t, "r1", got[0].RunID)
	require.NotNil(t, got[0].Start)
	assert.Equal(t, "yard", got[0].Start.WorldID)
	assert.Equal(t, events.ItemProduced, got[1].Events[0].Type)
	assert.Equal(t, "d2", got[2].Digest)
}

func TestJournalShortPeriod(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 10, 14, 59, 0, time.UTC)
	j := OpenJournal(dir, "x", Options{Period: 15 * time.Minute, Now: func() time.Time { return now }})
	require.NoError(t, j.Append(map[string]int{"a": 1}))
	now = now.Add(time.Second)
	require.NoError(t, j.Append(map[string]int{"a": 2}))
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	files, err := filepath.Glob(filepath.Join(dir, "x-*.jsonl.zst"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "x-2026-03-01-10-00.jsonl.zst", filepath.Base(files[0]))
	assert.Equal(t, "x-2026-03-01-10-15.jsonl.zst", filepath.Base(files[1]))
}

func TestReadTicksWithoutJournal(t *testing.T) {
	err := ReadTicks(t.TempDir(), func(world.TickLogEntry) error { return nil })
	assert.Error(t, err)
}

func TestAuditLoggerWritesCompressedFile(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	require.NoError(t, l.WriteAudit(world.AuditEntry{Tick: 3, Actor: "player", Action: "LEVEL_UP_FACILITY", Target: "smelter-1", Cost: 80}))
	require.NoError(t, l.Close())

	files, err := filepath.Glob(filepath.Join(dir, "audit", "audit-*.jsonl.zst"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	st, err := os.Stat(files[0])
	require.NoError(t, err)
	assert.Positive(t, st.Size())
}

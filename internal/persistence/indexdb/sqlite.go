// Package indexdb is the SQLite read model of a run: facility state, tick digests, the event stream
// with cursors, and the audit trail. Writes are queued and applied by one writer goroutine so the
// world loop never waits on disk.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/facility"
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/tuning"
	"factorysim.ai/internal/sim/world"
)

const (
	defaultQueue  = 65536
	commitEvery   = 2000
	commitMaxWait = 250 * time.Millisecond
	maxBatchLimit = 1000
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqEvents
	reqAudit
	reqFacility
)

type req struct {
	kind reqKind

	runID    string
	tick     world.TickLogEntry
	events   []events.Event
	audit    world.AuditEntry
	facility facility.State
}

// Stats is the writer queue health.
type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTotal     uint64 `json:"drop_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, defaultQueue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS facilities (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			level INTEGER NOT NULL,
			produced INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			inputs INTEGER NOT NULL,
			events INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			cursor INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			type TEXT NOT NULL,
			facility TEXT,
			station TEXT,
			agent TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_cursor ON events(type, cursor);`,
		`CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			target TEXT NOT NULL,
			cost INTEGER NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{QueueDepth: len(s.ch), QueueCapacity: cap(s.ch), DropTotal: s.dropped.Load()}
}

// enqueue never blocks; when the writer falls behind the request is dropped and counted. The
// compressed journals remain the source of truth.
func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	s.enqueue(req{kind: reqTick, tick: entry})
	return nil
}

func (s *SQLiteIndex) WriteEvents(runID string, evs []events.Event) {
	if len(evs) == 0 {
		return
	}
	s.enqueue(req{kind: reqEvents, runID: runID, events: evs})
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	s.enqueue(req{kind: reqAudit, audit: entry})
	return nil
}

// SaveFacility queues a facility state upsert.
func (s *SQLiteIndex) SaveFacility(st facility.State) error {
	if s == nil || s.closed.Load() {
		return errors.New("indexdb: closed")
	}
	s.enqueue(req{kind: reqFacility, facility: st})
	return nil
}

// LoadFacility reads the last committed state of id.
func (s *SQLiteIndex) LoadFacility(id model.FacilityID) (facility.State, bool, error) {
	var st facility.State
	row := s.db.QueryRow(`SELECT id, kind, level, produced FROM facilities WHERE id = ?`, string(id))
	var sid string
	if err := row.Scan(&sid, &st.Kind, &st.Level, &st.Produced); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return st, false, nil
		}
		return st, false, err
	}
	st.ID = model.FacilityID(sid)
	return st, true, nil
}

// EventRow is one indexed event with its cursor.
type EventRow struct {
	Cursor int64
	RunID  string
	Event  events.Event
}

// EventsSince returns up to limit events with a cursor greater than since, oldest first, optionally
// filtered by type. next is the cursor to resume from.
func (s *SQLiteIndex) EventsSince(ctx context.Context, since int64, limit int, typ events.Type) (rows []EventRow, next int64, err error) {
	if limit <= 0 || limit > maxBatchLimit {
		limit = maxBatchLimit
	}
	q := `SELECT cursor, run_id, raw_json FROM events WHERE cursor > ?`
	args := []any{since}
	if typ != "" {
		q += ` AND type = ?`
		args = append(args, string(typ))
	}
	q += ` ORDER BY cursor LIMIT ?`
	args = append(args, limit)

	rs, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, since, err
	}
	defer rs.Close()
	next = since
	for rs.Next() {
		var r EventRow
		var raw string
		if err := rs.Scan(&r.Cursor, &r.RunID, &raw); err != nil {
			return nil, since, err
		}
		if err := json.Unmarshal([]byte(raw), &r.Event); err != nil {
			return nil, since, err
		}
		rows = append(rows, r)
		next = r.Cursor
	}
	return rows, next, rs.Err()
}

// TickDigest returns the recorded digest of tick in run.
func (s *SQLiteIndex) TickDigest(ctx context.Context, runID string, tick uint64) (string, bool, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM ticks WHERE run_id = ? AND tick = ?`, runID, int64(tick)).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return d, true, nil
}

// UpsertCatalogs records the catalogs and tuning a run was started with.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	read := func(name, file, digest string) {
		if configDir == "" {
			return
		}
		b, err := os.ReadFile(filepath.Join(configDir, file))
		if err != nil {
			return
		}
		rows = append(rows, kv{name: name, digest: digest, json: b})
	}
	read("items", "items.json", cats.Items.Digest)
	read("facilities", "facilities.json", cats.Facilities.Digest)
	read("agents", "agents.json", cats.Agents.Digest)
	if b, _ := json.Marshal(cats.Items.Palette); len(b) > 0 {
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "items_palette", digest: hex.EncodeToString(sum[:]), json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CatalogDigest returns the stored digest of a catalog row.
func (s *SQLiteIndex) CatalogDigest(name string) (string, error) {
	var d string
	err := s.db.QueryRow(`SELECT digest FROM catalogs WHERE name = ?`, name).Scan(&d)
	return d, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(run_id,tick,digest,inputs,events) VALUES(?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT INTO events(run_id,tick,type,facility,station,agent,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,actor,action,target,cost,reason,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	upsertFacility, _ := s.db.Prepare(`INSERT OR REPLACE INTO facilities(id,kind,level,produced,updated_at) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertEvent, insertAudit, upsertFacility} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx         *sql.Tx
		opCount    int
		lastCommit = time.Now()

		runID         string
		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	// Commit on a timer too, so readers see recent writes during quiet periods.
	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		var r req
		var ok bool
		select {
		case r, ok = <-s.ch:
			if !ok {
				commit()
				return
			}
		case <-ticker.C:
			commit()
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			if r.tick.RunID != "" {
				runID = r.tick.RunID
			}
			exec(insertTick, runID, int64(r.tick.Tick), r.tick.Digest, len(r.tick.Inputs), len(r.tick.Events))

		case reqEvents:
			for _, e := range r.events {
				raw, _ := json.Marshal(e)
				if !exec(insertEvent, r.runID, int64(e.Tick), string(e.Type), e.Facility, e.Station, e.Agent, string(raw)) {
					break
				}
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			exec(insertAudit, int64(a.Tick), seq, a.Actor, a.Action, a.Target, a.Cost, a.Reason, string(raw))

		case reqFacility:
			f := r.facility
			exec(upsertFacility, string(f.ID), f.Kind, f.Level, f.Produced, time.Now().UTC().Format(time.RFC3339Nano))
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
}

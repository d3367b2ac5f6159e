// Package log writes the tick and audit journals: zstd-compressed JSONL split into one segment per
// period (hourly unless configured otherwise).
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"factorysim.ai/internal/sim/world"
)

const (
	ticksDir    = "ticks"
	ticksPrefix = "ticks"
	auditDir    = "audit"
	auditPrefix = "audit"
)

// Options tune a journal. Zero values mean hourly segments on the wall clock.
type Options struct {
	Period time.Duration
	Now    func() time.Time
	// OnSeal is called with the path of every segment once it is complete on disk.
	OnSeal func(path string)
}

// Journal is an append-only JSONL stream. Every Append is flushed through the compressor so a
// crash loses at most the current frame.
type Journal struct {
	dir    string
	prefix string
	period time.Duration
	now    func() time.Time
	onSeal func(string)

	mu    sync.Mutex
	seg   *segment
	lines uint64
}

type segment struct {
	key  string
	path string
	f    *os.File
	enc  *zstd.Encoder
	buf  *bufio.Writer
}

func OpenJournal(dir, prefix string, opts Options) *Journal {
	j := &Journal{
		dir:    dir,
		prefix: prefix,
		period: opts.Period,
		now:    opts.Now,
		onSeal: opts.OnSeal,
	}
	if j.period <= 0 {
		j.period = time.Hour
	}
	if j.now == nil {
		j.now = time.Now
	}
	return j
}

func (j *Journal) Append(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	key := j.segmentKey(j.now())
	if j.seg == nil || j.seg.key != key {
		if err := j.sealLocked(); err != nil {
			return err
		}
		seg, err := j.openSegment(key)
		if err != nil {
			return err
		}
		j.seg = seg
	}
	if _, err := j.seg.buf.Write(append(b, '\n')); err != nil {
		return err
	}
	if err := j.seg.buf.Flush(); err != nil {
		return err
	}
	j.lines++
	return j.seg.enc.Flush()
}

// Lines is how many entries were appended since the journal was opened.
func (j *Journal) Lines() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lines
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sealLocked()
}

func (j *Journal) segmentKey(t time.Time) string {
	t = t.UTC().Truncate(j.period)
	if j.period%time.Hour == 0 {
		return t.Format("2006-01-02-15")
	}
	return t.Format("2006-01-02-15-04")
}

func (j *Journal) openSegment(key string) (*segment, error) {
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(j.dir, fmt.Sprintf("%s-%s.jsonl.zst", j.prefix, key))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{key: key, path: path, f: f, enc: enc, buf: bufio.NewWriterSize(enc, 64*1024)}, nil
}

func (j *Journal) sealLocked() error {
	seg := j.seg
	if seg == nil {
		return nil
	}
	j.seg = nil
	err := errors.Join(seg.buf.Flush(), seg.enc.Close(), seg.f.Close())
	if err == nil && j.onSeal != nil {
		j.onSeal(seg.path)
	}
	return err
}

// TickLogger journals one world.TickLogEntry per tick under <run>/ticks.
type TickLogger struct{ j *Journal }

func NewTickLogger(runDir string) *TickLogger { return NewTickLoggerWithOptions(runDir, Options{}) }

func NewTickLoggerWithOptions(runDir string, opts Options) *TickLogger {
	return &TickLogger{j: OpenJournal(filepath.Join(runDir, ticksDir), ticksPrefix, opts)}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.j.Append(v) }
func (l *TickLogger) Lines() uint64                        { return l.j.Lines() }
func (l *TickLogger) Close() error                         { return l.j.Close() }

// AuditLogger journals level-up decisions under <run>/audit.
type AuditLogger struct{ j *Journal }

func NewAuditLogger(runDir string) *AuditLogger { return NewAuditLoggerWithOptions(runDir, Options{}) }

func NewAuditLoggerWithOptions(runDir string, opts Options) *AuditLogger {
	return &AuditLogger{j: OpenJournal(filepath.Join(runDir, auditDir), auditPrefix, opts)}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.j.Append(v) }
func (l *AuditLogger) Close() error                        { return l.j.Close() }

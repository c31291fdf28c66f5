package logs

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Entry is one captured log line.
type Entry struct {
	TimeStamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Ring keeps the last maxSize entries in memory.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	maxSize int
}

func NewRing(maxSize int) *Ring {
	return &Ring{
		entries: make([]Entry, 0, maxSize),
		maxSize: maxSize,
	}
}

func (r *Ring) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= r.maxSize {
		// drop the oldest
		r.entries = r.entries[1:]
	}
	r.entries = append(r.entries, e)
}

// GetLast returns up to n of the newest entries, oldest first.
func (r *Ring) GetLast(n int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > len(r.entries) {
		n = len(r.entries)
	}
	if n < 0 {
		n = 0
	}

	out := make([]Entry, n)
	copy(out, r.entries[len(r.entries)-n:])
	return out
}

// Core returns a zapcore.Core writing into the ring at or above level.
func (r *Ring) Core(level zapcore.LevelEnabler) zapcore.Core {
	return &ringCore{LevelEnabler: level, ring: r}
}

// NewRingLogger is a logger that only writes to a fresh ring. Used by tests.
func NewRingLogger(maxSize int, level zapcore.Level) (*zap.Logger, *Ring) {
	ring := NewRing(maxSize)
	return zap.New(ring.Core(level)), ring
}

type ringCore struct {
	zapcore.LevelEnabler
	ring   *Ring
	fields []zapcore.Field
}

func (c *ringCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &ringCore{LevelEnabler: c.LevelEnabler, ring: c.ring, fields: merged}
}

func (c *ringCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *ringCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	var captured map[string]any
	if len(c.fields)+len(fields) > 0 {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range c.fields {
			f.AddTo(enc)
		}
		for _, f := range fields {
			f.AddTo(enc)
		}
		captured = enc.Fields
	}

	c.ring.add(Entry{
		TimeStamp: ent.Time,
		Level:     ent.Level.CapitalString(),
		Message:   ent.Message,
		Fields:    captured,
	})
	return nil
}

func (c *ringCore) Sync() error { return nil }

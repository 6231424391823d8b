// Package logging keeps a bounded in-memory history of log records so the
// HTTP interface can show recent activity.
package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is the number of entries kept before the oldest are dropped
const DefaultCapacity = 1000

// Entry is one recorded log line
type Entry struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// History is a ring of recent entries
type History struct {
	mu       sync.Mutex
	capacity int
	buffer   []Entry
	nextSeq  uint64
}

// NewHistory creates a history holding at most capacity entries
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity}
}

// Append records e, evicting the oldest entry when full
func (h *History) Append(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSeq++
	e.Sequence = h.nextSeq
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, e)
}

// Tail returns up to limit of the newest entries, oldest first. A limit of
// zero returns everything.
func (h *History) Tail(limit int) []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > len(h.buffer) {
		limit = len(h.buffer)
	}
	out := make([]Entry, limit)
	copy(out, h.buffer[len(h.buffer)-limit:])
	return out
}

// Filter returns entries at or above level, oldest first
func (h *History) Filter(level slog.Level) []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Entry
	for _, e := range h.buffer {
		var l slog.Level
		if err := l.UnmarshalText([]byte(e.Level)); err == nil && l >= level {
			out = append(out, e)
		}
	}
	return out
}

// Clear drops every entry
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buffer = nil
}

// Len returns the number of entries held
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buffer)
}

type historyHandler struct {
	next    slog.Handler
	history *History
	attrs   []slog.Attr
	group   string
}

// NewHandler tees records into history before passing them to next
func NewHandler(next slog.Handler, history *History) slog.Handler {
	if history == nil || next == nil {
		return next
	}
	return &historyHandler{next: next, history: history}
}

func (h *historyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *historyHandler) Handle(ctx context.Context, record slog.Record) error {
	h.history.Append(h.entry(record))
	return h.next.Handle(ctx, record)
}

func (h *historyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		merged = append(merged, a)
	}
	return &historyHandler{next: h.next.WithAttrs(attrs), history: h.history, attrs: merged, group: h.group}
}

func (h *historyHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &historyHandler{next: h.next.WithGroup(name), history: h.history, attrs: h.attrs, group: group}
}

func (h *historyHandler) entry(record slog.Record) Entry {
	e := Entry{
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   strings.TrimSpace(record.Message),
	}
	add := func(key string, v slog.Value) {
		key = strings.TrimSpace(key)
		if key == "" {
			return
		}
		if key == "component" {
			e.Component = v.String()
			return
		}
		if e.Fields == nil {
			e.Fields = make(map[string]string)
		}
		e.Fields[key] = v.Resolve().String()
	}
	for _, a := range h.attrs {
		add(a.Key, a.Value)
	}
	record.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		add(key, a.Value)
		return true
	})
	return e
}

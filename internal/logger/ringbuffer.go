package logger

import (
	"sync"

	"github.com/rs/zerolog"
)

// history keeps the most recent log entries for the dashboard, oldest first.
type history struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = 1
	}
	return &history{entries: make([]LogEntry, capacity)}
}

func (h *history) add(e LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.next] = e
	h.next = (h.next + 1) % len(h.entries)
	if h.next == 0 {
		h.full = true
	}
}

func (h *history) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.entries)
	}
	return h.next
}

// matching returns up to limit of the newest entries at or above min, in
// chronological order. Entries with an unparseable level always match.
// A limit of 0 returns every match.
func (h *history) matching(min zerolog.Level, limit int) []LogEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.next
	if h.full {
		n = len(h.entries)
	}

	var out []LogEntry
	for i := 1; i <= n; i++ {
		e := h.entries[(h.next-i+len(h.entries))%len(h.entries)]
		if lvl, err := zerolog.ParseLevel(e.Level); err == nil && lvl < min {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

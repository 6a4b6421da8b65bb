package logger

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

const defaultBufferSize = 1000

// EventLogEntry is the message type of streamed log entries.
const EventLogEntry = "logs:entry"

// Broadcaster is the interface for broadcasting messages.
type Broadcaster interface {
	Broadcast(msgType string, payload any) error
}

// LogEntry represents a parsed log entry for streaming.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LogBroadcaster implements io.Writer, keeps recent entries and forwards
// them to the dashboard hub.
type LogBroadcaster struct {
	hub        Broadcaster
	recent *history
	mu     sync.RWMutex
}

// NewLogBroadcaster creates a new log broadcaster.
// Hub can be nil initially and set later with SetHub.
func NewLogBroadcaster(hub Broadcaster, bufferSize int) *LogBroadcaster {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &LogBroadcaster{
		hub:    hub,
		recent: newHistory(bufferSize),
	}
}

// SetHub sets the broadcaster hub for sending messages.
func (b *LogBroadcaster) SetHub(hub Broadcaster) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hub = hub
}

// Write implements io.Writer. It receives JSON log entries from zerolog.
func (b *LogBroadcaster) Write(p []byte) (n int, err error) {
	n = len(p)

	entry, parseErr := b.parseLogEntry(p)
	if parseErr != nil {
		return n, nil //nolint:nilerr // Silently ignore malformed log entries
	}

	b.recent.add(entry)

	b.mu.RLock()
	hub := b.hub
	b.mu.RUnlock()

	if hub != nil {
		// A failed push must not log, or it would recurse.
		_ = hub.Broadcast(EventLogEntry, entry)
	}

	return n, nil
}

// GetRecentLogs returns all buffered log entries.
func (b *LogBroadcaster) GetRecentLogs() []LogEntry {
	return b.recent.matching(zerolog.TraceLevel, 0)
}

// Filter returns buffered entries at or above level, newest last, capped
// at limit when limit is positive.
func (b *LogBroadcaster) Filter(level string, limit int) []LogEntry {
	minLevel := zerolog.TraceLevel
	if level != "" {
		minLevel = parseLevel(level)
	}
	return b.recent.matching(minLevel, limit)
}

// parseLogEntry splits a zerolog JSON line into the well-known keys and
// the remaining structured fields.
func (b *LogBroadcaster) parseLogEntry(data []byte) (LogEntry, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return LogEntry{}, err
	}

	take := func(key string) string {
		v, ok := fields[key].(string)
		if ok {
			delete(fields, key)
		}
		return v
	}

	entry := LogEntry{
		Timestamp: take(zerolog.TimestampFieldName),
		Level:     take(zerolog.LevelFieldName),
		Component: take("component"),
		Message:   take(zerolog.MessageFieldName),
	}
	if len(fields) > 0 {
		entry.Fields = fields
	}
	return entry, nil
}

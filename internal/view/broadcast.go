package view

import (
	"github.com/rs/zerolog"

	"github.com/clipforge/clipforge/internal/formats"
	"github.com/clipforge/clipforge/internal/progress"
)

// Broadcaster publishes typed messages to connected dashboard clients.
type Broadcaster interface {
	Broadcast(msgType string, payload any) error
}

// Event types published by Broadcast.
const (
	EventItem    = "view:item"
	EventLinks   = "view:links"
	EventVideo   = "view:video"
	EventFormats = "view:formats"
	EventRange   = "view:range"
	EventSeek    = "view:seek"
	EventBusy    = "view:busy"
	EventIdle    = "view:idle"
	EventAlert   = "view:alert"
	EventStatus  = "view:status"
	EventReset   = "view:reset"
)

// Broadcast forwards every view change to a websocket hub.
type Broadcast struct {
	hub    Broadcaster
	logger zerolog.Logger
}

var _ Bindings = (*Broadcast)(nil)

// NewBroadcast creates a broadcasting view.
func NewBroadcast(hub Broadcaster, logger zerolog.Logger) *Broadcast {
	return &Broadcast{
		hub:    hub,
		logger: logger.With().Str("component", "view").Logger(),
	}
}

func (b *Broadcast) send(msgType string, payload any) {
	if err := b.hub.Broadcast(msgType, payload); err != nil {
		b.logger.Warn().Err(err).Str("type", msgType).Msg("Failed to broadcast view event")
	}
}

func (b *Broadcast) RenderItem(item progress.Item) {
	b.send(EventItem, item)
}

func (b *Broadcast) RenderLinks(title string, links []progress.Link) {
	b.send(EventLinks, map[string]any{"title": title, "links": links})
}

func (b *Broadcast) ShowVideo(title, thumbnail string) {
	b.send(EventVideo, map[string]string{"title": title, "thumbnail": thumbnail})
}

func (b *Broadcast) ShowFormats(options []formats.Option) {
	b.send(EventFormats, options)
}

func (b *Broadcast) ShowRange(start, end, duration string) {
	b.send(EventRange, map[string]string{"start": start, "end": end, "duration": duration})
}

func (b *Broadcast) Seek(seconds float64) {
	b.send(EventSeek, map[string]float64{"seconds": seconds})
}

func (b *Broadcast) SetBusy(control, label string) {
	b.send(EventBusy, map[string]string{"control": control, "label": label})
}

func (b *Broadcast) ClearBusy(control string) {
	b.send(EventIdle, map[string]string{"control": control})
}

func (b *Broadcast) Alert(msg string) {
	b.send(EventAlert, map[string]string{"message": msg})
}

func (b *Broadcast) ShowStatus(msg string) {
	b.send(EventStatus, map[string]string{"message": msg})
}

func (b *Broadcast) Reset() {
	b.send(EventReset, nil)
}

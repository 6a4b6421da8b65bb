// Package view provides the display bindings the flow controllers write
// to: a terminal, an HTML page model and a websocket broadcast.
package view

import (
	"github.com/clipforge/clipforge/internal/formats"
	"github.com/clipforge/clipforge/internal/progress"
	"github.com/clipforge/clipforge/internal/trim"
)

// Bindings is everything a controller may show to the user.
type Bindings interface {
	progress.Renderer
	formats.Display
	trim.Display

	// SetBusy marks a control as working and shows label on it.
	SetBusy(control, label string)
	// ClearBusy restores a control after its request finished.
	ClearBusy(control string)
	// Alert surfaces an error to the user.
	Alert(msg string)
	// ShowStatus replaces the inline status line of the current flow.
	ShowStatus(msg string)
	// Reset clears results of a previous action.
	Reset()
}

// Multi fans every call out to several bindings in order.
type Multi []Bindings

var _ Bindings = Multi(nil)

func (m Multi) RenderItem(item progress.Item) {
	for _, b := range m {
		b.RenderItem(item)
	}
}

func (m Multi) RenderLinks(title string, links []progress.Link) {
	for _, b := range m {
		b.RenderLinks(title, links)
	}
}

func (m Multi) ShowVideo(title, thumbnail string) {
	for _, b := range m {
		b.ShowVideo(title, thumbnail)
	}
}

func (m Multi) ShowFormats(options []formats.Option) {
	for _, b := range m {
		b.ShowFormats(options)
	}
}

func (m Multi) ShowRange(start, end, duration string) {
	for _, b := range m {
		b.ShowRange(start, end, duration)
	}
}

func (m Multi) Seek(seconds float64) {
	for _, b := range m {
		b.Seek(seconds)
	}
}

func (m Multi) SetBusy(control, label string) {
	for _, b := range m {
		b.SetBusy(control, label)
	}
}

func (m Multi) ClearBusy(control string) {
	for _, b := range m {
		b.ClearBusy(control)
	}
}

func (m Multi) Alert(msg string) {
	for _, b := range m {
		b.Alert(msg)
	}
}

func (m Multi) ShowStatus(msg string) {
	for _, b := range m {
		b.ShowStatus(msg)
	}
}

func (m Multi) Reset() {
	for _, b := range m {
		b.Reset()
	}
}

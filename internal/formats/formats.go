// Package formats holds the variant list of a source video and the
// user's choice among them.
package formats

import (
	"fmt"
	"strings"

	"github.com/clipforge/clipforge/internal/backend"
)

// Session is the state of one URL download flow.
type Session struct {
	URL      string
	Info     *backend.VideoInfo
	Selected *backend.Format
}

// Ready reports whether a download request may be issued.
func (s *Session) Ready() bool {
	return s.URL != "" && s.Selected != nil
}

// Reset clears the session before a new lookup.
func (s *Session) Reset() {
	*s = Session{}
}

// Option is one selectable variant.
type Option struct {
	ID     string         `json:"id"`
	Label  string         `json:"label"`
	Format backend.Format `json:"format"`
}

// Label renders "<resolution> • <EXT> • <size>" for a variant.
func Label(f backend.Format) string {
	res := f.DisplayResolution
	if res == "" {
		res = f.Resolution.String()
	}
	size := f.SizeStr
	if size == "" {
		size = "Unknown size"
	}
	return fmt.Sprintf("%s • %s • %s", res, strings.ToUpper(f.Ext), size)
}

// Display shows the result of a format lookup.
type Display interface {
	ShowVideo(title, thumbnail string)
	ShowFormats(options []Option)
}

// Selector renders the variants of a video and records the chosen one.
type Selector struct {
	session *Session
	display Display
	options []Option
}

// NewSelector creates a selector bound to a session.
func NewSelector(session *Session, display Display) *Selector {
	return &Selector{session: session, display: display}
}

// Load records a successful lookup and renders one option per variant.
func (s *Selector) Load(videoURL string, info *backend.VideoInfo) {
	s.session.URL = videoURL
	s.session.Info = info
	s.session.Selected = nil

	s.options = make([]Option, 0, len(info.Formats))
	for _, f := range info.Formats {
		s.options = append(s.options, Option{
			ID:     f.FormatID.String(),
			Label:  Label(f),
			Format: f,
		})
	}

	s.display.ShowVideo(info.Title, info.Thumbnail)
	s.display.ShowFormats(s.options)
}

// Options returns the rendered variants in backend order.
func (s *Selector) Options() []Option {
	return s.options
}

// Select records the variant with the given format id.
func (s *Selector) Select(id string) (backend.Format, error) {
	if s.session.URL == "" {
		return backend.Format{}, backend.Invalid(backend.ErrNoURL, "Please paste a video link.")
	}
	for _, opt := range s.options {
		if opt.ID == id {
			f := opt.Format
			s.session.Selected = &f
			return f, nil
		}
	}
	return backend.Format{}, backend.Invalid(backend.ErrNoFormatSelected,
		fmt.Sprintf("Format %q is not available for this video.", id))
}

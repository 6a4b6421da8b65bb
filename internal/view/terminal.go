package view

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/clipforge/clipforge/internal/formats"
	"github.com/clipforge/clipforge/internal/progress"
)

const barWidth = 20

// Terminal writes one line per view change.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
}

var _ Bindings = (*Terminal)(nil)

// NewTerminal creates a terminal view writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// Bar draws a fixed-width progress bar.
func Bar(percent int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * barWidth / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]"
}

func (t *Terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *Terminal) RenderItem(item progress.Item) {
	name := item.Name
	if item.File != "" && item.File != item.Name {
		name = fmt.Sprintf("%s (%s)", item.Name, item.File)
	}
	t.printf("%s %-18s %s\n", Bar(item.Percent), item.Label(), name)
}

func (t *Terminal) RenderLinks(title string, links []progress.Link) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, title)
	for _, l := range links {
		fmt.Fprintf(t.out, "  Download: %s  %s\n", l.Name, l.Href)
	}
}

func (t *Terminal) ShowVideo(title, thumbnail string) {
	t.printf("%s\n", title)
	if thumbnail != "" {
		t.printf("  thumbnail: %s\n", thumbnail)
	}
}

func (t *Terminal) ShowFormats(options []formats.Option) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(options) == 0 {
		fmt.Fprintln(t.out, "No formats available.")
		return
	}
	fmt.Fprintln(t.out, "Select Format:")
	for i, opt := range options {
		fmt.Fprintf(t.out, "  %2d) %-8s %s\n", i+1, opt.ID, opt.Label)
	}
}

func (t *Terminal) ShowRange(start, end, duration string) {
	t.printf("range %s - %s (duration %s)\n", start, end, duration)
}

func (t *Terminal) Seek(seconds float64) {}

func (t *Terminal) SetBusy(control, label string) {
	t.printf("%s\n", label)
}

func (t *Terminal) ClearBusy(control string) {}

func (t *Terminal) Alert(msg string) {
	t.printf("Error: %s\n", msg)
}

func (t *Terminal) ShowStatus(msg string) {
	t.printf("%s\n", msg)
}

func (t *Terminal) Reset() {}

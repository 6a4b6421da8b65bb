// Package progress projects task status snapshots onto per-item progress
// slots and pushes the changes to a renderer.
package progress

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sync"

	"github.com/rs/zerolog"

	"github.com/clipforge/clipforge/internal/backend"
)

// State is the display state of one item slot.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
)

// Item is the rendered state of one unit of work.
type Item struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	State   State  `json:"state"`
	Percent int    `json:"percent"`
	// File is the backend's name for the item while it is processed.
	File string `json:"file,omitempty"`
}

// Label returns the status text shown next to the bar.
func (i Item) Label() string {
	switch i.State {
	case StateCompleted:
		return "100% - Done"
	case StateProcessing:
		return fmt.Sprintf("%d%% - Processing", i.Percent)
	default:
		return "0% - Waiting"
	}
}

// Link is a downloadable output.
type Link struct {
	Name string `json:"name" yaml:"name"`
	Href string `json:"href" yaml:"href"`
}

// Renderer displays item slots and output links.
type Renderer interface {
	RenderItem(item Item)
	RenderLinks(title string, links []Link)
}

// Derive computes the state of every slot 0..total-1 for a task that is
// working on the 1-based item current.
func Derive(total, current int, percent float64) []Item {
	if total < 0 {
		total = 0
	}
	pct := clampPercent(percent)

	items := make([]Item, total)
	for i := range items {
		items[i].Index = i
		switch {
		case i < current-1:
			items[i].State = StateCompleted
			items[i].Percent = 100
		case i == current-1:
			if pct >= 100 {
				items[i].State = StateCompleted
				items[i].Percent = 100
			} else {
				items[i].State = StateProcessing
				items[i].Percent = pct
			}
		default:
			items[i].State = StatePending
		}
	}
	return items
}

func clampPercent(p float64) int {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(math.Round(p))
}

// uploadSuffix matches the "_<8 hex>" suffix the backend appends to
// uploaded names.
var uploadSuffix = regexp.MustCompile(`(?i)^(.+)_[a-f0-9]{8}\.(mp4|mov|avi|mkv|webm)$`)

// DisplayName strips the backend's uniqueness suffix from a file name.
func DisplayName(file string) string {
	m := uploadSuffix.FindStringSubmatch(file)
	if m == nil {
		return file
	}
	return m[1] + "." + m[2]
}

// Linker maps an output name to its download link.
type Linker func(name string) string

// PathLinker links names under prefix, escaping each name as one path
// segment.
func PathLinker(prefix string) Linker {
	return func(name string) string {
		return prefix + url.PathEscape(name)
	}
}

// View keeps the last rendered state of every slot and only forwards
// changes to its renderer, so repeated snapshots are invisible.
type View struct {
	renderer Renderer
	linker   Linker
	logger   zerolog.Logger

	mu    sync.Mutex
	names []string
	items []Item
	links []Link
}

// NewView creates a view with one slot per name.
func NewView(renderer Renderer, names []string, linker Linker, logger zerolog.Logger) *View {
	return &View{
		renderer: renderer,
		names:    append([]string(nil), names...),
		linker:   linker,
		logger:   logger.With().Str("component", "progress").Logger(),
	}
}

// Init renders every slot as pending.
func (v *View) Init() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.apply(Derive(len(v.names), 0, 0))
}

// Observe applies a snapshot. Error snapshots leave the slots untouched.
func (v *View) Observe(snap *backend.StatusSnapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch snap.Status {
	case backend.StatusPending, backend.StatusProcessing:
		items := Derive(v.slotCount(snap.Total), snap.Current, snap.Percent)
		if snap.File != "" && snap.Current >= 1 && snap.Current <= len(items) {
			items[snap.Current-1].File = DisplayName(snap.File)
		}
		v.apply(items)

	case backend.StatusDone:
		total := v.slotCount(snap.Total)
		if n := len(snap.Files); n > total && n <= backend.MaxTaskItems {
			total = n
		}
		items := Derive(total, total+1, 0)
		v.apply(items)
		v.renderLinks(snap.Files)

	case backend.StatusError:
		v.logger.Debug().Str("error", snap.Error).Msg("Task failed, keeping last progress")

	default:
		v.logger.Warn().Str("status", string(snap.Status)).Msg("Ignoring unknown task status")
	}
}

// Items returns a copy of the rendered slots.
func (v *View) Items() []Item {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Item(nil), v.items...)
}

// Links returns the rendered output links.
func (v *View) Links() []Link {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Link(nil), v.links...)
}

// LinkFor builds the download link of an output name.
func (v *View) LinkFor(name string) Link {
	return Link{Name: name, Href: v.linker(name)}
}

// slotCount falls back to the local names when the reported total is
// missing or implausibly large.
func (v *View) slotCount(total int) int {
	if total > backend.MaxTaskItems {
		v.logger.Warn().Int("total", total).Msg("Ignoring implausible item count")
		return len(v.names)
	}
	if total > 0 {
		return total
	}
	return len(v.names)
}

func (v *View) apply(items []Item) {
	for i := range items {
		if i < len(v.names) {
			items[i].Name = v.names[i]
		} else {
			items[i].Name = fmt.Sprintf("Item %d", i+1)
		}

		if i < len(v.items) && v.items[i] == items[i] {
			continue
		}
		v.renderer.RenderItem(items[i])
	}

	// Slots the backend no longer reports keep their last state.
	if len(items) >= len(v.items) {
		v.items = items
	} else {
		copy(v.items, items)
	}
}

func (v *View) renderLinks(files []string) {
	links := make([]Link, len(files))
	for i, f := range files {
		links[i] = v.LinkFor(f)
	}
	if v.links != nil && equalLinks(v.links, links) {
		return
	}
	v.links = links
	v.renderer.RenderLinks("Download Links:", links)
}

func equalLinks(a, b []Link) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

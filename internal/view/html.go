package view

import (
	"bytes"
	"html/template"
	"sort"
	"sync"

	"github.com/clipforge/clipforge/internal/formats"
	"github.com/clipforge/clipforge/internal/progress"
)

// Page is the state rendered by the HTML view.
type Page struct {
	Busy         map[string]string `json:"busy"`
	Alert        string            `json:"alert,omitempty"`
	Status       string            `json:"status,omitempty"`
	VideoTitle   string            `json:"videoTitle,omitempty"`
	Thumbnail    string            `json:"thumbnail,omitempty"`
	FormatsShown bool              `json:"formatsShown"`
	Formats      []formats.Option  `json:"formats,omitempty"`
	Items        []progress.Item   `json:"items"`
	LinksTitle   string            `json:"linksTitle,omitempty"`
	Links        []progress.Link   `json:"links,omitempty"`
	Range        *RangeState       `json:"range,omitempty"`
}

// RangeState is the trim range as displayed.
type RangeState struct {
	Start    string  `json:"start"`
	End      string  `json:"end"`
	Duration string  `json:"duration"`
	Preview  float64 `json:"preview"`
}

var pageTemplate = template.Must(template.New("page").Parse(`<div id="app">
{{- range .BusyList}}
<button class="busy" data-control="{{.Control}}" disabled>{{.Label}}</button>
{{- end}}
{{- if .Alert}}
<div class="alert" role="alert">{{.Alert}}</div>
{{- end}}
{{- if .Status}}
<p id="status">{{.Status}}</p>
{{- end}}
{{- if .VideoTitle}}
<div id="video-info"><img id="thumbnail" src="{{.Thumbnail}}" alt=""><span id="video-title">{{.VideoTitle}}</span></div>
{{- end}}
<div id="formats-list">
{{- if .FormatsShown}}
{{- if .Formats}}
<h4>Select Format:</h4>
{{- range .Formats}}
<button class="format" data-format-id="{{.ID}}">{{.Label}}</button>
{{- end}}
{{- else}}
<p>No formats available.</p>
{{- end}}
{{- end}}
</div>
<div id="progress-container">
{{- range .Items}}
<div class="file-progress" data-state="{{.State}}">
<strong>{{.Name}}</strong>
<div class="file-status">{{.State}}</div>
<progress id="progress-{{.Index}}" value="{{.Percent}}" max="100"></progress>
<span id="percent-{{.Index}}">{{.Label}}</span>
</div>
{{- end}}
</div>
<div id="downloads">
{{- if .LinksTitle}}
<h4>{{.LinksTitle}}</h4>
{{- range .Links}}
<a class="download-link" href="{{.Href}}" download="{{.Name}}">Download: {{.Name}}</a><br>
{{- end}}
{{- end}}
</div>
{{- with .Range}}
<div id="range"><span id="start-time">{{.Start}}</span><span id="end-time">{{.End}}</span><span id="duration-time">{{.Duration}}</span><span id="preview-time">{{printf "%.1f" .Preview}}</span></div>
{{- end}}
</div>
`))

type busyEntry struct {
	Control string
	Label   string
}

// HTML keeps a page model equivalent to the browser client's DOM.
type HTML struct {
	mu   sync.RWMutex
	page Page
}

var _ Bindings = (*HTML)(nil)

// NewHTML creates an empty page.
func NewHTML() *HTML {
	return &HTML{page: Page{Busy: make(map[string]string)}}
}

// Snapshot returns a copy of the page state.
func (h *HTML) Snapshot() Page {
	h.mu.RLock()
	defer h.mu.RUnlock()

	p := h.page
	p.Busy = make(map[string]string, len(h.page.Busy))
	for k, v := range h.page.Busy {
		p.Busy[k] = v
	}
	p.Formats = append([]formats.Option(nil), h.page.Formats...)
	p.Items = append([]progress.Item(nil), h.page.Items...)
	p.Links = append([]progress.Link(nil), h.page.Links...)
	if h.page.Range != nil {
		r := *h.page.Range
		p.Range = &r
	}
	return p
}

// Render returns the page as an HTML fragment.
func (h *HTML) Render() (string, error) {
	p := h.Snapshot()

	busy := make([]busyEntry, 0, len(p.Busy))
	for control, label := range p.Busy {
		busy = append(busy, busyEntry{Control: control, Label: label})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Control < busy[j].Control })

	data := struct {
		Page
		BusyList []busyEntry
	}{Page: p, BusyList: busy}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (h *HTML) RenderItem(item progress.Item) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for len(h.page.Items) <= item.Index {
		idx := len(h.page.Items)
		h.page.Items = append(h.page.Items, progress.Item{Index: idx, State: progress.StatePending})
	}
	h.page.Items[item.Index] = item
}

func (h *HTML) RenderLinks(title string, links []progress.Link) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.page.LinksTitle = title
	h.page.Links = append([]progress.Link(nil), links...)
}

func (h *HTML) ShowVideo(title, thumbnail string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.page.VideoTitle = title
	h.page.Thumbnail = thumbnail
}

func (h *HTML) ShowFormats(options []formats.Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.page.FormatsShown = true
	h.page.Formats = append([]formats.Option(nil), options...)
}

func (h *HTML) ShowRange(start, end, duration string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.page.Range == nil {
		h.page.Range = &RangeState{}
	}
	h.page.Range.Start = start
	h.page.Range.End = end
	h.page.Range.Duration = duration
}

func (h *HTML) Seek(seconds float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.page.Range == nil {
		h.page.Range = &RangeState{}
	}
	h.page.Range.Preview = seconds
}

func (h *HTML) SetBusy(control, label string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.page.Busy[control] = label
}

func (h *HTML) ClearBusy(control string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.page.Busy, control)
}

func (h *HTML) Alert(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.page.Alert = msg
}

func (h *HTML) ShowStatus(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.page.Status = msg
}

// Reset clears results but keeps busy controls.
func (h *HTML) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.page = Page{Busy: h.page.Busy}
}

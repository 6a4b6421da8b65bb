package progress

import (
	"fmt"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/backend"
)

type fakeRenderer struct {
	items     []Item
	linkCalls [][]Link
}

func (f *fakeRenderer) RenderItem(item Item) {
	f.items = append(f.items, item)
}

func (f *fakeRenderer) RenderLinks(title string, links []Link) {
	f.linkCalls = append(f.linkCalls, links)
}

func TestDerive_AllPositions(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for k := 1; k <= n; k++ {
			t.Run(fmt.Sprintf("total=%d/current=%d", n, k), func(t *testing.T) {
				items := Derive(n, k, 42)
				require.Len(t, items, n)
				for i, item := range items {
					assert.Equal(t, i, item.Index)
					switch {
					case i <= k-2:
						assert.Equal(t, StateCompleted, item.State)
						assert.Equal(t, 100, item.Percent)
					case i == k-1:
						assert.Equal(t, StateProcessing, item.State)
						assert.Equal(t, 42, item.Percent)
					default:
						assert.Equal(t, StatePending, item.State)
						assert.Equal(t, 0, item.Percent)
					}
				}
			})
		}
	}
}

func TestDerive_EdgeCases(t *testing.T) {
	t.Run("current item at 100 is completed", func(t *testing.T) {
		items := Derive(2, 1, 100)
		assert.Equal(t, StateCompleted, items[0].State)
		assert.Equal(t, StatePending, items[1].State)
	})

	t.Run("nothing started", func(t *testing.T) {
		for _, item := range Derive(3, 0, 0) {
			assert.Equal(t, StatePending, item.State)
		}
	})

	t.Run("percent is clamped", func(t *testing.T) {
		assert.Equal(t, 0, Derive(1, 1, -5)[0].Percent)
		assert.Equal(t, StateCompleted, Derive(1, 1, 250)[0].State)
		assert.Equal(t, 13, Derive(1, 1, 12.6)[0].Percent)
	})

	t.Run("negative total", func(t *testing.T) {
		assert.Empty(t, Derive(-1, 1, 0))
	})
}

func TestItem_Label(t *testing.T) {
	assert.Equal(t, "100% - Done", Item{State: StateCompleted}.Label())
	assert.Equal(t, "40% - Processing", Item{State: StateProcessing, Percent: 40}.Label())
	assert.Equal(t, "0% - Waiting", Item{State: StatePending}.Label())
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"holiday_1a2b3c4d.mp4": "holiday.mp4",
		"My_Clip_deadbeef.MKV": "My_Clip.MKV",
		"holiday.mp4":          "holiday.mp4",
		"notes_1a2b3c4d.txt":   "notes_1a2b3c4d.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, DisplayName(in), in)
	}
}

func TestView_Scenario(t *testing.T) {
	r := &fakeRenderer{}
	v := NewView(r, []string{"a.mp4", "b.mp4"}, PathLinker("/download/"), zerolog.Nop())
	v.Init()
	require.Len(t, r.items, 2)

	v.Observe(&backend.StatusSnapshot{Status: backend.StatusProcessing, Current: 1, Total: 2, Percent: 40, File: "a_0a1b2c3d.mp4"})
	v.Observe(&backend.StatusSnapshot{Status: backend.StatusProcessing, Current: 2, Total: 2, Percent: 90, File: "b_0a1b2c3d.mp4"})
	v.Observe(&backend.StatusSnapshot{Status: backend.StatusDone, Total: 2, Files: []string{"a_out.mp4", "b_out.mp4"}})

	items := v.Items()
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, StateCompleted, item.State)
		assert.Equal(t, 100, item.Percent)
	}
	assert.Equal(t, "a.mp4", items[0].Name)

	require.Len(t, r.linkCalls, 1)
	assert.Equal(t, []Link{
		{Name: "a_out.mp4", Href: "/download/a_out.mp4"},
		{Name: "b_out.mp4", Href: "/download/b_out.mp4"},
	}, r.linkCalls[0])
}

func TestView_CurrentFileIsShown(t *testing.T) {
	r := &fakeRenderer{}
	v := NewView(r, []string{"a.mp4"}, PathLinker("/download/"), zerolog.Nop())

	v.Observe(&backend.StatusSnapshot{Status: backend.StatusProcessing, Current: 1, Total: 1, Percent: 5, File: "a_0a1b2c3d.mp4"})
	assert.Equal(t, "a.mp4", v.Items()[0].File)
}

func TestView_Idempotent(t *testing.T) {
	r := &fakeRenderer{}
	v := NewView(r, []string{"a.mp4", "b.mp4"}, PathLinker("/download/"), zerolog.Nop())

	snap := &backend.StatusSnapshot{Status: backend.StatusProcessing, Current: 1, Total: 2, Percent: 40}
	v.Observe(snap)
	rendered := len(r.items)
	v.Observe(snap)
	assert.Equal(t, rendered, len(r.items))

	done := &backend.StatusSnapshot{Status: backend.StatusDone, Total: 2, Files: []string{"a_out.mp4"}}
	v.Observe(done)
	rendered = len(r.items)
	v.Observe(done)
	assert.Equal(t, rendered, len(r.items))
	assert.Len(t, r.linkCalls, 1)
}

func TestView_DoneOverridesLastProgress(t *testing.T) {
	r := &fakeRenderer{}
	v := NewView(r, []string{"a", "b", "c"}, PathLinker("/download/"), zerolog.Nop())

	v.Observe(&backend.StatusSnapshot{Status: backend.StatusProcessing, Current: 1, Total: 3, Percent: 3})
	v.Observe(&backend.StatusSnapshot{Status: backend.StatusDone, Current: 1, Percent: 3, Files: []string{}})

	for _, item := range v.Items() {
		assert.Equal(t, StateCompleted, item.State)
	}
}

func TestView_ErrorKeepsState(t *testing.T) {
	r := &fakeRenderer{}
	v := NewView(r, []string{"a", "b"}, PathLinker("/download/"), zerolog.Nop())

	v.Observe(&backend.StatusSnapshot{Status: backend.StatusProcessing, Current: 2, Total: 2, Percent: 50})
	before := v.Items()
	rendered := len(r.items)

	v.Observe(&backend.StatusSnapshot{Status: backend.StatusError, Error: "boom"})
	assert.Equal(t, before, v.Items())
	assert.Equal(t, rendered, len(r.items))
	assert.Empty(t, r.linkCalls)
}

func TestPathLinker(t *testing.T) {
	link := PathLinker("http://h/download/")
	assert.Equal(t, "http://h/download/my%20clip.mp4", link("my clip.mp4"))
}

func TestView_MoreSlotsThanNames(t *testing.T) {
	r := &fakeRenderer{}
	v := NewView(r, []string{"a"}, PathLinker("/download/"), zerolog.Nop())

	v.Observe(&backend.StatusSnapshot{Status: backend.StatusProcessing, Current: 2, Total: 2, Percent: 10})
	items := v.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Item 2", items[1].Name)
}

func TestView_ImplausibleTotalFallsBackToNames(t *testing.T) {
	r := &fakeRenderer{}
	v := NewView(r, []string{"a", "b"}, PathLinker("/download/"), zerolog.Nop())

	require.NotPanics(t, func() {
		v.Observe(&backend.StatusSnapshot{Status: backend.StatusProcessing, Current: 1, Total: math.MaxInt, Percent: 10})
	})
	items := v.Items()
	require.Len(t, items, 2)
	assert.Equal(t, StateProcessing, items[0].State)
	assert.Equal(t, 10, items[0].Percent)
	assert.Equal(t, StatePending, items[1].State)

	v.Observe(&backend.StatusSnapshot{Status: backend.StatusDone, Total: backend.MaxTaskItems + 1, Files: []string{"a_out.mp4"}})
	items = v.Items()
	require.Len(t, items, 2)
	assert.Equal(t, StateCompleted, items[1].State)
}

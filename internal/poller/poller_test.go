package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/backend"
)

type step struct {
	snap *backend.StatusSnapshot
	err  error
}

// scriptedSource replays steps in order and repeats the last one.
type scriptedSource struct {
	mu       sync.Mutex
	steps    []step
	calls    int
	inFlight int
	overlap  bool
}

func (s *scriptedSource) Status(ctx context.Context, taskID string) (*backend.StatusSnapshot, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > 1 {
		s.overlap = true
	}
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	st := s.steps[i]
	s.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return st.snap, st.err
}

type recordingSink struct {
	mu    sync.Mutex
	snaps []*backend.StatusSnapshot
}

func (r *recordingSink) Observe(snap *backend.StatusSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *recordingSink) statuses() []backend.TaskStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]backend.TaskStatus, len(r.snaps))
	for i, s := range r.snaps {
		out[i] = s.Status
	}
	return out
}

func newTestPoller(src StatusSource, maxFailures int) *Poller {
	return New(src, Config{Interval: time.Millisecond, MaxFailures: maxFailures}, zerolog.Nop())
}

func TestPoller_RunUntilDone(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{snap: &backend.StatusSnapshot{Status: backend.StatusPending}},
		{snap: &backend.StatusSnapshot{Status: backend.StatusProcessing, Current: 1, Total: 2, Percent: 40}},
		{snap: &backend.StatusSnapshot{Status: backend.StatusProcessing, Current: 2, Total: 2, Percent: 90}},
		{snap: &backend.StatusSnapshot{Status: backend.StatusDone, Total: 2, Files: []string{"a_out.mp4", "b_out.mp4"}}},
	}}
	sink := &recordingSink{}

	final, err := newTestPoller(src, 0).Run(context.Background(), "abc", sink)
	require.NoError(t, err)
	assert.Equal(t, backend.StatusDone, final.Status)
	assert.Equal(t, []backend.TaskStatus{
		backend.StatusPending,
		backend.StatusProcessing,
		backend.StatusProcessing,
		backend.StatusDone,
	}, sink.statuses())
	assert.Equal(t, 4, src.calls, "no query after the terminal snapshot")
	assert.False(t, src.overlap, "ticks must not overlap")
}

func TestPoller_ErrorIsTerminal(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{snap: &backend.StatusSnapshot{Status: backend.StatusError, Error: "ffmpeg crashed"}},
	}}
	sink := &recordingSink{}

	final, err := newTestPoller(src, 0).Run(context.Background(), "abc", sink)
	require.NoError(t, err)
	assert.Equal(t, "ffmpeg crashed", final.Error)
	assert.Equal(t, 1, src.calls)
}

func TestPoller_FailedTickKeepsPolling(t *testing.T) {
	transient := &backend.TransportError{Op: "task status", Err: errors.New("connection reset by peer")}
	src := &scriptedSource{steps: []step{
		{snap: &backend.StatusSnapshot{Status: backend.StatusProcessing, Current: 1, Total: 1, Percent: 10}},
		{err: transient},
		{err: transient},
		{snap: &backend.StatusSnapshot{Status: backend.StatusDone, Total: 1, Files: []string{"a_out.mp4"}}},
	}}
	sink := &recordingSink{}

	final, err := newTestPoller(src, 0).Run(context.Background(), "abc", sink)
	require.NoError(t, err)
	assert.Equal(t, backend.StatusDone, final.Status)
	assert.Equal(t, []backend.TaskStatus{backend.StatusProcessing, backend.StatusDone}, sink.statuses(),
		"failed ticks deliver nothing to the sink")
}

func TestPoller_MaxFailures(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{err: &backend.BackendError{Op: "task status", StatusCode: 404, Message: "Task not found"}},
	}}

	_, err := newTestPoller(src, 3).Run(context.Background(), "gone", &recordingSink{})
	assert.ErrorIs(t, err, ErrTooManyFailures)
	assert.Equal(t, 3, src.calls)
}

func TestPoller_StopHandle(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{snap: &backend.StatusSnapshot{Status: backend.StatusProcessing, Current: 1, Total: 1}},
	}}
	sink := &recordingSink{}

	h := newTestPoller(src, 0).Start(context.Background(), "abc", sink)
	require.Eventually(t, func() bool { return len(sink.statuses()) >= 2 }, time.Second, time.Millisecond)
	assert.True(t, h.Active())

	h.Stop()
	_, err := h.Wait()
	assert.ErrorIs(t, err, ErrStopped)
	assert.False(t, h.Active())

	h.Stop()
}

func TestPoller_StartCompletes(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{snap: &backend.StatusSnapshot{Status: backend.StatusDone, Files: []string{"x.mp4"}}},
	}}

	h := newTestPoller(src, 0).Start(context.Background(), "abc", SinkFunc(func(*backend.StatusSnapshot) {}))
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("poll loop did not finish")
	}
	final, err := h.Wait()
	require.NoError(t, err)
	assert.Equal(t, []string{"x.mp4"}, final.Files)
}

func TestPoller_ContextCancel(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{snap: &backend.StatusSnapshot{Status: backend.StatusProcessing}},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPoller(src, 0).Run(ctx, "abc", &recordingSink{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, src.calls)
}

func TestNew_DefaultInterval(t *testing.T) {
	p := New(&scriptedSource{}, Config{}, zerolog.Nop())
	assert.Equal(t, DefaultInterval, p.config.Interval)
}

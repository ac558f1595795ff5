package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSearcher struct {
	calls atomic.Int32
	order []int
	err   error
}

func (s *countingSearcher) SearchOrder(ctx context.Context, q string) ([]int, error) {
	s.calls.Add(1)
	return s.order, s.err
}

type recordingView struct {
	mu      sync.Mutex
	renders [][]int
}

func (v *recordingView) Render(ids []int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.renders = append(v.renders, ids)
}

func (v *recordingView) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.renders)
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name  string
		ids   []int
		order []int
		want  []int
	}{
		{"MatchedFirst", []int{1, 2, 3}, []int{3, 1}, []int{3, 1, 2}},
		{"AllMatched", []int{1, 2, 3}, []int{2, 3, 1}, []int{2, 3, 1}},
		{"UnknownIgnored", []int{1, 2, 3}, []int{9, 2}, []int{2, 1, 3}},
		{"DuplicatesIgnored", []int{1, 2, 3}, []int{3, 3, 1}, []int{3, 1, 2}},
		{"EmptyContainer", nil, []int{1}, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reorder(tt.ids, tt.order))
		})
	}
}

func TestContainerApplyAndRestore(t *testing.T) {
	view := &recordingView{}
	c := NewContainer([]int{1, 2, 3}, view)

	assert.False(t, c.Apply(nil))
	assert.Equal(t, []int{1, 2, 3}, c.IDs())
	assert.Equal(t, 0, view.count())

	assert.True(t, c.Apply([]int{3, 1}))
	assert.Equal(t, []int{3, 1, 2}, c.IDs())

	// a second search orders relative to the server-rendered list
	assert.True(t, c.Apply([]int{2}))
	assert.Equal(t, []int{2, 1, 3}, c.IDs())

	c.Restore()
	assert.Equal(t, []int{1, 2, 3}, c.IDs())
	assert.Equal(t, 3, view.count())
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var fired atomic.Int32
	d.Trigger(func() { fired.Add(1) })
	d.Trigger(func() { fired.Add(10) })
	assert.True(t, d.Pending())

	assert.Eventually(t, func() bool { return fired.Load() == 10 }, time.Second, 5*time.Millisecond)
	assert.False(t, d.Pending())

	d.Trigger(func() { fired.Add(100) })
	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(10), fired.Load())
}

func TestDebouncerDefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultWindow, NewDebouncer(0).window)
	assert.Equal(t, 300*time.Millisecond, DefaultWindow)
}

func TestClearWithinWindowSendsNothing(t *testing.T) {
	api := &countingSearcher{order: []int{3}}
	c := NewContainer([]int{1, 2, 3}, nil)
	s := New(api, c)
	defer s.Close()

	s.Input("a")
	s.Input("ab")
	s.Input("abc")
	s.Input("")

	time.Sleep(DefaultWindow + 100*time.Millisecond)
	assert.Equal(t, int32(0), api.calls.Load())
	assert.Equal(t, []int{1, 2, 3}, c.IDs())
}

func TestSearchAppliesOrder(t *testing.T) {
	api := &countingSearcher{order: []int{3, 1}}
	c := NewContainer([]int{1, 2, 3}, nil)
	s := New(api, c, WithWindow(10*time.Millisecond))
	defer s.Close()

	s.Input("  go  ")
	s.Input("go")

	assert.Eventually(t, func() bool { return api.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return assert.ObjectsAreEqual([]int{3, 1, 2}, c.IDs()) }, time.Second, 5*time.Millisecond)
}

func TestSearchErrorsAndEmptyOrderKeepContent(t *testing.T) {
	for name, api := range map[string]*countingSearcher{
		"Error":      {err: errors.New("boom")},
		"EmptyOrder": {order: []int{}},
	} {
		t.Run(name, func(t *testing.T) {
			view := &recordingView{}
			c := NewContainer([]int{1, 2, 3}, view)
			s := New(api, c, WithWindow(5*time.Millisecond))
			defer s.Close()

			s.Input("q")
			assert.Eventually(t, func() bool { return api.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
			time.Sleep(20 * time.Millisecond)
			assert.Equal(t, []int{1, 2, 3}, c.IDs())
			assert.Equal(t, 0, view.count())
		})
	}
}

// gatedSearcher blocks the "slow" query until released.
type gatedSearcher struct {
	release  chan struct{}
	started  chan string
	canceled atomic.Bool
}

func (g *gatedSearcher) SearchOrder(ctx context.Context, q string) ([]int, error) {
	g.started <- q
	if q == "slow" {
		<-g.release
		if ctx.Err() != nil {
			g.canceled.Store(true)
		}
		return []int{2}, nil
	}
	return []int{3}, nil
}

func TestStaleResponseIsDropped(t *testing.T) {
	api := &gatedSearcher{release: make(chan struct{}), started: make(chan string, 2)}
	c := NewContainer([]int{1, 2, 3}, nil)
	s := New(api, c, WithWindow(5*time.Millisecond))
	defer s.Close()

	s.Input("slow")
	require.Equal(t, "slow", <-api.started)

	s.Input("fast")
	require.Equal(t, "fast", <-api.started)
	assert.Eventually(t, func() bool { return assert.ObjectsAreEqual([]int{3, 1, 2}, c.IDs()) }, time.Second, 5*time.Millisecond)

	close(api.release)
	assert.Eventually(t, api.canceled.Load, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []int{3, 1, 2}, c.IDs(), "older response must not overwrite the newer one")
}

func TestClearDropsInFlightResponse(t *testing.T) {
	api := &gatedSearcher{release: make(chan struct{}), started: make(chan string, 1)}
	c := NewContainer([]int{1, 2, 3}, nil)
	s := New(api, c, WithWindow(5*time.Millisecond))
	defer s.Close()

	s.Input("slow")
	require.Equal(t, "slow", <-api.started)

	s.Input("")
	close(api.release)
	assert.Eventually(t, api.canceled.Load, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []int{1, 2, 3}, c.IDs())
}

func TestSettledReportsOutcome(t *testing.T) {
	type outcome struct {
		q       string
		applied bool
		err     error
	}
	done := make(chan outcome, 2)
	api := &countingSearcher{order: []int{2}}
	c := NewContainer([]int{1, 2, 3}, nil)
	s := New(api, c, WithWindow(5*time.Millisecond), WithSettled(func(q string, applied bool, err error) {
		done <- outcome{q, applied, err}
	}))
	defer s.Close()

	s.Input("go")
	select {
	case got := <-done:
		assert.Equal(t, "go", got.q)
		assert.True(t, got.applied)
		assert.NoError(t, got.err)
	case <-time.After(time.Second):
		t.Fatal("search never settled")
	}
	assert.Equal(t, []int{2, 1, 3}, c.IDs())
}

func TestSearchScheduledBeforeClearDoesNotRun(t *testing.T) {
	api := &countingSearcher{order: []int{3}}
	view := &recordingView{}
	c := NewContainer([]int{1, 2, 3}, view)
	s := New(api, c, WithWindow(time.Hour))
	defer s.Close()

	s.Input("go")
	s.mu.Lock()
	scheduled := s.seq
	s.mu.Unlock()

	s.Input("")
	require.Equal(t, 1, view.count())

	// the timer for "go" firing after the clear must not send or reorder
	s.run(scheduled, "go")
	assert.Equal(t, int32(0), api.calls.Load())
	assert.Equal(t, []int{1, 2, 3}, c.IDs())
	assert.Equal(t, 1, view.count())
}

// clearingSearcher clears the field while its response is being produced.
type clearingSearcher struct {
	s *LiveSearch
}

func (c *clearingSearcher) SearchOrder(ctx context.Context, q string) ([]int, error) {
	c.s.Input("")
	return []int{3}, nil
}

func TestClearDuringResponseKeepsRestoredOrder(t *testing.T) {
	api := &clearingSearcher{}
	c := NewContainer([]int{1, 2, 3}, nil)
	s := New(api, c, WithWindow(time.Hour))
	api.s = s
	defer s.Close()

	s.Input("go")
	s.mu.Lock()
	scheduled := s.seq
	s.mu.Unlock()

	s.run(scheduled, "go")
	assert.Equal(t, []int{1, 2, 3}, c.IDs())
}

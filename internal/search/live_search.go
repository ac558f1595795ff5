// Package search implements search-as-you-type over the question list.
//
// Input is debounced; a cleared field restores the original order at once.
// Every input gets a sequence number and cancels the searches before it;
// only the response of the latest search is applied.
package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Searcher returns matching question ids, best first.
type Searcher interface {
	SearchOrder(ctx context.Context, q string) ([]int, error)
}

type LiveSearch struct {
	api       Searcher
	container *Container
	debounce  *Debouncer
	logger    *slog.Logger
	settled   func(q string, applied bool, err error)

	mu       sync.Mutex
	seq      uint64
	inFlight context.CancelFunc
}

type Option func(*LiveSearch)

func WithWindow(d time.Duration) Option {
	return func(s *LiveSearch) { s.debounce = NewDebouncer(d) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *LiveSearch) { s.logger = l }
}

// WithSettled registers fn to run after the latest search has been handled,
// whether or not it changed the order. Stale responses do not trigger it.
func WithSettled(fn func(q string, applied bool, err error)) Option {
	return func(s *LiveSearch) { s.settled = fn }
}

func New(api Searcher, container *Container, opts ...Option) *LiveSearch {
	s := &LiveSearch{
		api:       api,
		container: container,
		debounce:  NewDebouncer(DefaultWindow),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Input handles a change of the search field. Every call supersedes the
// searches before it, pending or in flight.
func (s *LiveSearch) Input(text string) {
	q := strings.TrimSpace(text)
	s.debounce.Cancel()

	s.mu.Lock()
	seq := s.invalidateLocked()
	if q == "" {
		s.container.Restore()
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.debounce.Trigger(func() { s.run(seq, q) })
}

// Close drops any pending or in-flight search.
func (s *LiveSearch) Close() {
	s.debounce.Cancel()
	s.mu.Lock()
	s.invalidateLocked()
	s.mu.Unlock()
}

// invalidateLocked makes every earlier search stale and returns the new
// sequence. s.mu must be held.
func (s *LiveSearch) invalidateLocked() uint64 {
	s.seq++
	if s.inFlight != nil {
		s.inFlight()
		s.inFlight = nil
	}
	return s.seq
}

// run sends the search scheduled as seq. The sequence is checked and the
// result applied under s.mu, so a later Input always wins.
func (s *LiveSearch) run(seq uint64, q string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		s.logger.Debug("Search superseded before sending", "q", q, "seq", seq)
		return
	}
	s.inFlight = cancel
	s.mu.Unlock()

	requestID := uuid.NewString()
	s.logger.Debug("Search request", "requestID", requestID, "q", q, "seq", seq)

	order, err := s.api.SearchOrder(ctx, q)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		s.logger.Debug("Dropping stale search response", "requestID", requestID, "seq", seq)
		return
	}
	s.inFlight = nil
	applied := false
	if err == nil {
		applied = s.container.Apply(order)
	}
	s.mu.Unlock()

	switch {
	case err != nil:
		s.logger.Debug("Search failed", "requestID", requestID, "error", err)
	case !applied:
		s.logger.Debug("Search returned no matches", "requestID", requestID, "q", q)
	}
	if s.settled != nil {
		s.settled(q, applied, err)
	}
}

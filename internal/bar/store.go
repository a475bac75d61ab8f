// Package bar tracks drink service requests raised from the tables. Requests
// live in memory and age out: one not completed within the staleness window
// is assumed handled (or forgotten) and disappears from listings.
package bar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tabletimer/tabletimer/internal/notify"
)

// ErrRequestNotFound is returned when completing an unknown or already
// completed request.
var ErrRequestNotFound = errors.New("bar request not found")

// Window is how long a bar request stays active before it is treated as
// stale. Derived on read, never stored.
const Window = 10 * time.Minute

// Request is one outstanding bar service call.
type Request struct {
	ID          string
	TableNumber int
	RequestedAt time.Time
}

// Active reports whether the request is within the staleness window.
func (r *Request) Active(now time.Time) bool {
	return now.Sub(r.RequestedAt) < Window
}

// Store holds outstanding bar requests. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	requests map[string]*Request

	tracker *notify.Tracker
	clock   clockwork.Clock
	log     zerolog.Logger
}

// Config holds configuration for creating a Store.
type Config struct {
	Tracker *notify.Tracker
	Clock   clockwork.Clock
	Logger  zerolog.Logger
}

// NewStore creates an empty bar request store.
func NewStore(cfg Config) *Store {
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = notify.NewTracker()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		requests: make(map[string]*Request),
		tracker:  tracker,
		clock:    clock,
		log:      cfg.Logger,
	}
}

// Add raises a bar request for a table and returns it. The id embeds the
// table and the request time, the format dashboard clients key on.
func (s *Store) Add(_ context.Context, tableNumber int) *Request {
	now := s.clock.Now()
	req := &Request{
		ID:          fmt.Sprintf("bar_%d_%d", tableNumber, now.UnixMilli()),
		TableNumber: tableNumber,
		RequestedAt: now,
	}

	s.mu.Lock()
	s.requests[req.ID] = req
	s.mu.Unlock()

	if s.tracker.ShouldNotify(req.ID, notify.KindBar, req.ID) {
		s.log.Info().
			Str("request_id", req.ID).
			Int("table", tableNumber).
			Msg("bar service requested")
	}

	reqCopy := *req
	return &reqCopy
}

// List returns the active requests oldest first, dropping stale ones as a
// side effect.
func (s *Store) List(_ context.Context) []*Request {
	now := s.clock.Now()

	s.mu.Lock()
	items := make([]*Request, 0, len(s.requests))
	for id, req := range s.requests {
		if !req.Active(now) {
			delete(s.requests, id)
			s.tracker.Clear(id, notify.KindBar)
			continue
		}
		reqCopy := *req
		items = append(items, &reqCopy)
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].RequestedAt.Before(items[j].RequestedAt)
	})
	return items
}

// Complete removes a request by id. ErrRequestNotFound when the id is
// unknown, already completed or aged out.
func (s *Store) Complete(_ context.Context, id string) error {
	s.mu.Lock()
	req, ok := s.requests[id]
	if ok {
		delete(s.requests, id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}

	s.tracker.Clear(id, notify.KindBar)
	s.log.Info().
		Str("request_id", id).
		Int("table", req.TableNumber).
		Msg("bar request completed")
	return nil
}

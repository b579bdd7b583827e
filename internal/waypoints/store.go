// Package waypoints holds the uploaded waypoint list shared with live map overlays.
package waypoints

import (
	"errors"
	"sync"

	"github.com/yegors/mission-planner/internal/qgc"
	"github.com/yegors/mission-planner/pkg/logger"
)

// ErrClosed is returned when publishing to a closed store
var ErrClosed = errors.New("waypoint store closed")

// Waypoint is one uploaded mission point
type Waypoint struct {
	Seq int     `json:"seq"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
	Alt float64 `json:"alt"`
}

// FromParsed converts decoded mission file records
func FromParsed(parsed []qgc.ParsedWaypoint) []Waypoint {
	out := make([]Waypoint, len(parsed))
	for i, p := range parsed {
		out[i] = Waypoint{Seq: p.Seq, Lat: p.Lat, Lng: p.Lon, Alt: p.Alt}
	}
	return out
}

// Store keeps the latest waypoint list and notifies subscribers when it changes.
// One Store is created per process and passed to whoever needs it.
type Store struct {
	mu          sync.RWMutex
	current     []Waypoint
	subscribers map[uint64]func([]Waypoint)
	nextID      uint64
	closed      bool
	logger      *logger.Logger
}

// NewStore creates an empty store
func NewStore(log *logger.Logger) *Store {
	return &Store{
		subscribers: make(map[uint64]func([]Waypoint)),
		logger:      log.Named("waypoints"),
	}
}

// Publish replaces the current list and notifies every subscriber with a copy
func (s *Store) Publish(list []Waypoint) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.current = clone(list)
	fns := make([]func([]Waypoint), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	s.logger.Info("Published waypoints",
		logger.Int("count", len(list)),
		logger.Int("subscribers", len(fns)))

	for _, fn := range fns {
		fn(clone(list))
	}
	return nil
}

// Current returns a copy of the latest list
func (s *Store) Current() []Waypoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.current)
}

// Subscribe registers fn for future publishes. The returned func unsubscribes
// and may be called more than once.
func (s *Store) Subscribe(fn func([]Waypoint)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}

	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Subscribers returns the number of registered subscribers
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Close drops every subscriber; later publishes fail with ErrClosed
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subscribers = make(map[uint64]func([]Waypoint))
}

func clone(list []Waypoint) []Waypoint {
	if list == nil {
		return []Waypoint{}
	}
	out := make([]Waypoint, len(list))
	copy(out, list)
	return out
}

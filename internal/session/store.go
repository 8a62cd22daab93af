// Package session keeps one designer per browser session in memory.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/woozymasta/sprinkler/internal/designer"
	"github.com/woozymasta/sprinkler/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CookieName is the cookie carrying the session id.
const CookieName = "sprinkler_session"

type entry struct {
	loop     *designer.Loop
	cancel   context.CancelFunc
	lastSeen time.Time
}

// Store maps session ids to running designer loops.
type Store struct {
	ctx      context.Context
	sessions map[string]*entry
	now      func() time.Time
	ttl      time.Duration
	max      int
	mu       sync.Mutex
}

// NewStore creates a store whose loops live until ctx is cancelled or they idle for ttl.
// At most max sessions are kept, the least recently used one is dropped to make room;
// max <= 0 disables the limit.
func NewStore(ctx context.Context, ttl time.Duration, max int) *Store {
	return &Store{
		ctx:      ctx,
		ttl:      ttl,
		max:      max,
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like an id issued by NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Lookup returns the designer for id without starting one.
func (s *Store) Lookup(id string) (*designer.Loop, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loop := s.live(id)
	return loop, loop != nil
}

// Get returns the designer for id, starting a new one when absent.
func (s *Store) Get(id string) *designer.Loop {
	s.mu.Lock()
	defer s.mu.Unlock()

	if loop := s.live(id); loop != nil {
		return loop
	}

	if s.max > 0 && len(s.sessions) >= s.max {
		s.evictOldest()
	}

	ctx, cancel := context.WithCancel(s.ctx)
	loop := designer.NewLoop(ctx)
	loop.On(observe)

	s.sessions[id] = &entry{loop: loop, cancel: cancel, lastSeen: s.now()}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))

	log.Debug().Str("session", id).Msg("Designer session started")
	return loop
}

// live returns the running loop for id and marks it used. Callers hold mu.
func (s *Store) live(id string) *designer.Loop {
	e, ok := s.sessions[id]
	if !ok {
		return nil
	}

	select {
	case <-e.loop.Done():
		delete(s.sessions, id)
		return nil
	default:
		e.lastSeen = s.now()
		return e.loop
	}
}

// evictOldest stops the least recently used session. Callers hold mu.
func (s *Store) evictOldest() {
	var oldestID string
	var oldest *entry
	for id, e := range s.sessions {
		if oldest == nil || e.lastSeen.Before(oldest.lastSeen) {
			oldestID, oldest = id, e
		}
	}
	if oldest == nil {
		return
	}

	oldest.cancel()
	delete(s.sessions, oldestID)
	log.Info().Str("session", oldestID).Int("limit", s.max).Msg("Session limit reached, oldest designer session dropped")
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep stops sessions idle for longer than the ttl and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			e.cancel()
			delete(s.sessions, id)
			removed++
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))

	return removed
}

// Run sweeps idle sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Info().Int("expired", n).Int("active", s.Len()).Msg("Idle designer sessions expired")
			}
		}
	}
}

func observe(ev designer.Event, st designer.State) {
	changed := "true"
	if !ev.Changed {
		changed = "false"
	}
	metrics.Transitions.WithLabelValues(string(ev.Kind), changed).Inc()

	if ev.Placed != nil {
		metrics.SprinklersPlaced.WithLabelValues(ev.Placed.Type).Inc()
	}

	log.Trace().
		Str("kind", string(ev.Kind)).
		Bool("changed", ev.Changed).
		Int("boundary", len(st.Boundary)).
		Int("sprinklers", len(st.Sprinklers)).
		Msg("Designer transition applied")
}

package cart

import (
	"context"
	"sync"
	"time"
)

// Store keeps one cart per session ID in memory, evicting sessions that have
// been idle longer than the TTL. Every operation refreshes the session's
// last-seen time.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	cart     *Cart
	lastSeen time.Time
}

// NewStore creates a Store evicting sessions idle for longer than ttl.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// with runs fn against the session's cart under the store lock, creating the
// session on first touch.
func (s *Store) with(sessionID string, fn func(c *Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{cart: New()}
		s.sessions[sessionID] = sess
	}
	sess.lastSeen = s.now()
	return fn(sess.cart)
}

// Add unions qty of barcode into the session's cart.
func (s *Store) Add(sessionID, barcode string, qty int) error {
	return s.with(sessionID, func(c *Cart) error {
		return c.Add(barcode, qty)
	})
}

// SetQuantity replaces the quantity of an existing line.
func (s *Store) SetQuantity(sessionID, barcode string, qty int) error {
	return s.with(sessionID, func(c *Cart) error {
		return c.SetQuantity(barcode, qty)
	})
}

// Remove deletes a line from the session's cart.
func (s *Store) Remove(sessionID, barcode string) error {
	return s.with(sessionID, func(c *Cart) error {
		return c.Remove(barcode)
	})
}

// Clear empties the session's cart.
func (s *Store) Clear(sessionID string) {
	_ = s.with(sessionID, func(c *Cart) error {
		c.Clear()
		return nil
	})
}

// Lines returns the session's cart lines in first-scan order.
func (s *Store) Lines(sessionID string) []Line {
	var lines []Line
	_ = s.with(sessionID, func(c *Cart) error {
		lines = c.Lines()
		return nil
	})
	return lines
}

// cleanup drops sessions idle longer than the TTL.
func (s *Store) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) >= s.ttl {
			delete(s.sessions, id)
		}
	}
}

// StartCleanup launches a background goroutine evicting idle sessions at the
// TTL interval. It stops when ctx is cancelled.
func (s *Store) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.cleanup(now)
			}
		}
	}()
}

// Package ratewindow counts recent events per key over a sliding time window.
package ratewindow

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

const DefaultCapacity = 256

// Key identifies a window. Chat-wide windows leave UserID zero.
type Key struct {
	ChatID int64
	UserID int64
}

type series struct {
	mu   sync.Mutex
	hits []time.Time
	last time.Time
}

// Tracker holds one window per key. Operations on the same key are serialized;
// different keys never contend on a shared lock.
type Tracker struct {
	windows  *xsync.MapOf[Key, *series]
	capacity int
}

func New(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{
		windows:  xsync.NewMapOf[Key, *series](),
		capacity: capacity,
	}
}

// Record appends now to the key's window, evicts entries older than window
// relative to now and returns the number of retained entries.
func (t *Tracker) Record(key Key, now time.Time, window time.Duration) int {
	s, _ := t.windows.LoadOrCompute(key, func() *series {
		return &series{hits: make([]time.Time, 0, 8)}
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits = append(s.hits, now)
	s.last = now
	s.evict(now, window)
	if overflow := len(s.hits) - t.capacity; overflow > 0 {
		s.hits = append(s.hits[:0], s.hits[overflow:]...)
	}
	return len(s.hits)
}

// Count evicts stale entries and returns the window size without recording.
func (t *Tracker) Count(key Key, now time.Time, window time.Duration) int {
	s, ok := t.windows.Load(key)
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict(now, window)
	return len(s.hits)
}

// Keys returns the number of tracked windows.
func (t *Tracker) Keys() int {
	return t.windows.Size()
}

// Prune drops windows that saw no event within idle of now.
func (t *Tracker) Prune(now time.Time, idle time.Duration) int {
	pruned := 0
	t.windows.Range(func(key Key, s *series) bool {
		s.mu.Lock()
		stale := now.Sub(s.last) > idle
		s.mu.Unlock()
		if stale {
			t.windows.Delete(key)
			pruned++
		}
		return true
	})
	return pruned
}

// evict keeps entries within window of now. Entries may arrive out of order, so
// the whole slice is filtered rather than just its head.
func (s *series) evict(now time.Time, window time.Duration) {
	kept := s.hits[:0]
	for _, hit := range s.hits {
		if now.Sub(hit) <= window {
			kept = append(kept, hit)
		}
	}
	s.hits = kept
}

// Package ticker keeps the bounded, deduplicated, time-ordered buffer of the
// most recent market trade per instrument. One poll loop writes, any number
// of render calls read consistent snapshots.
package ticker

import (
	"sort"
	"sync"

	"github.com/wurong98/feature-hft-exchange/models"
)

// DefaultCapacity bounds the buffer when no capacity is configured.
const DefaultCapacity = 10

// Store is the live-trade ticker buffer. Invariants: at most capacity
// entries, at most one entry per instrument, ordered by event time
// descending.
type Store struct {
	mu       sync.RWMutex
	capacity int
	entries  []models.TradeTick
}

// NewStore creates a Store holding at most capacity entries.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		entries:  make([]models.TradeTick, 0, capacity),
	}
}

// Ingest merges one tick into the buffer and reports whether it was kept.
// Malformed ticks (no instrument or price) are discarded silently. An
// existing entry for the same instrument is replaced in place, otherwise the
// tick is prepended. The buffer is then truncated to capacity and re-sorted
// by event time descending — replacement can land an entry out of order, and
// truncating after the sort would risk dropping a fresh entry on
// out-of-order arrival.
func (s *Store) Ingest(tick models.TradeTick) bool {
	if !tick.Valid() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.entries {
		if s.entries[i].Symbol == tick.Symbol {
			s.entries[i] = tick
			replaced = true
			break
		}
	}
	if !replaced {
		s.entries = append([]models.TradeTick{tick}, s.entries...)
	}

	if len(s.entries) > s.capacity {
		s.entries = s.entries[:s.capacity]
	}

	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].EventTime().After(s.entries[j].EventTime())
	})
	return true
}

// Snapshot returns a copy of the current ordered buffer for rendering.
func (s *Store) Snapshot() []models.TradeTick {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.TradeTick, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len reports the current number of buffered instruments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

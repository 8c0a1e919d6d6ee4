package annotations

import (
	"sync"
	"time"

	"github.com/pulsewatch/pulsewatch/pkg/models"
)

// Store keeps timestamped textual markers per series title, insertion order
// preserved. Markers older than the retention span are dropped on Prune,
// which runs once per timer tick.
type Store struct {
	mu      sync.Mutex
	entries map[string][]models.Annotation
}

// NewStore creates an empty annotation store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string][]models.Annotation),
	}
}

// Append adds one marker to the series.
func (s *Store) Append(title string, timestampNs int64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[title] = append(s.entries[title], models.Annotation{
		TimestampNs: timestampNs,
		Text:        text,
	})
}

// Concat appends a batch of markers to the series, preserving batch order.
func (s *Store) Concat(title string, batch []models.Annotation) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[title] = append(s.entries[title], batch...)
}

// Prune drops every marker older than now-retention, commits the drop, and
// returns the survivors in insertion order.
func (s *Store) Prune(title string, now time.Time, retention time.Duration) []models.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()

	horizon := now.Add(-retention).UnixNano()
	kept := s.entries[title][:0]
	for _, a := range s.entries[title] {
		if a.TimestampNs >= horizon {
			kept = append(kept, a)
		}
	}
	s.entries[title] = kept

	out := make([]models.Annotation, len(kept))
	copy(out, kept)
	return out
}

// Len returns the number of markers currently held for the series.
func (s *Store) Len(title string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries[title])
}

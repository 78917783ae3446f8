package exporter

import (
	"sync/atomic"

	"codeberg.org/mutker/envirod/internal/sensor"
)

// Store retains the most recently committed value snapshot for the push
// sinks, which post on their own cadence independent of the sampling loop.
// Readers always see a complete, immutable snapshot; a cycle in progress is
// never observable.
type Store struct {
	snapshot atomic.Pointer[sensor.Values]
}

func NewStore() *Store {
	s := &Store{}
	empty := sensor.Values{}
	s.snapshot.Store(&empty)

	return s
}

// Export commits the cycle's values. The map is copied so later snapshot
// readers are isolated from the sampling loop's next cycle.
func (s *Store) Export(values sensor.Values, _ bool) {
	copied := make(sensor.Values, len(values))
	for k, v := range values {
		copied[k] = v
	}
	s.snapshot.Store(&copied)
}

// Snapshot returns the last committed values. The returned map is shared
// between callers and must not be mutated.
func (s *Store) Snapshot() sensor.Values {
	return *s.snapshot.Load()
}

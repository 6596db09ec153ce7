package dispatch

import "time"

// Gate rejects events whose origin time is too far in the past.
// Stale events are a deliberate no-op, not an error: replays of old
// bulletins must never be re-published.
type Gate struct {
	MaxAge time.Duration

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (g Gate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// Fresh reports whether occurredAt falls within the configured age
// window. A zero MaxAge disables the gate (everything is fresh).
func (g Gate) Fresh(occurredAt time.Time) bool {
	if g.MaxAge <= 0 {
		return true
	}
	return !occurredAt.Before(g.now().Add(-g.MaxAge))
}

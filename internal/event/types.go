package event

import (
	"time"
)

// Status is the evaluation status of an event as used by the delivery
// ledger key. It is deliberately small and stable: changing a value here
// changes idempotency keys for all future deliveries.
type Status string

const (
	StatusAutomatic Status = "automatic"
	StatusReviewed  Status = "reviewed"
	StatusUnknown   Status = "unknown"
)

// Label returns the public, Spanish-facing label used in bulletin text.
func (s Status) Label() string {
	switch s {
	case StatusAutomatic:
		return "Preliminar"
	case StatusReviewed:
		return "Revisado"
	default:
		return "-"
	}
}

// StatusFromEvaluationMode maps the upstream evaluation mode to a Status.
func StatusFromEvaluationMode(mode string) Status {
	switch mode {
	case "automatic":
		return StatusAutomatic
	case "manual":
		return StatusReviewed
	default:
		return StatusUnknown
	}
}

// Record is one upstream notification payload. The upstream source groups
// zero or more events per notification; in practice almost always exactly one.
type Record struct {
	Events []Event `json:"events"`
}

// Event is a single seismic event as reported upstream.
type Event struct {
	PublicID       string  `json:"public_id"`
	Region         string  `json:"region,omitempty"`
	Type           string  `json:"type,omitempty"`
	EvaluationMode string  `json:"evaluation_mode,omitempty"`
	Origin         *Origin `json:"preferred_origin,omitempty"`
}

// Origin is the preferred origin solution for an event. Depth and magnitude
// are optional upstream; nil means "not (yet) determined".
type Origin struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Depth     *float64  `json:"depth,omitempty"`
	Magnitude *float64  `json:"magnitude,omitempty"`
}

// Summary is the normalized, immutable unit passed between the builder,
// the staleness gate and the dispatcher. Downstream code never re-parses
// the rendered text; all machine-readable fields travel alongside it.
type Summary struct {
	EventID    string
	Status     Status
	OccurredAt time.Time
	Text       string
	MediaRef   string // path to the rendered map image, empty if none
}

// IsZero reports whether the summary carries no event. The builder returns
// a zero summary for ambiguous multi-event records.
func (s Summary) IsZero() bool {
	return s.EventID == ""
}

package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicate is returned by Record when a delivery already exists
	// for the key. Expected under duplicate upstream fires and races;
	// callers treat it as success-equivalent.
	ErrDuplicate = errors.New("delivery already recorded")

	ErrDisabled = errors.New("ledger disabled")
)

// Key identifies one delivery: one event, at one evaluation status,
// to one destination.
type Key struct {
	EventID     string
	Status      string
	Destination string
}

// Delivery is a completed publication. Insert-only.
type Delivery struct {
	Key
	ProviderRef string
	CreatedAt   time.Time
}

// Store is the persistence API for delivery records.
//
// Record must enforce the per-Key uniqueness atomically at the storage
// layer (unique index or equivalent); a violated insert returns
// ErrDuplicate and leaves the existing record untouched.
type Store interface {
	HasDelivered(ctx context.Context, k Key) (bool, error)
	Record(ctx context.Context, d Delivery) error
	Close() error
}

// Config configures the ledger backend.
//
// Driver values:
//   - "sqlite": SQLite database file (the default deployment)
//   - "memory": process-local map, for tests and dry runs
type Config struct {
	Driver      string
	Path        string
	Table       string        // sqlite only; defaults to "deliveries"
	BusyTimeout time.Duration // sqlite only; 0 means default
}

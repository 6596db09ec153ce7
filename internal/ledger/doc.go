// Package ledger is the durable record of completed deliveries and the
// sole source of truth for publish idempotency.
//
// A delivery is keyed by (event_id, status, destination). At most one
// record may ever exist per key; the backing store enforces this
// atomically so concurrent dispatchers cannot both record the same
// delivery. Records are insert-only: this system never updates or
// deletes them (retention is an external concern).
package ledger

package ledger

import (
	"context"
	"sync"
	"time"
)

// memoryStore keeps delivery records in a process-local map. Used by
// tests and by "driver: memory" dry runs; offers the same atomic
// check-or-insert contract as the sqlite backend, minus durability.
type memoryStore struct {
	mu   sync.Mutex
	data map[Key]Delivery
}

func NewMemory() Store {
	return &memoryStore{data: map[Key]Delivery{}}
}

func (m *memoryStore) HasDelivered(_ context.Context, k Key) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[k]
	return ok, nil
}

func (m *memoryStore) Record(_ context.Context, d Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[d.Key]; ok {
		return ErrDuplicate
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	m.data[d.Key] = d
	return nil
}

func (m *memoryStore) Close() error { return nil }

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"quakepost/internal/event"
	"quakepost/internal/ledger"
	"quakepost/internal/registry"
	logx "quakepost/pkg/logx"
)

type fakePoster struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *fakePoster) Post(_ context.Context, dest registry.Destination, _, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return fmt.Sprintf("%s-post-%d", dest.Name, p.calls), nil
}

func (p *fakePoster) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type mapResolver map[string]registry.Destination

func (m mapResolver) Resolve(name string) (registry.Destination, error) {
	d, ok := m[name]
	if !ok {
		return registry.Destination{}, registry.ErrUnknownDestination
	}
	return d, nil
}

// failingStore wraps a Store and fails every Record call.
type failingStore struct {
	ledger.Store
}

func (f failingStore) Record(context.Context, ledger.Delivery) error {
	return errors.New("disk full")
}

func testSummary(occurred time.Time) event.Summary {
	return event.Summary{
		EventID:    "igepn2026abcd",
		Status:     event.StatusAutomatic,
		OccurredAt: occurred,
		Text:       "#SISMO ID:igepn2026abcd Preliminar ...",
	}
}

func testDispatcher(t *testing.T, store ledger.Store, poster Poster, now time.Time) *Dispatcher {
	t.Helper()
	gate := Gate{MaxAge: 24 * time.Hour, Now: func() time.Time { return now }}
	resolver := mapResolver{
		"page-main": {Name: "page-main", Kind: registry.KindFacebook, Token: "t", PageID: "1"},
	}
	return New(Config{RatePerSec: 1000}, gate, store, resolver, poster, logx.Nop())
}

func TestDeliverFreshEvent(t *testing.T) {
	t.Parallel()
	now := time.Now()
	store := ledger.NewMemory()
	poster := &fakePoster{}
	d := testDispatcher(t, store, poster, now)

	report := d.Deliver(context.Background(), testSummary(now.Add(-10*time.Minute)), []string{"page-main"})

	o := report["page-main"]
	if o.Kind != KindDelivered {
		t.Fatalf("outcome = %+v, want delivered", o)
	}
	if o.ProviderRef == "" {
		t.Fatal("delivered outcome carries no provider ref")
	}
	if poster.callCount() != 1 {
		t.Fatalf("poster called %d times, want 1", poster.callCount())
	}
	done, err := store.HasDelivered(context.Background(), ledger.Key{
		EventID: "igepn2026abcd", Status: "automatic", Destination: "page-main",
	})
	if err != nil || !done {
		t.Fatalf("HasDelivered = (%v, %v), want (true, nil)", done, err)
	}
}

func TestDeliverShortCircuitsRecordedDelivery(t *testing.T) {
	t.Parallel()
	now := time.Now()
	store := ledger.NewMemory()
	key := ledger.Key{EventID: "igepn2026abcd", Status: "automatic", Destination: "page-main"}
	if err := store.Record(context.Background(), ledger.Delivery{Key: key, ProviderRef: "prior"}); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	poster := &fakePoster{}
	d := testDispatcher(t, store, poster, now)

	report := d.Deliver(context.Background(), testSummary(now.Add(-10*time.Minute)), []string{"page-main"})

	if got := report["page-main"].Kind; got != KindAlreadyDelivered {
		t.Fatalf("outcome = %v, want already_delivered", got)
	}
	if poster.callCount() != 0 {
		t.Fatalf("poster called %d times, want 0", poster.callCount())
	}
}

func TestDeliverStaleEventSkipsEverything(t *testing.T) {
	t.Parallel()
	now := time.Now()
	store := ledger.NewMemory()
	poster := &fakePoster{}
	d := testDispatcher(t, store, poster, now)

	report := d.Deliver(context.Background(), testSummary(now.Add(-48*time.Hour)), []string{"page-main", "other"})

	for name, o := range report {
		if o.Kind != KindSkippedStale {
			t.Fatalf("%s outcome = %v, want skipped_stale", name, o.Kind)
		}
		if !o.Success() {
			t.Fatalf("%s stale outcome is not success-equivalent", name)
		}
	}
	if poster.callCount() != 0 {
		t.Fatalf("poster called %d times, want 0", poster.callCount())
	}
	done, _ := store.HasDelivered(context.Background(), ledger.Key{
		EventID: "igepn2026abcd", Status: "automatic", Destination: "page-main",
	})
	if done {
		t.Fatal("stale event must not be recorded")
	}
}

func TestDeliverFailedSendStaysRetryable(t *testing.T) {
	t.Parallel()
	now := time.Now()
	store := ledger.NewMemory()
	poster := &fakePoster{err: errors.New("503 from provider")}
	d := testDispatcher(t, store, poster, now)
	s := testSummary(now.Add(-10 * time.Minute))

	report := d.Deliver(context.Background(), s, []string{"page-main"})
	if got := report["page-main"].Kind; got != KindFailed {
		t.Fatalf("outcome = %v, want failed", got)
	}
	done, _ := store.HasDelivered(context.Background(), ledger.Key{
		EventID: s.EventID, Status: string(s.Status), Destination: "page-main",
	})
	if done {
		t.Fatal("failed send must not leave a record")
	}

	// Same inputs retried after the provider recovers.
	poster.err = nil
	report = d.Deliver(context.Background(), s, []string{"page-main"})
	if got := report["page-main"].Kind; got != KindDelivered {
		t.Fatalf("retry outcome = %v, want delivered", got)
	}
	if poster.callCount() != 2 {
		t.Fatalf("poster called %d times across both runs, want 2", poster.callCount())
	}
}

func TestDeliverUnknownDestinationContinuesBatch(t *testing.T) {
	t.Parallel()
	now := time.Now()
	store := ledger.NewMemory()
	poster := &fakePoster{}
	d := testDispatcher(t, store, poster, now)

	report := d.Deliver(context.Background(), testSummary(now.Add(-time.Hour)), []string{"missing", "page-main"})

	if got := report["missing"]; got.Kind != KindFailed || got.Reason != "unknown destination" {
		t.Fatalf("missing outcome = %+v, want failed/unknown destination", got)
	}
	if got := report["page-main"].Kind; got != KindDelivered {
		t.Fatalf("page-main outcome = %v, want delivered despite bad sibling", got)
	}
}

func TestDeliverLedgerWriteFailureIsLoud(t *testing.T) {
	t.Parallel()
	now := time.Now()
	poster := &fakePoster{}
	d := testDispatcher(t, failingStore{ledger.NewMemory()}, poster, now)

	report := d.Deliver(context.Background(), testSummary(now.Add(-time.Hour)), []string{"page-main"})

	o := report["page-main"]
	if o.Kind != KindFailed {
		t.Fatalf("outcome = %+v, want failed", o)
	}
	if poster.callCount() != 1 {
		t.Fatalf("poster called %d times, want 1", poster.callCount())
	}
	if !report.Failed() {
		t.Fatal("report must flag the write failure to the operator")
	}
}

func TestDeliverConcurrentSameKeyConvergesToOneRecord(t *testing.T) {
	t.Parallel()
	now := time.Now()
	store := ledger.NewMemory()
	poster := &fakePoster{}
	d := testDispatcher(t, store, poster, now)
	s := testSummary(now.Add(-time.Minute))

	const runs = 16
	outcomes := make([]Outcome, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = d.Deliver(context.Background(), s, []string{"page-main"})["page-main"]
		}(i)
	}
	wg.Wait()

	deliveredCount := 0
	for _, o := range outcomes {
		switch o.Kind {
		case KindDelivered:
			deliveredCount++
		case KindAlreadyDelivered:
		default:
			t.Fatalf("unexpected outcome under race: %+v", o)
		}
	}
	if deliveredCount != 1 {
		t.Fatalf("delivered outcomes = %d, want exactly 1", deliveredCount)
	}
	done, err := store.HasDelivered(context.Background(), ledger.Key{
		EventID: s.EventID, Status: string(s.Status), Destination: "page-main",
	})
	if err != nil || !done {
		t.Fatalf("HasDelivered = (%v, %v), want (true, nil)", done, err)
	}
}

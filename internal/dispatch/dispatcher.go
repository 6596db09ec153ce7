// Package dispatch orchestrates one delivery invocation: staleness gate,
// ledger short-circuit, destination resolution, outbound post, ledger
// record. It owns the idempotency contract end to end.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"quakepost/internal/event"
	"quakepost/internal/ledger"
	"quakepost/internal/registry"
	logx "quakepost/pkg/logx"
)

// Resolver looks a destination up by name. Satisfied by *registry.Registry.
type Resolver interface {
	Resolve(name string) (registry.Destination, error)
}

// Poster is the outbound transport, see transport.Poster.
type Poster interface {
	Post(ctx context.Context, dest registry.Destination, text, mediaRef string) (string, error)
}

// Config tunes one Dispatcher.
type Config struct {
	// PostTimeout bounds each outbound transport call.
	PostTimeout time.Duration
	// StoreTimeout bounds each ledger operation.
	StoreTimeout time.Duration
	// RatePerSec throttles outbound posts across all destinations.
	RatePerSec int
}

func (c *Config) defaults() {
	if c.PostTimeout <= 0 {
		c.PostTimeout = 20 * time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 2
	}
}

// Dispatcher delivers one summary to a set of destinations, exactly once
// per (event, status, destination). Safe for concurrent use; concurrent
// invocations for the same event converge on a single ledger record
// because ledger.Store.Record is atomic on the key.
type Dispatcher struct {
	gate     Gate
	store    ledger.Store
	resolver Resolver
	poster   Poster
	limiter  *rate.Limiter
	cfg      Config
	log      logx.Logger
}

func New(cfg Config, gate Gate, store ledger.Store, resolver Resolver, poster Poster, log logx.Logger) *Dispatcher {
	cfg.defaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		gate:     gate,
		store:    store,
		resolver: resolver,
		poster:   poster,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		cfg:      cfg,
		log:      log,
	}
}

// Deliver processes the summary against every destination, in the order
// supplied. One bad destination never aborts the rest; the returned
// Report holds an Outcome per destination.
func (d *Dispatcher) Deliver(ctx context.Context, s event.Summary, destinations []string) Report {
	run := uuid.NewString()
	log := d.log.With(
		logx.String("run", run),
		logx.String("event_id", s.EventID),
		logx.String("status", string(s.Status)),
	)

	report := make(Report, len(destinations))

	if !d.gate.Fresh(s.OccurredAt) {
		log.Info("event outside staleness window, skipping all destinations",
			logx.Time("occurred_at", s.OccurredAt),
			logx.Duration("max_age", d.gate.MaxAge))
		for _, name := range destinations {
			report[name] = skippedStale()
		}
		return report
	}

	for _, name := range destinations {
		report[name] = d.deliverOne(ctx, log, s, name)
	}
	return report
}

func (d *Dispatcher) deliverOne(ctx context.Context, log logx.Logger, s event.Summary, name string) Outcome {
	log = log.With(logx.String("destination", name))
	key := ledger.Key{EventID: s.EventID, Status: string(s.Status), Destination: name}

	// Idempotency short-circuit: a recorded delivery never goes out again.
	lctx, cancel := context.WithTimeout(ctx, d.cfg.StoreTimeout)
	done, err := d.store.HasDelivered(lctx, key)
	cancel()
	if err != nil {
		log.Error("ledger lookup failed", logx.Err(err))
		return failed("ledger lookup failure: " + err.Error())
	}
	if done {
		log.Debug("already delivered")
		return alreadyDelivered()
	}

	dest, err := d.resolver.Resolve(name)
	if err != nil {
		log.Error("destination resolution failed", logx.Err(err))
		return failed("unknown destination")
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return failed("rate limit wait: " + err.Error())
	}

	pctx, cancel := context.WithTimeout(ctx, d.cfg.PostTimeout)
	ref, err := d.poster.Post(pctx, dest, s.Text, s.MediaRef)
	cancel()
	if err != nil {
		// No ledger write: a later retry with the same key must attempt
		// delivery again.
		log.Error("outbound post failed", logx.Err(err))
		return failed("outbound transport: " + err.Error())
	}

	lctx, cancel = context.WithTimeout(ctx, d.cfg.StoreTimeout)
	err = d.store.Record(lctx, ledger.Delivery{Key: key, ProviderRef: ref})
	cancel()
	switch {
	case err == nil:
		log.Info("delivered", logx.String("provider_ref", ref))
		return delivered(ref)
	case errors.Is(err, ledger.ErrDuplicate):
		// A concurrent invocation recorded first. The provider may have
		// been hit twice, but the ledger converged on one record.
		log.Warn("lost record race to a concurrent delivery",
			logx.String("provider_ref", ref))
		return alreadyDelivered()
	default:
		// The post went out but was not recorded. Until an operator
		// reconciles, a retry may publish a duplicate.
		log.Error("post succeeded but ledger write failed",
			logx.String("provider_ref", ref), logx.Err(err))
		return failed("persisted-state write failure: " + err.Error())
	}
}

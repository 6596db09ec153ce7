// Package app wires configuration, the ledger, the registry, transports
// and the dispatcher into a runnable application.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"quakepost/internal/config"
	"quakepost/internal/dispatch"
	"quakepost/internal/event"
	"quakepost/internal/geo"
	"quakepost/internal/ledger"
	"quakepost/internal/mapimage"
	"quakepost/internal/registry"
	"quakepost/internal/transport"
	logx "quakepost/pkg/logx"
)

type App struct {
	Cfg        *config.Config
	Log        logx.Logger
	Registry   *registry.Registry
	Builder    *event.Builder
	Dispatcher *dispatch.Dispatcher

	store   ledger.Store
	closers []io.Closer
}

// New performs the full startup sequence. Every error here is a
// configuration error: the process must not attempt any delivery.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log, logCloser, err := logx.Open(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return nil, err
	}

	a := &App{Cfg: cfg, Log: log}
	a.closers = append(a.closers, logCloser)

	reg, err := registry.Load(cfg.AccountsFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Registry = reg

	busy, _ := config.ParseDurationField("ledger.busy_timeout", cfg.Ledger.BusyTimeout)
	store, err := ledger.Open(ledger.Config{
		Driver:      cfg.Ledger.Driver,
		Path:        cfg.Ledger.Location,
		Table:       cfg.Ledger.TableName,
		BusyTimeout: busy,
	}, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store)

	loc, err := geo.New(geo.Config{
		CitiesFile: cfg.Geo.CitiesFile,
		Timezone:   cfg.Geo.Timezone,
		SurveyURL:  cfg.Geo.SurveyURL,
		Country: geo.CountryConfig{
			MinLat: cfg.Geo.Country.MinLat, MaxLat: cfg.Geo.Country.MaxLat,
			MinLon: cfg.Geo.Country.MinLon, MaxLon: cfg.Geo.Country.MaxLon,
			Inside: cfg.Geo.Country.Inside, Outside: cfg.Geo.Country.Outside,
		},
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	mapTimeout, _ := config.ParseDurationField("maps.timeout", cfg.Maps.Timeout)
	maps := mapimage.New(mapimage.Config{
		BasePath:    cfg.EventMediaPath,
		URL:         cfg.Maps.URL,
		FallbackURL: cfg.Maps.FallbackURL,
		Timeout:     mapTimeout,
	}, log)

	a.Builder = event.NewBuilder(loc, maps, log)

	postTimeout, _ := config.ParseDurationField("transport.post_timeout", cfg.Transport.PostTimeout)
	storeTimeout, _ := config.ParseDurationField("transport.store_timeout", cfg.Transport.StoreTimeout)
	mux := transport.NewMux().
		Handle(registry.KindFacebook, transport.NewFacebook(postTimeout, log)).
		Handle(registry.KindTelegram, transport.NewTelegram(postTimeout, log))

	gate := dispatch.Gate{MaxAge: time.Duration(cfg.MaxAgeHours) * time.Hour}
	a.Dispatcher = dispatch.New(dispatch.Config{
		PostTimeout:  postTimeout,
		StoreTimeout: storeTimeout,
		RatePerSec:   cfg.Transport.RatePerSec,
	}, gate, store, reg, mux, log)

	log.Info("quakepost initialized",
		logx.Int("destinations", len(reg.Names())),
		logx.Int("max_age_hours", cfg.MaxAgeHours))
	return a, nil
}

// ProcessFile runs one spooled event file through build, gate and
// dispatch. The returned report covers every configured destination.
func (a *App) ProcessFile(ctx context.Context, path string) (dispatch.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rec, err := event.DecodeRecord(f)
	if err != nil {
		return nil, err
	}

	summary := a.Builder.Build(ctx, rec)
	if summary.IsZero() {
		a.Log.Info("nothing to publish for record", logx.String("file", path))
		return dispatch.Report{}, nil
	}
	return a.Dispatcher.Deliver(ctx, summary, a.Registry.Names()), nil
}

func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

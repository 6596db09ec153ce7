package spool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"quakepost/internal/dispatch"
	logx "quakepost/pkg/logx"
)

const (
	doneDir   = "done"
	failedDir = "failed"

	// settleDelay gives the upstream writer time to finish a file
	// before we read it.
	settleDelay = 200 * time.Millisecond
)

// Processor runs one spooled event file through the delivery pipeline.
// Satisfied by *app.App.
type Processor interface {
	ProcessFile(ctx context.Context, path string) (dispatch.Report, error)
}

type Config struct {
	Dir           string
	RetrySchedule string // cron expression; empty disables the sweep
}

// Service watches the spool directory and drives the processor.
type Service struct {
	cfg  Config
	proc Processor
	log  logx.Logger
}

func New(cfg Config, proc Processor, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, proc: proc, log: log}
}

// Run blocks until ctx is cancelled. It processes files already in the
// spool on startup, then reacts to new drops via fsnotify.
func (s *Service) Run(ctx context.Context) error {
	for _, d := range []string{s.cfg.Dir, filepath.Join(s.cfg.Dir, doneDir), filepath.Join(s.cfg.Dir, failedDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("spool dir: %w", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("spool watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(s.cfg.Dir); err != nil {
		return fmt.Errorf("spool watcher: %w", err)
	}

	var c *cron.Cron
	if strings.TrimSpace(s.cfg.RetrySchedule) != "" {
		c = cron.New()
		if _, err := c.AddFunc(s.cfg.RetrySchedule, func() { s.sweepFailed(ctx) }); err != nil {
			return fmt.Errorf("spool retry schedule %q: %w", s.cfg.RetrySchedule, err)
		}
		c.Start()
		defer c.Stop()
	}

	s.notifyReady(ctx)

	// Catch up on files spooled while we were down.
	s.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !s.spoolable(ev.Name) {
				continue
			}
			time.Sleep(settleDelay)
			s.processAndMove(ctx, ev.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("spool watcher error", logx.Err(err))
		}
	}
}

// spoolable filters watcher noise: only regular files directly in the
// spool dir, no dotfiles, no subdirectories.
func (s *Service) spoolable(path string) bool {
	if filepath.Dir(path) != filepath.Clean(s.cfg.Dir) {
		return false
	}
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func (s *Service) scan(ctx context.Context) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		s.log.Warn("spool scan failed", logx.Err(err))
		return
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		s.processAndMove(ctx, filepath.Join(s.cfg.Dir, e.Name()))
	}
}

// sweepFailed retries everything in failed/. Successes move to done/,
// the rest stay for the next sweep.
func (s *Service) sweepFailed(ctx context.Context) {
	dir := filepath.Join(s.cfg.Dir, failedDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log.Warn("retry sweep scan failed", logx.Err(err))
		return
	}
	if len(entries) > 0 {
		s.log.Info("retry sweep", logx.Int("pending", len(entries)))
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		report, err := s.proc.ProcessFile(ctx, path)
		if err != nil || report.Failed() {
			s.logReport(path, report, err)
			continue
		}
		s.move(path, doneDir)
	}
}

func (s *Service) processAndMove(ctx context.Context, path string) {
	report, err := s.proc.ProcessFile(ctx, path)
	s.logReport(path, report, err)
	if err != nil || report.Failed() {
		s.move(path, failedDir)
		return
	}
	s.move(path, doneDir)
}

func (s *Service) logReport(path string, report dispatch.Report, err error) {
	if err != nil {
		s.log.Error("spool file processing failed", logx.String("file", path), logx.Err(err))
		return
	}
	for name, o := range report {
		switch o.Kind {
		case dispatch.KindFailed:
			s.log.Error("delivery failed",
				logx.String("file", path),
				logx.String("destination", name),
				logx.String("reason", o.Reason))
		case dispatch.KindDelivered:
			s.log.Info("delivery succeeded",
				logx.String("file", path),
				logx.String("destination", name),
				logx.String("provider_ref", o.ProviderRef))
		}
	}
}

func (s *Service) move(path, sub string) {
	dst := filepath.Join(s.cfg.Dir, sub, filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		// Keep re-spooled duplicates distinct.
		dst = dst + "." + time.Now().UTC().Format("20060102T150405.000000000")
	}
	if err := os.Rename(path, dst); err != nil {
		s.log.Warn("spool move failed", logx.String("file", path), logx.Err(err))
	}
}

// notifyReady tells systemd we are up and keeps the watchdog fed when
// one is configured. No-ops outside a systemd unit.
func (s *Service) notifyReady(ctx context.Context) {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		s.log.Warn("systemd notify failed", logx.Err(err))
	} else if ok {
		s.log.Debug("systemd notified ready")
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}

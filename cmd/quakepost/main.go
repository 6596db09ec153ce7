package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quakepost/internal/app"
	"quakepost/internal/spool"
)

func main() {
	var (
		cfgPath   string
		eventFile string
		watch     bool
	)
	flag.StringVar(&cfgPath, "config", "./quakepost.yaml", "path to config file (yaml or json)")
	flag.StringVar(&eventFile, "event", "", "process a single event file and exit")
	flag.BoolVar(&watch, "watch", false, "watch the spool directory as a service")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	defer a.Close()

	switch {
	case eventFile != "":
		report, err := a.ProcessFile(ctx, eventFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
		for name, o := range report {
			line := fmt.Sprintf("%s: %s", name, o.Kind)
			if o.ProviderRef != "" {
				line += " ref=" + o.ProviderRef
			}
			if o.Reason != "" {
				line += " reason=" + o.Reason
			}
			fmt.Println(line)
		}
		// Failed outcomes must reach the operator so retries can be
		// scheduled externally.
		if report.Failed() {
			os.Exit(1)
		}
	case watch:
		if a.Cfg.Spool == nil {
			fmt.Fprintln(os.Stderr, "fatal: -watch requires a spool section in the config")
			os.Exit(1)
		}
		svc := spool.New(spool.Config{
			Dir:           a.Cfg.Spool.Dir,
			RetrySchedule: a.Cfg.Spool.RetrySchedule,
		}, a, a.Log)
		if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "usage: quakepost -config <file> (-event <file> | -watch)")
		os.Exit(2)
	}
}

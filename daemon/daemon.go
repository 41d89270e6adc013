// Package daemon assembles the reconciler and runs it as a long-lived
// service.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"drift"
	"drift/config"
	"drift/detect"
	"drift/internal/adapter/docker"
	"drift/internal/adapter/sqlite"
	"drift/internal/telemetry"
	"drift/reconcile"
	"drift/registry"
	"drift/replace"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"
)

// Run wires the engine, detector, coordinator, and loop from cfg and blocks
// until ctx is cancelled. Scheduler ticks keep firing regardless of
// prior-tick failures; only wiring errors are fatal.
func Run(ctx context.Context, cfg *config.Config) error {
	shutdownTraces, err := telemetry.Setup(ctx, cfg.Telemetry.Enabled)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTraces(shutdownCtx); err != nil {
			slog.Warn("trace shutdown failed", "err", err)
		}
	}()

	eng, err := docker.New(
		docker.WithCallTimeout(cfg.Engine.CallTimeout.Std()),
		docker.WithPullTimeout(cfg.Engine.PullTimeout.Std()),
	)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.WaitReady(ctx); err != nil {
		return err
	}

	reporter := drift.MultiReporter{drift.LogReporter{}}
	if cfg.DataRoot != "" {
		journal, err := sqlite.Open(filepath.Join(cfg.DataRoot, "events.db"))
		if err != nil {
			return err
		}
		defer journal.Close()
		reporter = append(reporter, journal)
	}

	creds := registry.Static{
		Username: cfg.Registry.Username,
		Password: cfg.Registry.Password,
		Server:   cfg.Registry.Server,
	}
	detector := detect.New(eng, creds, reporter)
	coordinator := replace.New(eng, reporter)
	pass := reconcile.NewPass(eng, detector, coordinator, reporter)
	loop, err := reconcile.NewLoop(pass, cfg.Schedule)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting reconciler.", "schedule", cfg.Schedule)
		if _, err := systemd.SdNotify(false, systemd.SdNotifyReady); err != nil {
			slog.Warn("systemd ready notification failed", "err", err)
		}
		return loop.Run(ctx)
	})
	g.Go(func() error {
		runWatchdog(ctx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runWatchdog keeps systemd's watchdog fed when one is configured.
func runWatchdog(ctx context.Context) {
	interval, err := systemd.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := systemd.SdNotify(false, systemd.SdNotifyWatchdog); err != nil {
				slog.Warn("systemd watchdog notification failed", "err", err)
			}
		}
	}
}

// Package app wires configuration, the KIS gateway, the ledger store, the
// runner and the admin HTTP server into one runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"haru/internal/config"
	"haru/internal/logger"
	"haru/internal/runner"
	"haru/internal/scheduler"
	"haru/internal/store"
	adminhttp "haru/internal/transport/http/admin"

	"golang.org/x/sync/errgroup"
)

// App owns application-level orchestration.
type App struct {
	cfg    *config.Config
	store  store.Store
	runner *runner.Runner
	http   *adminhttp.Server
}

// NewApp builds (but does not start) the application.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Runner exposes the runner for test harnesses.
func (a *App) Runner() *runner.Runner {
	if a == nil {
		return nil
	}
	return a.runner
}

// Run serves HTTP and drives runs until ctx is cancelled. With
// schedule.run_once the process performs a single pass and exits.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.store.Close()

	if a.cfg.Schedule.RunOnce {
		logger.Infof("run_once=true: executing a single pass")
		_, err := a.runner.RunOnce(ctx)
		return err
	}

	interval, err := time.ParseDuration(a.cfg.Schedule.Interval)
	if err != nil {
		return fmt.Errorf("parsing schedule.interval failed: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Infof("admin http listening on %s", a.http.Addr())
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("admin http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		sched := scheduler.NewAlignedScheduler(ctx, interval, time.Duration(a.cfg.Schedule.OffsetSeconds)*time.Second)
		sched.RunImmediately = a.cfg.Schedule.RunImmediately
		sched.Start(func() {
			if _, err := a.runner.RunOnce(ctx); err != nil {
				if errors.Is(err, runner.ErrDisabled) || errors.Is(err, runner.ErrRunInFlight) {
					logger.Infof("scheduled run skipped: %v", err)
					return
				}
				logger.Errorf("scheduled run failed: %v", err)
			}
		})
		return nil
	})

	return group.Wait()
}

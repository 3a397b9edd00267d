package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dwizi/accessbot/internal/health"
)

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("accessbot runtime starting", "addr", r.cfg.HTTPAddr, "audit_enabled", r.core.Store != nil)

	group, groupCtx := errgroup.WithContext(ctx)
	if r.watcher != nil {
		group.Go(func() error {
			return runMonitored(groupCtx, r.health, "directory-watch", func(runCtx context.Context) error {
				return r.watcher.Start(runCtx)
			})
		})
	}
	group.Go(func() error {
		return runMonitored(groupCtx, r.health, "session-sweeper", r.sweeper.Start)
	})
	group.Go(func() error {
		return runMonitored(groupCtx, r.health, "api", func(context.Context) error {
			err := r.httpServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func (r *Runtime) Close() error {
	return r.core.Close()
}

func runMonitored(ctx context.Context, reporter health.Reporter, component string, run func(context.Context) error) error {
	if reporter != nil {
		reporter.Healthy(component, "running")
	}
	err := run(ctx)
	if reporter == nil {
		return err
	}
	if err != nil && ctx.Err() == nil {
		reporter.Degrade(component, "component failed", err)
		return err
	}
	reporter.Stopped(component, "stopped")
	return err
}

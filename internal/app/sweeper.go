package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwizi/accessbot/internal/session"
)

var sweepScheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// sessionSweeper closes sessions that have been idle longer than idleTTL.
// A non-positive idleTTL disables it.
type sessionSweeper struct {
	sessions *session.Manager
	schedule cron.Schedule
	idleTTL  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func newSessionSweeper(sessions *session.Manager, expr string, idleTTL time.Duration, logger *slog.Logger) (*sessionSweeper, error) {
	expr = strings.Join(strings.Fields(expr), " ")
	if expr == "" {
		expr = "@every 5m"
	}
	schedule, err := sweepScheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse session sweep schedule: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionSweeper{
		sessions: sessions,
		schedule: schedule,
		idleTTL:  idleTTL,
		now:      time.Now,
		logger:   logger,
	}, nil
}

func (s *sessionSweeper) Start(ctx context.Context) error {
	if s.idleTTL <= 0 {
		<-ctx.Done()
		return nil
	}
	runner := cron.New(cron.WithLocation(time.UTC))
	runner.Schedule(s.schedule, cron.FuncJob(func() { s.sweep() }))
	runner.Start()
	s.logger.Info("session sweeper started", "idle_ttl", s.idleTTL.String())
	<-ctx.Done()
	<-runner.Stop().Done()
	s.logger.Info("session sweeper stopped")
	return nil
}

func (s *sessionSweeper) sweep() []string {
	closed := s.sessions.Sweep(s.now(), s.idleTTL)
	s.logger.Debug("session sweep finished", "closed", closed, "remaining", s.sessions.Len())
	return closed
}

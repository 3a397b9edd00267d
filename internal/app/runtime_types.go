package app

import (
	"log/slog"
	"net/http"

	"github.com/dwizi/accessbot/internal/config"
	"github.com/dwizi/accessbot/internal/health"
	"github.com/dwizi/accessbot/internal/watcher"
)

type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	core       *Core
	health     *health.Registry
	httpServer *http.Server
	watcher    *watcher.Service
	sweeper    *sessionSweeper
}

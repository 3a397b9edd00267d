package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dwizi/accessbot/internal/approval"
	"github.com/dwizi/accessbot/internal/config"
	"github.com/dwizi/accessbot/internal/directory"
	"github.com/dwizi/accessbot/internal/gateway"
	"github.com/dwizi/accessbot/internal/health"
	"github.com/dwizi/accessbot/internal/httpapi"
	"github.com/dwizi/accessbot/internal/memorylog"
	"github.com/dwizi/accessbot/internal/session"
	"github.com/dwizi/accessbot/internal/store"
	"github.com/dwizi/accessbot/internal/transcript"
	"github.com/dwizi/accessbot/internal/watcher"
)

// Core is the chat engine without any listeners: the audit store, the
// directory, the session manager and the gateway. The HTTP runtime and the
// terminal chat both build on it.
type Core struct {
	Store     *store.Store
	Sessions  *session.Manager
	Gateway   *gateway.Service
	Directory *directory.FileProvider
}

func NewCore(cfg config.Config, logger *slog.Logger) (*Core, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var sqlStore *store.Store
	if cfg.AuditEnabled {
		opened, err := openStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		sqlStore = opened
	}
	provider, fileProvider, err := buildDirectory(cfg)
	if err != nil {
		closeStore(sqlStore)
		return nil, err
	}
	return &Core{
		Store:     sqlStore,
		Sessions:  session.NewManager(sessionDefaults(cfg, sqlStore, logger)),
		Gateway:   gateway.New(provider, gatewayConfig(cfg), logger.With("component", "gateway")),
		Directory: fileProvider,
	}, nil
}

// Close stops every session's scheduler before closing the store so no
// decision is recorded against a closed database.
func (c *Core) Close() error {
	c.Sessions.Close()
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := health.NewRegistry(nil)
	registry.Starting("api", "initializing")

	core, err := NewCore(cfg, logger)
	if err != nil {
		return nil, err
	}

	var watchService *watcher.Service
	switch {
	case core.Directory == nil:
		registry.Disabled("directory-watch", "built-in directory")
	case !cfg.WatchDirectory:
		registry.Disabled("directory-watch", "watch disabled")
	default:
		watchService, err = watcher.New(core.Directory.Path(), logger.With("component", "watcher"), directoryReloader(core.Directory, registry, logger))
		if err != nil {
			_ = core.Close()
			return nil, fmt.Errorf("watch directory file: %w", err)
		}
		registry.Starting("directory-watch", "initializing")
	}

	sweeper, err := newSessionSweeper(core.Sessions, cfg.SessionSweepSchedule, time.Duration(cfg.SessionIdleTTLSeconds)*time.Second, logger.With("component", "session-sweeper"))
	if err != nil {
		_ = core.Close()
		return nil, err
	}
	registry.Starting("session-sweeper", "initializing")

	handler := httpapi.NewRouter(httpapi.Dependencies{
		Config:   cfg,
		Store:    core.Store,
		Sessions: core.Sessions,
		Gateway:  core.Gateway,
		Health:   registry,
		Logger:   logger.With("component", "api"),
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		core:       core,
		health:     registry,
		httpServer: httpServer,
		watcher:    watchService,
		sweeper:    sweeper,
	}, nil
}

func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	sqlStore, err := store.New(path)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}
	return sqlStore, nil
}

func closeStore(sqlStore *store.Store) {
	if sqlStore != nil {
		_ = sqlStore.Close()
	}
}

// buildDirectory returns the built-in sample directory unless a fixture file
// is configured. The file provider is returned separately so it can be
// watched.
func buildDirectory(cfg config.Config) (directory.Provider, *directory.FileProvider, error) {
	path := strings.TrimSpace(cfg.DirectoryFile)
	if path == "" {
		return directory.NewStatic(directory.Sample()), nil, nil
	}
	fileProvider, err := directory.NewFileProvider(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load directory file: %w", err)
	}
	return fileProvider, fileProvider, nil
}

func directoryReloader(provider *directory.FileProvider, reporter health.Reporter, logger *slog.Logger) func(context.Context, string) {
	return func(ctx context.Context, path string) {
		if err := provider.Reload(ctx); err != nil {
			logger.Warn("directory reload failed, keeping previous snapshot", "path", path, "error", err)
			reporter.Degrade("directory-watch", "reload failed", err)
			return
		}
		logger.Info("directory reloaded", "path", path)
		reporter.Healthy("directory-watch", "reloaded")
	}
}

func suffixSource(cfg config.Config) approval.SuffixSource {
	if cfg.AuditSuffixMode == "sequential" {
		return approval.NewSequentialSuffix()
	}
	return approval.NewRandomSuffix(uint64(cfg.AuditSeed))
}

func sessionDefaults(cfg config.Config, sqlStore *store.Store, logger *slog.Logger) session.Options {
	opts := session.Options{
		Participant: cfg.DefaultParticipant,
		Bot:         transcript.Sender{ID: cfg.BotID, DisplayName: cfg.BotName, IsBot: true},
		Mention:     cfg.MentionToken,
		Suffix:      suffixSource(cfg),
		Logger:      logger.With("component", "session"),
	}
	if sqlStore != nil {
		opts.Recorder = auditRecorder{store: sqlStore}
	}
	if dir := strings.TrimSpace(cfg.TranscriptLogDir); dir != "" {
		opts.Archiver = memorylog.NewWriter(dir)
	}
	return opts
}

func gatewayConfig(cfg config.Config) gateway.Config {
	out := gateway.DefaultConfig()
	out.Mention = cfg.MentionToken
	out.ReplyDelay = time.Duration(cfg.ReplyDelayMS) * time.Millisecond
	out.FollowupStep = time.Duration(cfg.FollowupStepMS) * time.Millisecond
	out.ActionDelay = time.Duration(cfg.ActionDelayMS) * time.Millisecond
	out.DefaultUsername = cfg.DefaultUsername
	out.DefaultAppName = cfg.DefaultAppName
	out.ResetRequestType = cfg.ResetRequestType
	out.GuideURL = cfg.GuideURL
	return out
}

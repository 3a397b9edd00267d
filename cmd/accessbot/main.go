package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/dwizi/accessbot/internal/cli"
	"github.com/dwizi/accessbot/internal/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env failed", "error", err)
	}
	level := slog.LevelInfo
	if raw := strings.TrimSpace(os.Getenv("ACCESSBOT_LOG_LEVEL")); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			level = slog.LevelInfo
		}
	}
	// stdout belongs to the chat REPL
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if err := cli.NewRoot(logger).Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

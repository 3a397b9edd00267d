package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	HTTPAddr    string
	DataDir     string
	DBPath      string

	AuditEnabled    bool
	AuditSuffixMode string // random | sequential
	AuditSeed       int

	TranscriptLogDir string
	DirectoryFile    string
	WatchDirectory   bool

	BotID        string
	BotName      string
	MentionToken string

	ReplyDelayMS   int
	FollowupStepMS int
	ActionDelayMS  int

	DefaultParticipant string
	DefaultUsername    string
	DefaultAppName     string
	ResetRequestType   string
	GuideURL           string

	SessionIdleTTLSeconds int
	SessionSweepSchedule  string

	PublicHost string
}

// LoadDotEnv reads a .env file into the process environment when one exists.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func FromEnv() Config {
	dataDir := stringOrDefault("ACCESSBOT_DATA_DIR", "/data")
	dbPath := stringOrDefault("ACCESSBOT_DB_PATH", filepath.Join(dataDir, "accessbot", "audit.sqlite"))

	return Config{
		Environment: stringOrDefault("ACCESSBOT_ENV", "development"),
		HTTPAddr:    stringOrDefault("ACCESSBOT_HTTP_ADDR", ":8080"),
		DataDir:     dataDir,
		DBPath:      dbPath,

		AuditEnabled:    boolOrDefault("ACCESSBOT_AUDIT_ENABLED", true),
		AuditSuffixMode: suffixModeOrDefault("ACCESSBOT_AUDIT_SUFFIX_MODE", "random"),
		AuditSeed:       intOrDefault("ACCESSBOT_AUDIT_SEED", 0),

		TranscriptLogDir: strings.TrimSpace(os.Getenv("ACCESSBOT_TRANSCRIPT_LOG_DIR")),
		DirectoryFile:    strings.TrimSpace(os.Getenv("ACCESSBOT_DIRECTORY_FILE")),
		WatchDirectory:   boolOrDefault("ACCESSBOT_DIRECTORY_WATCH", true),

		BotID:        stringOrDefault("ACCESSBOT_BOT_ID", "accessbot"),
		BotName:      stringOrDefault("ACCESSBOT_BOT_NAME", "AccessBot"),
		MentionToken: stringOrDefault("ACCESSBOT_MENTION", "@AccessBot"),

		ReplyDelayMS:   nonNegativeIntOrDefault("ACCESSBOT_REPLY_DELAY_MS", 1000),
		FollowupStepMS: nonNegativeIntOrDefault("ACCESSBOT_FOLLOWUP_STEP_MS", 500),
		ActionDelayMS:  nonNegativeIntOrDefault("ACCESSBOT_ACTION_DELAY_MS", 0),

		DefaultParticipant: stringOrDefault("ACCESSBOT_DEFAULT_PARTICIPANT", "accessadmin"),
		DefaultUsername:    stringOrDefault("ACCESSBOT_DEFAULT_USERNAME", "alice.w"),
		DefaultAppName:     stringOrDefault("ACCESSBOT_DEFAULT_APP", "Payroll"),
		ResetRequestType:   stringOrDefault("ACCESSBOT_RESET_REQUEST_TYPE", "Network AD password reset"),
		GuideURL:           stringOrDefault("ACCESSBOT_GUIDE_URL", "https://access.example/guides/token-onboarding.pdf"),

		SessionIdleTTLSeconds: intOrDefault("ACCESSBOT_SESSION_IDLE_TTL_SECONDS", 3600),
		SessionSweepSchedule:  stringOrDefault("ACCESSBOT_SESSION_SWEEP_SCHEDULE", "@every 5m"),

		PublicHost: stringOrDefault("ACCESSBOT_PUBLIC_HOST", "localhost"),
	}
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

// nonNegativeIntOrDefault accepts 0, which disables a delay.
func nonNegativeIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func suffixModeOrDefault(name, fallback string) string {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch value {
	case "random", "sequential":
		return value
	default:
		return fallback
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"junket-admin/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	DraftBackendSQLite = "sqlite"
	DraftBackendMemory = "memory"
)

type Config struct {
	AdminAPIURL    string
	AdminAPIToken  string
	DBPath         string
	DraftBackend   string
	ServerPort     string
	LogLevel       string
	AllowedOrigins []string
	DraftDebounce  time.Duration
	SearchDebounce time.Duration
	// ConfirmTransition enables POST /junket-import/{id}/confirm. Without it
	// calculate-rewards is what moves a batch past imported.
	ConfirmTransition bool
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		AdminAPIURL:    strings.TrimRight(getEnv("ADMIN_API_URL", "http://localhost:5002/api/admin"), "/"),
		AdminAPIToken:  getEnv("ADMIN_API_TOKEN", ""),
		DBPath:         getEnv("DB_PATH", "drafts.db"),
		DraftBackend:   strings.ToLower(getEnv("DRAFT_BACKEND", DraftBackendSQLite)),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
	}

	var err error
	if cfg.DraftDebounce, err = getDuration("DRAFT_DEBOUNCE", constants.DraftDebounce); err != nil {
		return nil, err
	}
	if cfg.SearchDebounce, err = getDuration("SEARCH_DEBOUNCE", constants.SearchDebounce); err != nil {
		return nil, err
	}

	if v := os.Getenv("CONFIRM_TRANSITION"); v != "" {
		if cfg.ConfirmTransition, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid CONFIRM_TRANSITION: %w", err)
		}
	}

	if cfg.AdminAPIToken == "" {
		return nil, fmt.Errorf("ADMIN_API_TOKEN is required")
	}
	if cfg.DraftBackend != DraftBackendSQLite && cfg.DraftBackend != DraftBackendMemory {
		return nil, fmt.Errorf("DRAFT_BACKEND must be %q or %q, got %q", DraftBackendSQLite, DraftBackendMemory, cfg.DraftBackend)
	}

	logger.Info().
		Str("admin_api_url", cfg.AdminAPIURL).
		Str("db_path", cfg.DBPath).
		Str("draft_backend", cfg.DraftBackend).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Dur("draft_debounce", cfg.DraftDebounce).
		Dur("search_debounce", cfg.SearchDebounce).
		Bool("confirm_transition", cfg.ConfirmTransition).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var Module = fx.Provide(Load)

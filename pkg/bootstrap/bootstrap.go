package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	shared "github.com/stravapress/server/pkg"
	"github.com/stravapress/server/pkg/infrastructure/settings"
	"github.com/stravapress/server/pkg/wordpress"
)

// Config holds standard configuration for the importer service
type Config struct {
	ListenAddr   string
	DatabasePath string
	Environment  string

	WordPressBaseURL     string
	WordPressUser        string
	WordPressAppPassword string

	// OAuthRedirectURL is where Strava sends the authorization code back.
	OAuthRedirectURL string

	// ImportDelay paces batch imports against the Strava rate limit.
	ImportDelay time.Duration

	SentryDSN string
}

// Service holds initialized dependencies
type Service struct {
	Settings shared.SettingsRepository
	Store    shared.ContentStore
	Config   *Config

	closer func() error
}

// LoadConfig reads configuration from environment variables
func LoadConfig() *Config {
	delay := 2 * time.Second
	if raw := os.Getenv("IMPORT_DELAY_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
			delay = time.Duration(secs) * time.Second
		}
	}

	return &Config{
		ListenAddr:           getEnv("LISTEN_ADDR", ":8080"),
		DatabasePath:         getEnv("DATABASE_PATH", "data/stravapress.db"),
		Environment:          getEnv("ENVIRONMENT", "development"),
		WordPressBaseURL:     os.Getenv("WORDPRESS_BASE_URL"),
		WordPressUser:        os.Getenv("WORDPRESS_USER"),
		WordPressAppPassword: os.Getenv("WORDPRESS_APP_PASSWORD"),
		OAuthRedirectURL:     os.Getenv("OAUTH_REDIRECT_URL"),
		ImportDelay:          delay,
		SentryDSN:            os.Getenv("SENTRY_DSN"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetSlogHandlerOptions returns standard handler options
func GetSlogHandlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: level}
}

// ComponentHandler wraps a slog.Handler to prepend [component] to the message
type ComponentHandler struct {
	slog.Handler
	component string
}

// WithGroup implements slog.Handler
func (h *ComponentHandler) WithGroup(name string) slog.Handler {
	return &ComponentHandler{
		Handler:   h.Handler.WithGroup(name),
		component: h.component,
	}
}

// WithAttrs implements slog.Handler
func (h *ComponentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newComp := h.component
	for _, a := range attrs {
		if a.Key == "component" {
			newComp = a.Value.String()
		}
	}
	return &ComponentHandler{
		Handler:   h.Handler.WithAttrs(attrs),
		component: newComp,
	}
}

// Handle implements slog.Handler
func (h *ComponentHandler) Handle(ctx context.Context, r slog.Record) error {
	comp := h.component

	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			comp = a.Value.String()
			return false // stop
		}
		return true
	})

	if comp != "" {
		newMsg := fmt.Sprintf("[%s] %s", comp, r.Message)
		newRecord := slog.NewRecord(r.Time, r.Level, newMsg, r.PC)
		r.Attrs(func(a slog.Attr) bool {
			newRecord.AddAttrs(a)
			return true
		})
		r = newRecord
	}

	return h.Handler.Handle(ctx, r)
}

// InitLogger configures structured JSON logging as the process default
func InitLogger() {
	opts := GetSlogHandlerOptions(slog.LevelInfo)
	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(&ComponentHandler{Handler: handler})
	slog.SetDefault(logger)
}

// NewLogger creates a configured logger instance
func NewLogger(serviceName string) *slog.Logger {
	logLevelStr := os.Getenv("LOG_LEVEL")
	var level slog.Level
	switch strings.ToLower(logLevelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := GetSlogHandlerOptions(level)
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(&ComponentHandler{Handler: handler}).With("service", serviceName)
}

// NewService initializes all standard dependencies
func NewService(ctx context.Context) (*Service, error) {
	InitLogger()
	cfg := LoadConfig()

	slog.Info("Initializing service", "environment", cfg.Environment, "database", cfg.DatabasePath)

	opts, err := settings.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("Settings store init failed", "error", err)
		return nil, fmt.Errorf("settings init: %w", err)
	}

	if cfg.WordPressBaseURL == "" {
		opts.Close()
		return nil, fmt.Errorf("WORDPRESS_BASE_URL is required")
	}

	store := wordpress.NewClient(cfg.WordPressBaseURL, cfg.WordPressUser, cfg.WordPressAppPassword)

	return &Service{
		Settings: opts,
		Store:    store,
		Config:   cfg,
		closer:   opts.Close,
	}, nil
}

// Close releases service resources.
func (s *Service) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

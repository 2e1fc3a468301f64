package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeBuffered Mode = "buffered"
	ModeStream   Mode = "stream"
)

type Config struct {
	Port          string
	GinMode       string
	Mode          Mode
	StaticRoot    string
	WriteTimeout  time.Duration
	CheckUpstream bool
	Log           LogConfig
	Upstream      UpstreamConfig
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// UpstreamConfig is everything the provider client needs. It is built once at
// startup and handed to upstream.NewClient.
type UpstreamConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Referer string
	Title   string
	Timeout time.Duration // zero means no client-side timeout
}

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "google/gemini-2.5-flash"
	defaultReferer = "http://localhost:3000"
	defaultTitle   = "StopOpioids"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		GinMode:       getEnv("GIN_MODE", "release"),
		Mode:          Mode(strings.ToLower(getEnv("ASSESS_MODE", string(ModeBuffered)))),
		StaticRoot:    os.Getenv("STATIC_ROOT"),
		CheckUpstream: strings.EqualFold(getEnv("CHECK_UPSTREAM", "false"), "true"),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Upstream: UpstreamConfig{
			APIKey:  os.Getenv("OPENROUTER_API_KEY"),
			BaseURL: strings.TrimRight(getEnv("OPENROUTER_BASE_URL", defaultBaseURL), "/"),
			Model:   getEnv("OPENROUTER_MODEL", defaultModel),
			Referer: getEnv("APP_URL", getEnv("VERCEL_URL", defaultReferer)),
			Title:   getEnv("APP_TITLE", defaultTitle),
		},
	}

	if cfg.Upstream.APIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}

	switch cfg.Mode {
	case ModeBuffered, ModeStream:
	default:
		return nil, fmt.Errorf("ASSESS_MODE must be %q or %q, got %q", ModeBuffered, ModeStream, cfg.Mode)
	}

	var err error
	if cfg.WriteTimeout, err = getDuration("WRITE_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}
	if cfg.Upstream.Timeout, err = getDuration("UPSTREAM_TIMEOUT", 0); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

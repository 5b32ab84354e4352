package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config aggregates gateway configuration loaded from environment
// variables.
type Config struct {
	Env      string
	HTTPAddr string

	// RelayURL is the websocket endpoint of the message relay.
	RelayURL string
	// ReconnectDelay is the fixed pause before the relay connection is
	// retried after a close or error.
	ReconnectDelay time.Duration

	// ItemsAPIURL and MessagesAPIURL are the REST collaborators.
	ItemsAPIURL    string
	MessagesAPIURL string

	// TokenEndpoint mints the bearer credential; StaticToken overrides
	// it for local setups.
	TokenEndpoint string
	StaticToken   string

	// Object storage image resolution.
	ImageBaseURL     string
	ImagePrefix      string
	ImagePlaceholder string

	// BootstrapTimeout bounds the initial inbox load.
	BootstrapTimeout time.Duration
	// MetaWorkers bounds concurrent item-metadata lookups during
	// bootstrap.
	MetaWorkers int
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		RelayURL:         os.Getenv("RELAY_URL"),
		ItemsAPIURL:      strings.TrimRight(os.Getenv("ITEMS_API_URL"), "/"),
		MessagesAPIURL:   strings.TrimRight(os.Getenv("MESSAGES_API_URL"), "/"),
		TokenEndpoint:    os.Getenv("TOKEN_ENDPOINT"),
		StaticToken:      os.Getenv("STATIC_TOKEN"),
		ImageBaseURL:     getEnv("IMAGE_BASE_URL", "http://localhost:9000/rentline-photos"),
		ImagePrefix:      getEnv("IMAGE_PREFIX", "items"),
		ImagePlaceholder: getEnv("IMAGE_PLACEHOLDER", "/static/placeholder.png"),
	}

	delay, err := parseDurationEnv("RELAY_RECONNECT_DELAY", 3*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.ReconnectDelay = delay

	bootTimeout, err := parseDurationEnv("BOOTSTRAP_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.BootstrapTimeout = bootTimeout

	workers, err := parseIntEnv("META_WORKERS", 4)
	if err != nil {
		return Config{}, err
	}
	cfg.MetaWorkers = workers

	if cfg.RelayURL == "" {
		return Config{}, fmt.Errorf("RELAY_URL is required")
	}
	if cfg.ItemsAPIURL == "" {
		return Config{}, fmt.Errorf("ITEMS_API_URL is required")
	}
	if cfg.MessagesAPIURL == "" {
		return Config{}, fmt.Errorf("MESSAGES_API_URL is required")
	}
	if cfg.TokenEndpoint == "" && cfg.StaticToken == "" {
		return Config{}, fmt.Errorf("TOKEN_ENDPOINT or STATIC_TOKEN is required")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s integer: %q", key, raw)
	}
	return v, nil
}

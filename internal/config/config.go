// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	envListenAddr    = "BELUZ_LISTEN_ADDR"
	envPGDSN         = "BELUZ_PG_DSN"
	envAccessSecret  = "BELUZ_JWT_SECRET"
	envAccessTTL     = "BELUZ_JWT_EXPIRATION"
	envRefreshSecret = "BELUZ_JWT_REFRESH_SECRET"
	envRefreshTTL    = "BELUZ_JWT_REFRESH_EXPIRATION"
	envBcryptRounds  = "BELUZ_BCRYPT_ROUNDS"
	envIssuer        = "BELUZ_JWT_ISSUER"
)

// Config is the full configuration surface of the service.
type Config struct {
	ListenAddr    string
	PGDSN         string
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	BcryptRounds  int
	Issuer        string
}

// Defaults.
const (
	DefaultListenAddr   = ":8080"
	DefaultAccessTTL    = 15 * time.Minute
	DefaultRefreshTTL   = 7 * 24 * time.Hour
	DefaultBcryptRounds = 10
	DefaultIssuer       = "beluz"
)

// Load reads configuration from the environment. Both token secrets are
// required and must differ; everything else has a default.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:    envOr(envListenAddr, DefaultListenAddr),
		PGDSN:         strings.TrimSpace(os.Getenv(envPGDSN)),
		AccessSecret:  strings.TrimSpace(os.Getenv(envAccessSecret)),
		RefreshSecret: strings.TrimSpace(os.Getenv(envRefreshSecret)),
		Issuer:        envOr(envIssuer, DefaultIssuer),
	}
	if cfg.AccessSecret == "" {
		return Config{}, fmt.Errorf("%s is required", envAccessSecret)
	}
	if cfg.RefreshSecret == "" {
		return Config{}, fmt.Errorf("%s is required", envRefreshSecret)
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return Config{}, errors.New("access and refresh secrets must differ")
	}

	var err error
	if cfg.AccessTTL, err = durationOr(envAccessTTL, DefaultAccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = durationOr(envRefreshTTL, DefaultRefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.BcryptRounds, err = intOr(envBcryptRounds, DefaultBcryptRounds); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func intOr(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

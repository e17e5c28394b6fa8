package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BELUZ_JWT_SECRET", "access")
	t.Setenv("BELUZ_JWT_REFRESH_SECRET", "refresh")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.AccessTTL != DefaultAccessTTL || cfg.RefreshTTL != DefaultRefreshTTL {
		t.Fatalf("unexpected TTLs: %v / %v", cfg.AccessTTL, cfg.RefreshTTL)
	}
	if cfg.BcryptRounds != DefaultBcryptRounds {
		t.Fatalf("unexpected bcrypt rounds: %d", cfg.BcryptRounds)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BELUZ_JWT_SECRET", "access")
	t.Setenv("BELUZ_JWT_REFRESH_SECRET", "refresh")
	t.Setenv("BELUZ_JWT_EXPIRATION", "5m")
	t.Setenv("BELUZ_JWT_REFRESH_EXPIRATION", "48h")
	t.Setenv("BELUZ_BCRYPT_ROUNDS", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessTTL != 5*time.Minute || cfg.RefreshTTL != 48*time.Hour {
		t.Fatalf("unexpected TTLs: %v / %v", cfg.AccessTTL, cfg.RefreshTTL)
	}
	if cfg.BcryptRounds != 12 {
		t.Fatalf("unexpected bcrypt rounds: %d", cfg.BcryptRounds)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("BELUZ_JWT_SECRET", "")
	t.Setenv("BELUZ_JWT_REFRESH_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing secrets")
	}

	t.Setenv("BELUZ_JWT_SECRET", "same")
	t.Setenv("BELUZ_JWT_REFRESH_SECRET", "same")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for identical secrets")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("BELUZ_JWT_SECRET", "access")
	t.Setenv("BELUZ_JWT_REFRESH_SECRET", "refresh")
	t.Setenv("BELUZ_JWT_EXPIRATION", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unparsable duration")
	}
}

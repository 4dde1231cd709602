package config

import (
	"encoding/hex"
	"testing"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/medrec")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.DefaultTenant != "default" {
		t.Errorf("default tenant = %q", cfg.DefaultTenant)
	}
	if cfg.PHIKeyVersion != 1 {
		t.Errorf("key version = %d", cfg.PHIKeyVersion)
	}
	if !cfg.AuditEnabled {
		t.Error("audit should default to enabled")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoadProductionRequirements(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ENV", "production")

	t.Run("missing jwt secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		if _, err := Load(); err == nil {
			t.Fatal("expected error without JWT_SECRET in production")
		}
	})

	t.Run("missing phi key", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("PHI_ENCRYPTION_KEY", "")
		if _, err := Load(); err == nil {
			t.Fatal("expected error without PHI_ENCRYPTION_KEY in production")
		}
	})

	t.Run("complete", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("PHI_ENCRYPTION_KEY", hex.EncodeToString(make([]byte, 32)))
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !cfg.IsProduction() {
			t.Fatal("expected production mode")
		}
	})
}

func TestEncryptionKey(t *testing.T) {
	t.Run("valid hex key", func(t *testing.T) {
		cfg := &Config{PHIEncryptionKey: hex.EncodeToString(make([]byte, 32))}
		key, err := cfg.EncryptionKey()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(key) != 32 {
			t.Fatalf("key length = %d", len(key))
		}
	})

	t.Run("not hex", func(t *testing.T) {
		cfg := &Config{PHIEncryptionKey: "zz-not-hex"}
		if _, err := cfg.EncryptionKey(); err == nil {
			t.Fatal("expected error for non-hex key")
		}
	})

	t.Run("wrong length", func(t *testing.T) {
		cfg := &Config{PHIEncryptionKey: hex.EncodeToString(make([]byte, 16))}
		if _, err := cfg.EncryptionKey(); err == nil {
			t.Fatal("expected error for 16-byte key")
		}
	})

	t.Run("unset", func(t *testing.T) {
		cfg := &Config{}
		if _, err := cfg.EncryptionKey(); err == nil {
			t.Fatal("expected error for unset key")
		}
	})
}

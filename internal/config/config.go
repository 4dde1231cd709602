package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant    string   `mapstructure:"DEFAULT_TENANT"`
	JWTSecret        string   `mapstructure:"JWT_SECRET"`
	JWTIssuer        string   `mapstructure:"JWT_ISSUER"`
	PHIEncryptionKey string   `mapstructure:"PHI_ENCRYPTION_KEY"`
	PHIKeyVersion    int      `mapstructure:"PHI_KEY_VERSION"`
	AuditEnabled     bool     `mapstructure:"AUDIT_ENABLED"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("JWT_ISSUER", "medrec")
	v.SetDefault("PHI_KEY_VERSION", 1)
	v.SetDefault("AUDIT_ENABLED", true)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("DEFAULT_TENANT")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("JWT_ISSUER")
	v.BindEnv("PHI_ENCRYPTION_KEY")
	v.BindEnv("PHI_KEY_VERSION")
	v.BindEnv("AUDIT_ENABLED")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsProduction() {
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		if cfg.PHIEncryptionKey == "" {
			return nil, fmt.Errorf("PHI_ENCRYPTION_KEY is required in production")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// EncryptionKey decodes PHI_ENCRYPTION_KEY from hex and validates its length.
// Field-level PHI encryption requires a 32-byte AES-256 key.
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.PHIEncryptionKey == "" {
		return nil, fmt.Errorf("PHI_ENCRYPTION_KEY is not set")
	}
	key, err := hex.DecodeString(c.PHIEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("PHI_ENCRYPTION_KEY must be hex-encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("PHI_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

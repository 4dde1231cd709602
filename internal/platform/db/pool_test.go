package db

import (
	"testing"

	"github.com/medrec/medrec/internal/config"
)

func TestPoolConfig(t *testing.T) {
	cfg := &config.Config{
		DatabaseURL: "postgres://localhost:5432/medrec",
		DBMaxConns:  10,
		DBMinConns:  2,
	}

	pc, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pc.MaxConns != 10 || pc.MinConns != 2 {
		t.Fatalf("pool sizing = %d/%d, want 10/2", pc.MaxConns, pc.MinConns)
	}
	if pc.AfterRelease == nil {
		t.Fatal("released connections must have their search_path cleared")
	}
}

func TestPoolConfigInvalidURL(t *testing.T) {
	cfg := &config.Config{DatabaseURL: "postgres://u@localhost:notaport/medrec"}
	if _, err := poolConfig(cfg); err == nil {
		t.Fatal("expected error for malformed database url")
	}
}

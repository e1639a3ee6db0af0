package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.AssistantProvider != "mock" || cfg.TTSProvider != "mock" {
		t.Fatalf("expected mock providers by default, got %q/%q", cfg.AssistantProvider, cfg.TTSProvider)
	}
	if cfg.PersistUnassigned {
		t.Fatalf("expected unassigned tickets to be dropped by default")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://localhost/opshub")
	t.Setenv("PERSIST_UNASSIGNED", "true")
	t.Setenv("REQUEST_TIMEOUT", "5s")

	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/opshub" {
		t.Fatalf("unexpected database url %q", cfg.DatabaseURL)
	}
	if !cfg.PersistUnassigned {
		t.Fatalf("expected PERSIST_UNASSIGNED to be read from env")
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("expected 5s, got %s", cfg.RequestTimeout)
	}
}

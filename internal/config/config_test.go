package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	settings, err := Load(GlobalFlags{Retries: -1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.Timeout != 20*time.Second {
		t.Fatalf("timeout = %s", settings.Timeout)
	}
	if settings.Retries != 2 {
		t.Fatalf("retries = %d", settings.Retries)
	}
	if settings.RouteCacheTTL != 5*time.Minute {
		t.Fatalf("route cache ttl = %s", settings.RouteCacheTTL)
	}
	if settings.HistoryPath == "" || settings.AuditPath == "" {
		t.Fatal("data paths must default")
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := []byte(`
timeout: 30s
retries: 5
providers:
  relay:
    base_url: https://relay.example
solana:
  rpc_url: https://rpc.example
`)
	if err := os.WriteFile(cfgPath, cfg, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("SWAPROUTER_RETRIES", "1")

	settings, err := Load(GlobalFlags{ConfigPath: cfgPath, Timeout: "5s", Retries: -1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// File beats defaults, env beats file, flags beat env.
	if settings.Timeout != 5*time.Second {
		t.Fatalf("flag timeout must win, got %s", settings.Timeout)
	}
	if settings.Retries != 1 {
		t.Fatalf("env retries must beat file, got %d", settings.Retries)
	}
	if settings.RelayBaseURL != "https://relay.example" {
		t.Fatalf("relay url = %s", settings.RelayBaseURL)
	}
	if settings.SolanaRPCURL != "https://rpc.example" {
		t.Fatalf("rpc url = %s", settings.SolanaRPCURL)
	}
}

func TestLoadRejectsConflictingOutputFlags(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	if _, err := Load(GlobalFlags{JSON: true, Plain: true, Retries: -1}); err == nil {
		t.Fatal("conflicting output flags must error")
	}
}

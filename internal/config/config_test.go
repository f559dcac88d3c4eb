package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTPPort != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.HTTPPort)
	}
	if cfg.TickInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms tick, got %v", cfg.TickInterval)
	}
	if cfg.RateWindow != time.Hour || cfg.RateMaxStarts != 5 {
		t.Errorf("unexpected rate limit defaults %v/%d", cfg.RateWindow, cfg.RateMaxStarts)
	}
	if cfg.HistoryCap != 50 || cfg.FeedSize != 50 || cfg.PageSize != 25 {
		t.Errorf("unexpected size defaults %d/%d/%d", cfg.HistoryCap, cfg.FeedSize, cfg.PageSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("DEBUG", "true")
	t.Setenv("TICK_INTERVAL", "250ms")
	t.Setenv("MAX_JOB_DURATION", "120")
	t.Setenv("EMAIL_PROBABILITY", "0.5")
	t.Setenv("LIST_BACKEND", "sqlite")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPPort != 9100 || !cfg.Debug {
		t.Errorf("env not applied: port=%d debug=%v", cfg.HTTPPort, cfg.Debug)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.TickInterval)
	}
	if cfg.MaxJobDuration != 2*time.Minute {
		t.Errorf("expected whole seconds to parse, got %v", cfg.MaxJobDuration)
	}
	if cfg.EmailProbability != 0.5 || cfg.ListBackend != "sqlite" {
		t.Errorf("unexpected %v %s", cfg.EmailProbability, cfg.ListBackend)
	}
	if cfg.Addr() != ":9100" {
		t.Errorf("expected :9100, got %s", cfg.Addr())
	}
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadengine.yaml")
	content := `
http_port: 7000
store_backend: badger
tick_interval: 1s
rate_max_starts: 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RATE_MAX_STARTS", "3")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPPort != 7000 || cfg.StoreBackend != "badger" || cfg.TickInterval != time.Second {
		t.Errorf("file not applied: %+v", cfg)
	}
	if cfg.RateMaxStarts != 3 {
		t.Errorf("expected env to win, got %d", cfg.RateMaxStarts)
	}
	if cfg.FeedSize != 50 {
		t.Errorf("expected untouched default, got %d", cfg.FeedSize)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("http_port: [not, a, port]"), 0o644)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := defaults()
	cfg.HTTPPort = 0
	cfg.StoreBackend = "redis"
	cfg.EmailProbability = 1.5
	cfg.PageSize = 1000

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"http_port", "store_backend", "email_probability", "page_size"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

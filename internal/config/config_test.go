package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NEWSAPI_KEY", "abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "abc" {
		t.Fatalf("APIKey = %q", cfg.APIKey)
	}
	if cfg.StreamInterval != 60*time.Second {
		t.Fatalf("StreamInterval = %s", cfg.StreamInterval)
	}
	if cfg.RecencyWindowSize != 1000 {
		t.Fatalf("RecencyWindowSize = %d", cfg.RecencyWindowSize)
	}
	if cfg.RequestTimeout != 0 {
		t.Fatalf("RequestTimeout = %s", cfg.RequestTimeout)
	}
	if cfg.StorageTTL != 5*24*time.Hour {
		t.Fatalf("StorageTTL = %s", cfg.StorageTTL)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("STREAM_INTERVAL_SECONDS", "5")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "3")
	t.Setenv("SCRAPE_DELAY_MS", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StreamInterval != 5*time.Second || cfg.RequestTimeout != 3*time.Second || cfg.ScrapeDelay != 10*time.Millisecond {
		t.Fatalf("unexpected durations %+v", cfg)
	}
}

func TestLoadRejectsInvalidInterval(t *testing.T) {
	t.Setenv("STREAM_INTERVAL_SECONDS", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestRedactedHidesKey(t *testing.T) {
	cfg := Config{APIKey: "secret"}
	if cfg.Redacted().APIKey == "secret" {
		t.Fatalf("key not redacted")
	}
	if cfg.APIKey != "secret" {
		t.Fatalf("original config mutated")
	}
}

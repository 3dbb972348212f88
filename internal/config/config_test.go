package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Normalize()

	if cfg.Listen != "127.0.0.1:8080" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Remote.TokenEnv != "DENTCAL_API_TOKEN" {
		t.Errorf("TokenEnv = %q", cfg.Remote.TokenEnv)
	}
	if cfg.SnapMinutes != 5 {
		t.Errorf("SnapMinutes = %d", cfg.SnapMinutes)
	}
	if cfg.Grid.HalfHourHeight != 40 || cfg.Grid.HeaderHeight != 60 {
		t.Errorf("grid = %+v", cfg.Grid)
	}
	if len(cfg.Treatments) == 0 {
		t.Error("Treatments not defaulted")
	}
}

func TestNormalizeLabelField(t *testing.T) {
	for in, want := range map[string]string{
		"":      "title",
		"title": "title",
		"notes": "notes",
		"topic": "title",
	} {
		cfg := &Config{LabelField: in}
		cfg.Normalize()
		if cfg.LabelField != want {
			t.Errorf("LabelField(%q) = %q, want %q", in, cfg.LabelField, want)
		}
	}
}

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8080" {
		t.Errorf("Listen = %q", cfg.Listen)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config was not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config perms = %o, want 600", perm)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.LabelField = "notes"
	cfg.Blocked = []BlockedConfig{{
		Label:           "Lunch",
		Rule:            "DTSTART:20260101T130000Z\nRRULE:FREQ=DAILY",
		DurationMinutes: 60,
	}}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LabelField != "notes" {
		t.Errorf("LabelField = %q", got.LabelField)
	}
	if len(got.Blocked) != 1 || got.Blocked[0].DurationMinutes != 60 {
		t.Errorf("Blocked = %+v", got.Blocked)
	}
}

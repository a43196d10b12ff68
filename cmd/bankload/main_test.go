package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bankload/internal/config"
	"bankload/internal/logger"
	"bankload/internal/scenario"
)

func TestBuildScenarioConfigDefaults(t *testing.T) {
	t.Setenv(config.EnvHost, "")
	t.Setenv(config.EnvLocustHost, "")

	cfg, level, err := buildScenarioConfig(options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != scenario.DefaultPreset {
		t.Errorf("expected default preset, got %s", cfg.Name)
	}
	if cfg.Host != scenario.DefaultHost {
		t.Errorf("expected default host, got %s", cfg.Host)
	}
	if level != logger.LevelInfo {
		t.Errorf("expected info level, got %v", level)
	}
}

func TestBuildScenarioConfigFlags(t *testing.T) {
	t.Setenv(config.EnvHost, "http://env:8080")

	cfg, level, err := buildScenarioConfig(options{
		presetName: "peak",
		users:      12,
		spawnRate:  3,
		duration:   45 * time.Second,
		logLevel:   "debug",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "peak" {
		t.Errorf("expected peak, got %s", cfg.Name)
	}
	if cfg.Users != 12 || cfg.SpawnRate != 3 || cfg.Duration != 45*time.Second {
		t.Errorf("flag overrides not applied: %+v", cfg)
	}
	if cfg.Host != "http://env:8080" {
		t.Errorf("expected host from environment, got %s", cfg.Host)
	}
	if level != logger.LevelDebug {
		t.Errorf("expected debug level, got %v", level)
	}
}

func TestBuildScenarioConfigFile(t *testing.T) {
	t.Setenv(config.EnvHost, "http://env:8080")

	path := filepath.Join(t.TempDir(), "scenario.yaml")
	content := `
log_level: warn
scenario:
  preset: soak
  host: http://file:8080
  users: 3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, level, err := buildScenarioConfig(options{configFile: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "soak" || cfg.Users != 3 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Host != "http://file:8080" {
		t.Errorf("expected file host to beat environment, got %s", cfg.Host)
	}
	if level != logger.LevelWarn {
		t.Errorf("expected warn level, got %v", level)
	}

	cfg, _, err = buildScenarioConfig(options{configFile: path, host: "http://flag:8080"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Host != "http://flag:8080" {
		t.Errorf("expected flag host to win, got %s", cfg.Host)
	}
}

func TestBuildScenarioConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		opts options
	}{
		{"unknown preset", options{presetName: "huge"}},
		{"missing file", options{configFile: "/nonexistent/scenario.yaml"}},
		{"bad log level", options{logLevel: "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := buildScenarioConfig(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bankload/internal/fixtures"
	"bankload/internal/logger"
	"bankload/internal/scenario"
	"bankload/internal/user"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

func TestLoadFileYAML(t *testing.T) {
	content := `
log_level: debug
scenario:
  preset: baseline
  name: nightly
  host: http://bank.internal:8080
  users: 25
  spawn_rate: 2.5
  duration: 2m
  timeout: 5s
  wait:
    min: 500ms
    max: 1500ms
  weights:
    browse: 5
    active: 4
    history: 1
fixtures:
  credentials:
    - email: load1@example.com
      password: secret
  fallback_accounts:
    - "2000001"
    - "2000002"
`
	cfg, err := LoadFile(writeTemp(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Scenario.Name != "nightly" {
		t.Errorf("expected name 'nightly', got '%s'", cfg.Scenario.Name)
	}
	if cfg.Scenario.Users != 25 {
		t.Errorf("expected users 25, got %d", cfg.Scenario.Users)
	}
	if cfg.Scenario.SpawnRate != 2.5 {
		t.Errorf("expected spawn_rate 2.5, got %v", cfg.Scenario.SpawnRate)
	}
	if cfg.Scenario.Weights["active"] != 4 {
		t.Errorf("expected active weight 4, got %d", cfg.Scenario.Weights["active"])
	}
	if len(cfg.Fixtures.Credentials) != 1 || cfg.Fixtures.Credentials[0].Password != "secret" {
		t.Errorf("unexpected credentials: %+v", cfg.Fixtures.Credentials)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log_level debug, got %s", cfg.LogLevel)
	}
}

func TestLoadFileJSON(t *testing.T) {
	content := `{
  "scenario": {
    "name": "json-test",
    "duration": "5s",
    "users": 3
  },
  "fixtures": {
    "fallback_accounts": ["42"]
  }
}`
	cfg, err := LoadFile(writeTemp(t, "config.json", content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Scenario.Name != "json-test" {
		t.Errorf("expected name 'json-test', got '%s'", cfg.Scenario.Name)
	}
	if cfg.Scenario.Users != 3 {
		t.Errorf("expected users 3, got %d", cfg.Scenario.Users)
	}
	if len(cfg.Fixtures.FallbackAccounts) != 1 {
		t.Errorf("expected one fallback account, got %v", cfg.Fixtures.FallbackAccounts)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	_, err := LoadFile(writeTemp(t, "config.txt", "test"))
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	_, err := LoadFile(writeTemp(t, "config.yaml", "scenario: [unclosed"))
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestToScenarioConfig(t *testing.T) {
	cfg := &FileConfig{
		Scenario: ScenarioConfig{
			Preset:      "peak",
			Name:        "test",
			Description: "Test",
			Host:        "http://bank.local",
			Users:       7,
			SpawnRate:   3,
			Duration:    "10s",
			Timeout:     "2s",
			Seed:        99,
			Wait:        WaitConfig{Min: "100ms", Max: "200ms"},
			Weights:     map[string]int{"browse": 1, "history": 1},
		},
		Fixtures: FixturesConfig{
			Credentials:      []fixtures.Credential{{Email: "a@example.com", Password: "pw"}},
			FallbackAccounts: []string{"7"},
		},
	}

	config, err := cfg.ToScenarioConfig()
	if err != nil {
		t.Fatalf("failed to convert: %v", err)
	}

	if config.Name != "test" {
		t.Errorf("expected name 'test', got '%s'", config.Name)
	}
	if config.Host != "http://bank.local" {
		t.Errorf("expected host override, got %s", config.Host)
	}
	if config.Users != 7 || config.SpawnRate != 3 {
		t.Errorf("expected users 7 rate 3, got %d %v", config.Users, config.SpawnRate)
	}
	if config.Duration != 10*time.Second {
		t.Errorf("expected duration 10s, got %v", config.Duration)
	}
	if config.Timeout != 2*time.Second {
		t.Errorf("expected timeout 2s, got %v", config.Timeout)
	}
	if config.WaitMin != 100*time.Millisecond || config.WaitMax != 200*time.Millisecond {
		t.Errorf("unexpected wait %v..%v", config.WaitMin, config.WaitMax)
	}
	if config.Weights[user.KindActive] != 0 || config.Weights[user.KindBrowse] != 1 {
		t.Errorf("unexpected weights %v", config.Weights)
	}
	if config.Seed != 99 {
		t.Errorf("expected seed 99, got %d", config.Seed)
	}
	if len(config.Credentials) != 1 || config.FallbackAccounts[0] != "7" {
		t.Errorf("expected fixtures override, got %+v %v", config.Credentials, config.FallbackAccounts)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("converted config should be valid: %v", err)
	}
}

func TestToScenarioConfigUsesPresetDefaults(t *testing.T) {
	cfg := &FileConfig{Scenario: ScenarioConfig{Preset: "soak"}}

	config, err := cfg.ToScenarioConfig()
	if err != nil {
		t.Fatalf("failed to convert: %v", err)
	}

	want := scenario.SoakScenario()
	if config.Name != want.Name || config.Users != want.Users || config.Duration != want.Duration {
		t.Errorf("expected soak preset values, got %+v", config)
	}
}

func TestToScenarioConfigEmptyUsesDefault(t *testing.T) {
	config, err := (&FileConfig{}).ToScenarioConfig()
	if err != nil {
		t.Fatalf("failed to convert: %v", err)
	}
	if config.Name != scenario.DefaultPreset {
		t.Errorf("expected default preset, got %s", config.Name)
	}
}

func TestToScenarioConfigInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  ScenarioConfig
	}{
		{"duration", ScenarioConfig{Duration: "invalid"}},
		{"timeout", ScenarioConfig{Timeout: "soon"}},
		{"wait", ScenarioConfig{Wait: WaitConfig{Min: "x"}}},
		{"weights", ScenarioConfig{Weights: map[string]int{"idle": 1}}},
		{"preset", ScenarioConfig{Preset: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &FileConfig{Scenario: tt.cfg}
			if _, err := cfg.ToScenarioConfig(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     FileConfig
		wantErr bool
	}{
		{"empty", FileConfig{}, false},
		{"valid", FileConfig{LogLevel: "warn", Scenario: ScenarioConfig{Users: 5, SpawnRate: 1, Weights: map[string]int{"browse": 1}}}, false},
		{"negative users", FileConfig{Scenario: ScenarioConfig{Users: -1}}, true},
		{"negative spawn rate", FileConfig{Scenario: ScenarioConfig{SpawnRate: -1}}, true},
		{"unknown preset", FileConfig{Scenario: ScenarioConfig{Preset: "huge"}}, true},
		{"unknown weight", FileConfig{Scenario: ScenarioConfig{Weights: map[string]int{"idle": 1}}}, true},
		{"negative weight", FileConfig{Scenario: ScenarioConfig{Weights: map[string]int{"browse": -1}}}, true},
		{"zero weights", FileConfig{Scenario: ScenarioConfig{Weights: map[string]int{"browse": 0}}}, true},
		{"blank email", FileConfig{Fixtures: FixturesConfig{Credentials: []fixtures.Credential{{Password: "x"}}}}, true},
		{"bad log level", FileConfig{LogLevel: "loud"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLevel(t *testing.T) {
	cfg := &FileConfig{LogLevel: "DEBUG"}
	level, err := cfg.Level()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level != logger.LevelDebug {
		t.Errorf("expected debug, got %v", level)
	}
}

func TestResolveHost(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		file     string
		bankload string
		locust   string
		want     string
	}{
		{"flag wins", "http://flag", "http://file", "http://env", "http://locust", "http://flag"},
		{"file next", "", "http://file", "http://env", "http://locust", "http://file"},
		{"bankload env", "", "", "http://env", "http://locust", "http://env"},
		{"locust env", "", "", "", "http://locust", "http://locust"},
		{"default", "", "", "", "", scenario.DefaultHost},
		{"blank ignored", "  ", "", "", "", scenario.DefaultHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvHost, tt.bankload)
			t.Setenv(EnvLocustHost, tt.locust)
			if got := ResolveHost(tt.flag, tt.file); got != tt.want {
				t.Errorf("ResolveHost() = %s, want %s", got, tt.want)
			}
		})
	}
}

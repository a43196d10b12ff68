package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bankload/internal/fixtures"
	"bankload/internal/logger"
	"bankload/internal/scenario"
	"bankload/internal/user"

	"gopkg.in/yaml.v3"
)

// 対象ホストを指定する環境変数（優先順）
const (
	EnvHost       = "BANKLOAD_HOST"
	EnvLocustHost = "LOCUST_HOST"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	LogLevel string         `yaml:"log_level" json:"log_level"`
	Scenario ScenarioConfig `yaml:"scenario" json:"scenario"`
	Fixtures FixturesConfig `yaml:"fixtures" json:"fixtures"`
}

// ScenarioConfig はシナリオ設定
type ScenarioConfig struct {
	Preset      string         `yaml:"preset" json:"preset"`
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description"`
	Host        string         `yaml:"host" json:"host"`
	Users       int            `yaml:"users" json:"users"`
	SpawnRate   float64        `yaml:"spawn_rate" json:"spawn_rate"`
	Duration    string         `yaml:"duration" json:"duration"`
	Timeout     string         `yaml:"timeout" json:"timeout"`
	Seed        int64          `yaml:"seed" json:"seed"`
	Wait        WaitConfig     `yaml:"wait" json:"wait"`
	Weights     map[string]int `yaml:"weights" json:"weights"`
}

// WaitConfig は思考時間の設定
type WaitConfig struct {
	Min string `yaml:"min" json:"min"`
	Max string `yaml:"max" json:"max"`
}

// FixturesConfig はテストデータの設定
type FixturesConfig struct {
	Credentials      []fixtures.Credential `yaml:"credentials" json:"credentials"`
	FallbackAccounts []string              `yaml:"fallback_accounts" json:"fallback_accounts"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// ToScenarioConfig はFileConfigをscenario.Configに変換する
// presetを起点に、ファイルで指定された値だけを上書きする
func (f *FileConfig) ToScenarioConfig() (scenario.Config, error) {
	sc := f.Scenario

	config := scenario.DefaultConfig()
	if sc.Preset != "" {
		preset, ok := scenario.GetPreset(sc.Preset)
		if !ok {
			return config, fmt.Errorf("unknown preset: %s", sc.Preset)
		}
		config = preset
	}

	if sc.Name != "" {
		config.Name = sc.Name
	}
	if sc.Description != "" {
		config.Description = sc.Description
	}
	if sc.Host != "" {
		config.Host = sc.Host
	}
	if sc.Users > 0 {
		config.Users = sc.Users
	}
	if sc.SpawnRate > 0 {
		config.SpawnRate = sc.SpawnRate
	}
	if sc.Seed != 0 {
		config.Seed = sc.Seed
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"duration", sc.Duration, &config.Duration},
		{"timeout", sc.Timeout, &config.Timeout},
		{"wait.min", sc.Wait.Min, &config.WaitMin},
		{"wait.max", sc.Wait.Max, &config.WaitMax},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return config, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}

	if len(sc.Weights) > 0 {
		weights, err := parseWeights(sc.Weights)
		if err != nil {
			return config, err
		}
		config.Weights = weights
	}

	if len(f.Fixtures.Credentials) > 0 {
		config.Credentials = f.Fixtures.Credentials
	}
	if len(f.Fixtures.FallbackAccounts) > 0 {
		config.FallbackAccounts = f.Fixtures.FallbackAccounts
	}

	return config, nil
}

// parseWeights は文字列キーの重みをパースする
// 指定されなかったシナリオは重み0になる
func parseWeights(raw map[string]int) (user.Weights, error) {
	weights := make(user.Weights, len(raw))
	for name, w := range raw {
		kind, err := user.ParseKind(name)
		if err != nil {
			return nil, err
		}
		weights[kind] = w
	}
	return weights, nil
}

// Level はログレベルを返す（未指定ならInfo）
func (f *FileConfig) Level() (logger.Level, error) {
	return logger.ParseLevel(f.LogLevel)
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	sc := f.Scenario

	if sc.Users < 0 {
		return fmt.Errorf("scenario.users must be non-negative")
	}

	if sc.SpawnRate < 0 {
		return fmt.Errorf("scenario.spawn_rate must be non-negative")
	}

	if sc.Preset != "" {
		if _, ok := scenario.GetPreset(sc.Preset); !ok {
			return fmt.Errorf("unknown preset: %s", sc.Preset)
		}
	}

	total := 0
	for name, w := range sc.Weights {
		if _, err := user.ParseKind(name); err != nil {
			return fmt.Errorf("scenario.weights: %w", err)
		}
		if w < 0 {
			return fmt.Errorf("scenario.weights.%s must be non-negative", name)
		}
		total += w
	}
	if len(sc.Weights) > 0 && total == 0 {
		return fmt.Errorf("scenario.weights must not all be zero")
	}

	for i, c := range f.Fixtures.Credentials {
		if c.Email == "" {
			return fmt.Errorf("fixtures.credentials[%d].email must not be empty", i)
		}
	}

	if _, err := f.Level(); err != nil {
		return err
	}

	return nil
}

// ResolveHost は対象ホストを決める
// フラグ、設定ファイル、BANKLOAD_HOST、LOCUST_HOST の順に最初の非空値を使う
func ResolveHost(flagHost, fileHost string) string {
	for _, h := range []string{flagHost, fileHost, os.Getenv(EnvHost), os.Getenv(EnvLocustHost)} {
		if h = strings.TrimSpace(h); h != "" {
			return h
		}
	}
	return scenario.DefaultHost
}

package scenario

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"bankload/internal/fixtures"
	"bankload/internal/user"
)

// DefaultHost は対象ホストが未指定のときの接続先
const DefaultHost = "http://gateway-service:8080"

// MaxSpawnRate は1秒あたりに起動できるユーザー数の上限
const MaxSpawnRate = 1000

// ErrInvalidConfig は設定の検証エラー
var ErrInvalidConfig = errors.New("invalid scenario config")

// Config はシナリオの設定
type Config struct {
	Name        string        // シナリオ名
	Description string        // 説明
	Host        string        // 対象ホスト
	Users       int           // 同時ユーザー数
	SpawnRate   float64       // 1秒あたりの起動ユーザー数
	Duration    time.Duration // 実行時間

	// 仮想ユーザー設定
	WaitMin time.Duration // 思考時間の下限
	WaitMax time.Duration // 思考時間の上限
	Weights user.Weights  // シナリオ配分
	Timeout time.Duration // 1リクエストのタイムアウト

	// テストデータ（空ならデフォルト）
	Credentials      []fixtures.Credential
	FallbackAccounts []string

	Seed int64 // 乱数シード（0なら時刻から）
}

// baseConfig はプリセット共通の値
func baseConfig() Config {
	wait := user.DefaultWaitTime()
	return Config{
		Host:    DefaultHost,
		WaitMin: wait.Min,
		WaitMax: wait.Max,
		Weights: user.DefaultWeights(),
		Timeout: 30 * time.Second,
	}
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return SmokeScenario()
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.Users <= 0 {
		return fmt.Errorf("%w: users must be positive", ErrInvalidConfig)
	}
	// NaN も弾く
	if !(c.SpawnRate > 0 && c.SpawnRate <= MaxSpawnRate) {
		return fmt.Errorf("%w: spawn rate must be in (0, %d], got %v", ErrInvalidConfig, MaxSpawnRate, c.SpawnRate)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	}
	if c.WaitMin < 0 || c.WaitMax < c.WaitMin {
		return fmt.Errorf("%w: wait time range %v..%v", ErrInvalidConfig, c.WaitMin, c.WaitMax)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be non-negative", ErrInvalidConfig)
	}

	u, err := url.Parse(c.Host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: host %q must be an http(s) URL", ErrInvalidConfig, c.Host)
	}

	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Fixtures().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Fixtures は設定からテストデータのプールを作る
func (c Config) Fixtures() *fixtures.Pool {
	creds := c.Credentials
	if len(creds) == 0 {
		creds = fixtures.DefaultCredentials
	}
	accounts := c.FallbackAccounts
	if len(accounts) == 0 {
		accounts = fixtures.DefaultFallbackAccounts
	}
	return fixtures.New(creds, accounts)
}

// WaitTime は思考時間の範囲を返す
func (c Config) WaitTime() user.WaitTime {
	return user.WaitTime{Min: c.WaitMin, Max: c.WaitMax}
}

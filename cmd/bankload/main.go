// Package main is the entry point for bankload.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bankload/internal/api"
	"bankload/internal/chaos"
	"bankload/internal/config"
	"bankload/internal/events"
	"bankload/internal/logger"
	"bankload/internal/mockbank"
	"bankload/internal/scenario"

	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
)

// options はコマンドラインで指定された値
type options struct {
	configFile string
	presetName string
	host       string
	users      int
	spawnRate  float64
	duration   time.Duration
	logLevel   string
}

func main() {
	// フラグ定義
	var (
		configFile  = flag.String("config", "", "設定ファイルパス (YAML/JSON)")
		presetName  = flag.String("preset", "", "プリセットシナリオ名 (smoke, baseline, peak, soak, quick)")
		host        = flag.String("host", "", "対象ホスト (例: http://gateway-service:8080)")
		users       = flag.Int("users", 0, "同時ユーザー数")
		spawnRate   = flag.Float64("spawn-rate", 0, "1秒あたりの起動ユーザー数")
		duration    = flag.Duration("duration", 0, "シナリオ実行時間 (例: 30s, 5m)")
		logLevel    = flag.String("log-level", "", "ログレベル (debug, info, warn, error)")
		listPresets = flag.Bool("list-presets", false, "利用可能なプリセットを表示")
		showVersion = flag.Bool("version", false, "バージョンを表示")
		serverMode  = flag.Bool("server", false, "APIサーバーモードで起動")
		serverAddr  = flag.String("addr", ":8089", "サーバーアドレス (例: :8089, 0.0.0.0:3000)")
		metricsAddr = flag.String("metrics-addr", "", "実行中に /metrics を公開するアドレス (例: :9100)")
		useMock     = flag.Bool("mock", false, "ローカルのモック銀行APIに向けて実行")
		enableChaos = flag.Bool("chaos", false, "モック銀行APIに障害を注入 (-mock と併用)")
		chaosEvery  = flag.Duration("chaos-interval", 0, "障害注入の間隔 (例: 5s)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `bankload - Load scenarios for the banking HTTP API

Usage:
  bankload [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Environment:
  %s, %s  対象ホスト（-host と設定ファイルが優先）

Examples:
  # プリセットシナリオを実行
  bankload --preset baseline --host http://localhost:8080

  # 設定ファイルから実行
  bankload --config scenario.yaml

  # フラグでカスタマイズ
  bankload --preset peak --users 100 --spawn-rate 10 --duration 5m

  # モック銀行APIで動作確認
  bankload --preset quick --mock

  # モック銀行APIに障害を注入して失敗の分類を確認
  bankload --preset quick --mock --chaos --chaos-interval 3s

  # APIサーバーモードで起動
  bankload --server --addr :8089
`, config.EnvHost, config.EnvLocustHost)
	}

	flag.Parse()

	// バージョン表示
	if *showVersion {
		fmt.Printf("bankload version %s\n", version)
		return
	}

	// プリセット一覧表示
	if *listPresets {
		printPresets()
		return
	}

	// シナリオ設定の決定
	scenarioConfig, level, err := buildScenarioConfig(options{
		configFile: *configFile,
		presetName: *presetName,
		host:       *host,
		users:      *users,
		spawnRate:  *spawnRate,
		duration:   *duration,
		logLevel:   *logLevel,
	})
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}
	logger.Default.SetLevel(level)

	mock := mockOptions{enabled: *useMock, chaos: *enableChaos, chaosInterval: *chaosEvery}
	if mock.chaos && !mock.enabled {
		logger.Error("", "設定エラー: -chaos は -mock と併用してください")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\n中断シグナルを受信、終了中...")
		cancel()
	}()

	// APIサーバーモード
	if *serverMode {
		if err := runServer(ctx, *serverAddr, scenarioConfig, mock); err != nil {
			logger.Error("", "サーバーエラー: %v", err)
			os.Exit(1)
		}
		return
	}

	// シナリオ実行
	if err := runScenario(ctx, scenarioConfig, *metricsAddr, mock); err != nil {
		logger.Error("", "シナリオ実行エラー: %v", err)
		os.Exit(1)
	}
}

// buildScenarioConfig はシナリオ設定とログレベルを構築する
func buildScenarioConfig(opts options) (scenario.Config, logger.Level, error) {
	var cfg scenario.Config
	var fileHost, fileLevel string

	// 1. 設定ファイルから読み込み
	if opts.configFile != "" {
		fileConfig, err := config.LoadFile(opts.configFile)
		if err != nil {
			return cfg, logger.LevelInfo, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		if err := fileConfig.Validate(); err != nil {
			return cfg, logger.LevelInfo, fmt.Errorf("設定検証エラー: %w", err)
		}
		cfg, err = fileConfig.ToScenarioConfig()
		if err != nil {
			return cfg, logger.LevelInfo, fmt.Errorf("設定変換エラー: %w", err)
		}
		fileHost = fileConfig.Scenario.Host
		fileLevel = fileConfig.LogLevel
	} else {
		cfg = scenario.DefaultConfig()
	}

	// 2. プリセット指定があれば人数・時間を差し替える
	if opts.presetName != "" {
		preset, ok := scenario.GetPreset(opts.presetName)
		if !ok {
			return cfg, logger.LevelInfo, fmt.Errorf("不明なプリセット: %s (利用可能: %v)", opts.presetName, scenario.ListPresets())
		}
		cfg.Name = preset.Name
		cfg.Description = preset.Description
		cfg.Users = preset.Users
		cfg.SpawnRate = preset.SpawnRate
		cfg.Duration = preset.Duration
	}

	// フラグでオーバーライド
	cfg.Host = config.ResolveHost(opts.host, fileHost)
	if opts.users > 0 {
		cfg.Users = opts.users
	}
	if opts.spawnRate > 0 {
		cfg.SpawnRate = opts.spawnRate
	}
	if opts.duration > 0 {
		cfg.Duration = opts.duration
	}

	levelName := fileLevel
	if opts.logLevel != "" {
		levelName = opts.logLevel
	}
	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return cfg, logger.LevelInfo, err
	}

	return cfg, level, nil
}

// mockOptions はモック銀行APIの起動設定
type mockOptions struct {
	enabled       bool
	chaos         bool
	chaosInterval time.Duration
}

// startMockBank はローカルにモック銀行APIを起動してURLを返す
// chaos が有効なら障害注入を挟み、ctx終了まで注入を続ける
func startMockBank(ctx context.Context, g *errgroup.Group, cfg scenario.Config, opts mockOptions, bus *events.Bus) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen mock bank: %w", err)
	}

	bankConfig := mockbank.DefaultConfig()
	bankConfig.Credentials = cfg.Fixtures().Credentials()
	bank := mockbank.New(bankConfig)

	var handler http.Handler = bank.Handler()
	if opts.chaos {
		injector := chaos.NewInjector(handler, nil)
		chaosConfig := chaos.DefaultConfig()
		if opts.chaosInterval > 0 {
			chaosConfig.Interval = opts.chaosInterval
		}
		monkey := chaos.New(injector, chaosConfig)
		monkey.SetEventBus(bus)
		monkey.Start(ctx)
		g.Go(func() error {
			<-ctx.Done()
			monkey.Stop()
			stats := monkey.Stats()
			logger.Info("", "ChaosMonkey summary: %d attacks %v", stats.TotalAttacks, stats.ByType)
			return nil
		})
		handler = injector
	}

	serve(ctx, g, &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}, ln)

	url := "http://" + ln.Addr().String()
	logger.Info("", "Mock bank listening on %s", url)
	return url, nil
}

// serve はctxが終了するまでHTTPサーバーを動かす
func serve(ctx context.Context, g *errgroup.Group, srv *http.Server, ln net.Listener) {
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// runScenario はシナリオを実行する
func runScenario(ctx context.Context, cfg scenario.Config, metricsAddr string, mock mockOptions) error {
	// 補助サーバー（モック、/metrics）はシナリオ終了で止める
	auxCtx, stopAux := context.WithCancel(ctx)
	defer stopAux()
	g, gctx := errgroup.WithContext(auxCtx)

	if mock.enabled {
		url, err := startMockBank(gctx, g, cfg, mock, nil)
		if err != nil {
			return err
		}
		cfg.Host = url
	}

	fmt.Println("bankload - Load scenarios for the banking HTTP API")
	fmt.Println("====================================================")
	fmt.Printf("Scenario: %s\n", cfg.Name)
	fmt.Printf("Host: %s\n", cfg.Host)
	fmt.Printf("Users: %d, Spawn rate: %.2f/s\n", cfg.Users, cfg.SpawnRate)
	fmt.Printf("Duration: %v\n", cfg.Duration)
	fmt.Println("====================================================")
	fmt.Println()

	engine := scenario.New(cfg)

	if metricsAddr != "" {
		ln, err := net.Listen("tcp", metricsAddr)
		if err != nil {
			return fmt.Errorf("listen metrics: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", engine.Collectors().Handler())
		serve(gctx, g, &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}, ln)
		logger.Info("", "Metrics available on http://%s/metrics", ln.Addr())
	}

	// シナリオ実行
	result, runErr := engine.Run(ctx)

	stopAux()
	if err := g.Wait(); err != nil {
		logger.Warn("", "補助サーバーの停止エラー: %v", err)
	}

	if result != nil {
		// レポート出力
		fmt.Println(result.Report())
	}
	return runErr
}

// printPresets は利用可能なプリセットを表示する
func printPresets() {
	fmt.Println("利用可能なプリセットシナリオ:")
	fmt.Println()

	for _, name := range scenario.ListPresets() {
		p, _ := scenario.GetPreset(name)
		desc := p.Description
		if name == scenario.DefaultPreset {
			desc += "（デフォルト）"
		}
		fmt.Printf("  %-10s %3d users  %5.1f/s  %-6v %s\n", p.Name, p.Users, p.SpawnRate, p.Duration, desc)
	}

	fmt.Println()
	fmt.Println("使用例: bankload --preset baseline --host http://localhost:8080")
}

// runServer はAPIサーバーを起動する
func runServer(ctx context.Context, addr string, base scenario.Config, mock mockOptions) error {
	fmt.Println("bankload - API Server")
	fmt.Println("=====================")
	fmt.Printf("Starting server on http://%s\n", addr)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	g, gctx := errgroup.WithContext(ctx)
	server := api.NewServer(addr, base)

	if mock.enabled {
		url, err := startMockBank(gctx, g, base, mock, server.EventBus())
		if err != nil {
			return err
		}
		server.SetBaseHost(url)
	}

	g.Go(func() error {
		return server.Start(gctx)
	})
	return g.Wait()
}

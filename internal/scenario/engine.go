package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bankload/internal/bankapi"
	"bankload/internal/events"
	"bankload/internal/logger"
	"bankload/internal/metrics"
	"bankload/internal/user"
	"bankload/internal/worker"

	"golang.org/x/sync/errgroup"
)

// ErrAlreadyRunning は実行中のエンジンで Run を呼んだ場合のエラー
var ErrAlreadyRunning = errors.New("scenario is already running")

// DefaultProgressInterval は進捗ログの出力間隔
const DefaultProgressInterval = 10 * time.Second

// Engine はシナリオ実行エンジン
type Engine struct {
	config           Config
	eventBus         *events.Bus
	collectors       *metrics.Collectors
	progressInterval time.Duration

	mu        sync.RWMutex
	running   bool
	stats     *metrics.Stats
	users     []*user.User
	startTime time.Time
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config:           config,
		collectors:       metrics.NewCollectors(),
		progressInterval: DefaultProgressInterval,
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// SetCollectors はPrometheusコレクタを差し替える（複数エンジンで共有する場合）
func (e *Engine) SetCollectors(c *metrics.Collectors) {
	if c != nil {
		e.collectors = c
	}
}

// SetProgressInterval は進捗ログの間隔を設定する。0以下で無効
func (e *Engine) SetProgressInterval(d time.Duration) {
	e.progressInterval = d
}

// Config は設定を返す
func (e *Engine) Config() Config {
	return e.config
}

// Run はシナリオを実行する
// 親コンテキストがキャンセルされた場合も、それまでの結果を返す
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, err
	}
	mix, err := user.NewMix(e.config.Weights)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	e.running = true
	e.stats = metrics.NewStats(e.collectors)
	e.users = nil
	e.startTime = time.Now()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	logger.Info("", "=== Scenario '%s' started ===", e.config.Name)
	logger.Info("", "Target host: %s, users: %d, spawn rate: %.2f/s, duration: %v",
		e.config.Host, e.config.Users, e.config.SpawnRate, e.config.Duration)
	e.publish(events.NewScenarioStartedEvent(e.config.Name, e.config.Users))

	result := &Result{
		ScenarioName: e.config.Name,
		Host:         e.config.Host,
		StartTime:    e.startTime,
	}

	runCtx, cancel := context.WithTimeout(ctx, e.config.Duration)
	defer cancel()

	pool := worker.NewPoolWithConfig(worker.PoolConfig{
		NumWorkers:  e.config.Users,
		QueueFactor: 1,
	})
	pool.Start(runCtx)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return e.spawn(gctx, pool, mix)
	})
	g.Go(func() error {
		e.reportProgress(gctx)
		return nil
	})
	spawnErr := g.Wait()
	if spawnErr != nil {
		cancel()
	}

	<-runCtx.Done()
	logger.Info("", "Scenario duration completed, stopping %d users...", len(e.Users()))
	pool.Stop()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Interrupted = ctx.Err() != nil
	e.collectResults(result)

	e.publish(events.NewScenarioCompleteEvent(e.config.Name, spawnErr))
	logger.Info("", "=== Scenario '%s' completed ===", e.config.Name)

	if spawnErr != nil {
		return result, fmt.Errorf("spawn users: %w", spawnErr)
	}
	return result, nil
}

// spawn はspawn rateに従ってユーザーを起動する
// 最初のユーザーは即座に起動する
func (e *Engine) spawn(ctx context.Context, pool *worker.Pool, mix *user.Mix) error {
	deps := user.Deps{
		Client: bankapi.New(bankapi.Config{
			BaseURL: e.config.Host,
			Timeout: e.config.Timeout,
		}),
		Pool:     e.config.Fixtures(),
		Recorder: &recorder{stats: e.Stats(), bus: e.eventBus},
	}

	seed := e.config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ticker := time.NewTicker(spawnInterval(e.config.SpawnRate))
	defer ticker.Stop()

	for i := 0; i < e.config.Users; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				logger.Info("", "Spawning interrupted after %d users", i)
				return nil
			case <-ticker.C:
			}
		}

		u := user.New(mix.Next(), user.NewSession(deps, seed+int64(i)), e.config.WaitTime())
		u.SetCollectors(e.collectors)

		if !pool.Submit(e.userJob(u)) {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("worker pool rejected user %d", i+1)
		}

		e.mu.Lock()
		e.users = append(e.users, u)
		e.mu.Unlock()
	}

	logger.Info("", "All %d users spawned", e.config.Users)
	e.publish(events.NewSpawnCompleteEvent(e.config.Users))
	return nil
}

// spawnInterval はユーザー起動の間隔を返す（最小1ns）
func spawnInterval(rate float64) time.Duration {
	interval := time.Duration(float64(time.Second) / rate)
	if interval < time.Nanosecond {
		interval = time.Nanosecond
	}
	return interval
}

// userJob はユーザー1人分のジョブを作る
func (e *Engine) userJob(u *user.User) worker.Job {
	return func(ctx context.Context) {
		id := u.Session().ID()
		e.publish(events.NewUserSpawnedEvent(id, u.Kind().String()))

		err := u.Run(ctx)
		if err != nil {
			logger.Error(id[:8], "User stopped: %v", err)
		}
		e.publish(events.NewUserStoppedEvent(id, u.Kind().String(), err))
	}
}

// reportProgress は定期的に進捗をログ出力する
func (e *Engine) reportProgress(ctx context.Context) {
	if e.progressInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := e.Stats()
			snap := stats.Total().Snapshot()
			logger.Info("", "Users: %d, Requests: %d, Failures: %d, RPS: %.2f, Avg: %v, P95: %v",
				e.RunningUsers(), snap.TotalRequests, snap.FailedRequests,
				snap.RPS, snap.AverageLatency.Round(time.Millisecond),
				snap.P95Latency.Round(time.Millisecond))
			// 次のウィンドウのRPSを測り直す
			stats.ResetWindow()
		}
	}
}

// collectResults は結果を収集する
func (e *Engine) collectResults(result *Result) {
	stats := e.Stats()
	snap := stats.Total().Snapshot()

	result.TotalRequests = snap.TotalRequests
	result.SuccessRequests = snap.SuccessRequests
	result.FailedRequests = snap.FailedRequests
	result.ErrorRate = snap.ErrorRate
	result.AvgLatency = snap.AverageLatency
	result.P99Latency = snap.P99Latency
	if secs := result.Duration.Seconds(); secs > 0 {
		result.RPS = float64(snap.TotalRequests) / secs
	}

	result.UsersByKind = make(map[string]int)
	for _, u := range e.Users() {
		result.UsersByKind[u.Kind().String()]++
		result.Users++
	}

	result.Entries = stats.Entries()
	result.Failures = stats.Failures()
	result.table = stats.Table()
	result.failuresTable = stats.FailuresTable()
}

func (e *Engine) publish(event events.Event) {
	if e.eventBus != nil {
		e.eventBus.Publish(event)
	}
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Stats は直近の実行の統計を返す（未実行ならnil）
func (e *Engine) Stats() *metrics.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// Collectors はPrometheusコレクタを返す
func (e *Engine) Collectors() *metrics.Collectors {
	return e.collectors
}

// Users は起動済みユーザーを返す
func (e *Engine) Users() []*user.User {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*user.User, len(e.users))
	copy(out, e.users)
	return out
}

// RunningUsers は実行中のユーザー数を返す
func (e *Engine) RunningUsers() int {
	n := 0
	for _, u := range e.Users() {
		if u.IsRunning() {
			n++
		}
	}
	return n
}

// StartTime は直近の実行の開始時刻を返す
func (e *Engine) StartTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.startTime
}

// recorder は統計に記録し、失敗をイベントとして通知する
type recorder struct {
	stats *metrics.Stats
	bus   *events.Bus
}

func (r *recorder) Record(sample metrics.Sample) {
	r.stats.Record(sample)
	if !sample.OK && r.bus != nil {
		r.bus.Publish(events.NewRequestFailedEvent(sample.Method, sample.Name, sample.Message))
	}
}

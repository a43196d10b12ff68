package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"bankload/internal/logger"
)

// Job はワーカーが実行するジョブを表す
// ctx はプール停止時にキャンセルされる
type Job func(ctx context.Context)

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	NumWorkers  int // ワーカー数（0でCPU数）
	QueueFactor int // キューサイズ = NumWorkers * QueueFactor
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers:  0,   // CPU数
		QueueFactor: 100, // デフォルト倍率
	}
}

// Pool はゴルーチンのプールを管理する
type Pool struct {
	numWorkers int
	jobs       chan Job
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	stopping   atomic.Bool
	mu         sync.Mutex

	active    atomic.Int64
	completed atomic.Uint64
	panics    atomic.Uint64
}

// NewPool は新しいワーカープールを作成する
// numWorkers が 0 の場合は CPU 数を使用
func NewPool(numWorkers int) *Pool {
	config := DefaultPoolConfig()
	config.NumWorkers = numWorkers
	return NewPoolWithConfig(config)
}

// NewPoolWithConfig は設定を指定してワーカープールを作成する
func NewPoolWithConfig(config PoolConfig) *Pool {
	numWorkers := config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	queueFactor := config.QueueFactor
	if queueFactor <= 0 {
		queueFactor = 100
	}
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan Job, numWorkers*queueFactor),
	}
}

// Start はワーカープールを起動する
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	for i := range p.numWorkers {
		p.wg.Add(1)
		go p.worker(i)
	}

	logger.Debug("", "WorkerPool started with %d workers", p.numWorkers)
}

// worker は個々のワーカーゴルーチン
func (p *Pool) worker(_ int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.run(job)
		}
	}
}

// run はジョブを実行する。ジョブのpanicでワーカーを落とさない
func (p *Pool) run(job Job) {
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.completed.Add(1)
		if r := recover(); r != nil {
			p.panics.Add(1)
			logger.Error("", "Job panicked: %v", r)
		}
	}()
	job(p.ctx)
}

// Submit はジョブをプールに送信する
func (p *Pool) Submit(job Job) (submitted bool) {
	if p.stopping.Load() {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("", "Submit failed due to panic (pool not started or closed): %v", r)
			submitted = false
		}
	}()

	// 先にコンテキストをチェック
	select {
	case <-p.ctx.Done():
		return false
	default:
	}

	select {
	case <-p.ctx.Done():
		return false
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop はワーカープールを停止し、実行中のジョブの終了を待つ
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.stopping.Store(true)
	p.cancel()
	p.wg.Wait()

	p.mu.Lock()
	p.started = false
	p.stopping.Store(false)
	p.mu.Unlock()

	logger.Debug("", "WorkerPool stopped (%d jobs completed)", p.completed.Load())
}

// NumWorkers はワーカー数を返す
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// QueueSize は現在のキューサイズを返す
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// Active は実行中のジョブ数を返す
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Completed は終了したジョブ数を返す
func (p *Pool) Completed() uint64 {
	return p.completed.Load()
}

// Panics はpanicしたジョブ数を返す
func (p *Pool) Panics() uint64 {
	return p.panics.Load()
}

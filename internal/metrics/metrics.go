package metrics

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxLatencySamples = 1000

// Metrics は1つのリクエスト種別のメトリクスを収集する
type Metrics struct {
	totalRequests   atomic.Uint64
	successRequests atomic.Uint64
	failedRequests  atomic.Uint64
	totalLatencyNs  atomic.Uint64
	totalBytes      atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	lastResetTime     time.Time
	windowRequests    uint64
	minLatency        time.Duration
	maxLatency        time.Duration
	latencies         []time.Duration
	maxLatencySamples int
	sampled           uint64 // リザーバに提示したサンプル数
	rng               *rand.Rand
}

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int // パーセンタイル計算用に保持するサンプル数
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(Config{MaxLatencySamples: defaultMaxLatencySamples})
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	samples := config.MaxLatencySamples
	if samples <= 0 {
		samples = defaultMaxLatencySamples
	}
	now := time.Now()
	return &Metrics{
		startTime:         now,
		lastResetTime:     now,
		latencies:         make([]time.Duration, 0, samples),
		maxLatencySamples: samples,
		rng:               rand.New(rand.NewSource(now.UnixNano())),
	}
}

// RecordSuccess は成功したリクエストを記録する
func (m *Metrics) RecordSuccess(latency time.Duration, size int) {
	m.successRequests.Add(1)
	m.record(latency, size)
}

// RecordFailure は失敗したリクエストを記録する
func (m *Metrics) RecordFailure(latency time.Duration, size int) {
	m.failedRequests.Add(1)
	m.record(latency, size)
}

func (m *Metrics) record(latency time.Duration, size int) {
	m.totalRequests.Add(1)
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	if size > 0 {
		m.totalBytes.Add(uint64(size))
	}

	m.mu.Lock()
	m.windowRequests++
	if m.minLatency == 0 || latency < m.minLatency {
		m.minLatency = latency
	}
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	// 失敗も含めてリザーバサンプリングする
	m.sampled++
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	} else if j := m.rng.Int63n(int64(m.sampled)); j < int64(m.maxLatencySamples) {
		m.latencies[j] = latency
	}
	m.mu.Unlock()
}

// TotalRequests は総リクエスト数を返す
func (m *Metrics) TotalRequests() uint64 {
	return m.totalRequests.Load()
}

// SuccessRequests は成功リクエスト数を返す
func (m *Metrics) SuccessRequests() uint64 {
	return m.successRequests.Load()
}

// FailedRequests は失敗リクエスト数を返す
func (m *Metrics) FailedRequests() uint64 {
	return m.failedRequests.Load()
}

// RPS は現在のウィンドウのRequests Per Secondを返す
func (m *Metrics) RPS() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.lastResetTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.windowRequests) / elapsed
}

// OverallRPS は開始からの平均RPSを返す
func (m *Metrics) OverallRPS() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.totalRequests.Load()) / elapsed
}

// AverageLatency は平均レイテンシを返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.totalRequests.Load()
	if total == 0 {
		return 0
	}
	avgNs := m.totalLatencyNs.Load() / total
	return time.Duration(avgNs)
}

// AverageSize は平均レスポンスサイズ（バイト）を返す
func (m *Metrics) AverageSize() uint64 {
	total := m.totalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.totalBytes.Load() / total
}

// MinLatency は最小レイテンシを返す
func (m *Metrics) MinLatency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.minLatency
}

// MaxLatency は最大レイテンシを返す
func (m *Metrics) MaxLatency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxLatency
}

// Percentile はサンプルベースのパーセンタイル（0〜1）を返す
func (m *Metrics) Percentile(p float64) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// MedianLatency はP50レイテンシを返す
func (m *Metrics) MedianLatency() time.Duration {
	return m.Percentile(0.50)
}

// P95Latency はP95レイテンシを返す
func (m *Metrics) P95Latency() time.Duration {
	return m.Percentile(0.95)
}

// P99Latency はP99レイテンシを返す
func (m *Metrics) P99Latency() time.Duration {
	return m.Percentile(0.99)
}

// ErrorRate はエラー率を返す（0.0〜1.0）
func (m *Metrics) ErrorRate() float64 {
	total := m.totalRequests.Load()
	if total == 0 {
		return 0
	}
	return float64(m.failedRequests.Load()) / float64(total)
}

// Reset はRPSのウィンドウをリセットする
// レイテンシのサンプルは実行全体のパーセンタイル用に保持する
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windowRequests = 0
	m.lastResetTime = time.Now()
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	RPS             float64       `json:"rps"`
	OverallRPS      float64       `json:"overall_rps"`
	AverageLatency  time.Duration `json:"avg_latency"`
	MinLatency      time.Duration `json:"min_latency"`
	MaxLatency      time.Duration `json:"max_latency"`
	MedianLatency   time.Duration `json:"median_latency"`
	P95Latency      time.Duration `json:"p95_latency"`
	P99Latency      time.Duration `json:"p99_latency"`
	AverageSize     uint64        `json:"avg_size"`
	ErrorRate       float64       `json:"error_rate"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests:   m.TotalRequests(),
		SuccessRequests: m.SuccessRequests(),
		FailedRequests:  m.FailedRequests(),
		RPS:             m.RPS(),
		OverallRPS:      m.OverallRPS(),
		AverageLatency:  m.AverageLatency(),
		MinLatency:      m.MinLatency(),
		MaxLatency:      m.MaxLatency(),
		MedianLatency:   m.MedianLatency(),
		P95Latency:      m.P95Latency(),
		P99Latency:      m.P99Latency(),
		AverageSize:     m.AverageSize(),
		ErrorRate:       m.ErrorRate(),
		Elapsed:         time.Since(m.startTime),
	}
}

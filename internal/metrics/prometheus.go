package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors はPrometheus向けのメトリクス群
// テストや複数エンジンで衝突しないよう専用のレジストリを持つ
type Collectors struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	users    *prometheus.GaugeVec
}

// NewCollectors は新しいCollectorsを作成する
func NewCollectors() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bankload",
				Name:      "requests_total",
				Help:      "Total number of banking API requests issued by simulated users.",
			},
			[]string{"method", "name", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bankload",
				Name:      "request_duration_seconds",
				Help:      "Banking API request latency in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"method", "name"},
		),
		users: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bankload",
				Name:      "users",
				Help:      "Number of running simulated users by scenario.",
			},
			[]string{"kind"},
		),
	}
	c.registry.MustRegister(c.requests, c.duration, c.users)
	return c
}

// Observe はサンプルをPrometheusメトリクスに反映する
func (c *Collectors) Observe(sample Sample) {
	result := "success"
	if !sample.OK {
		result = "failure"
	}
	c.requests.WithLabelValues(sample.Method, sample.Name, result).Inc()
	c.duration.WithLabelValues(sample.Method, sample.Name).Observe(sample.Latency.Seconds())
}

// UserStarted はユーザー数ゲージを増やす
func (c *Collectors) UserStarted(kind string) {
	c.users.WithLabelValues(kind).Inc()
}

// UserStopped はユーザー数ゲージを減らす
func (c *Collectors) UserStopped(kind string) {
	c.users.WithLabelValues(kind).Dec()
}

// Registry はレジストリを返す
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler は /metrics 用のHTTPハンドラを返す
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

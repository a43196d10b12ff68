// Package metrics collects request statistics for load test runs.
//
// Metrics holds the counters for a single request type: totals, failures,
// average/min/max latency and sample-based percentiles. Stats groups one
// Metrics per (method, name) pair, keeps an aggregated total and a table of
// failure messages with their occurrence counts. Stats implements Recorder,
// which is what simulated users write into.
//
// # Basic Usage
//
//	stats := metrics.NewStats(metrics.NewCollectors())
//	stats.Record(metrics.Sample{
//	    Method:  "POST",
//	    Name:    "Auth - Login",
//	    Latency: 42 * time.Millisecond,
//	    OK:      true,
//	})
//	fmt.Print(stats.Table())
//
// # Prometheus
//
// Collectors mirrors every recorded sample into a private Prometheus
// registry (bankload_requests_total, bankload_request_duration_seconds,
// bankload_users). Collectors.Handler serves it on /metrics.
//
// # Thread Safety
//
// All types are safe for concurrent use.
package metrics

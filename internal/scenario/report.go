package scenario

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"bankload/internal/metrics"
)

// Result はシナリオ実行結果
type Result struct {
	ScenarioName string        `json:"scenario"`
	Host         string        `json:"host"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`
	Interrupted  bool          `json:"interrupted"`

	// ユーザー
	Users       int            `json:"users"`
	UsersByKind map[string]int `json:"users_by_kind"`

	// メトリクス
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	ErrorRate       float64       `json:"error_rate"`
	RPS             float64       `json:"rps"`
	AvgLatency      time.Duration `json:"avg_latency"`
	P99Latency      time.Duration `json:"p99_latency"`

	Entries  []metrics.Entry   `json:"entries"`
	Failures []metrics.Failure `json:"failures"`

	table         string
	failuresTable string
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	status := "completed"
	if r.Interrupted {
		status = "interrupted"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `
================================================================================
                         SCENARIO REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Host:           %s
  Start Time:     %s
  End Time:       %s
  Duration:       %v
  Status:         %s

USERS
-----
  Spawned:        %d
`,
		r.ScenarioName,
		r.Host,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		status,
		r.Users,
	)

	kinds := make([]string, 0, len(r.UsersByKind))
	for k := range r.UsersByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&b, "  %-15s %d\n", k+":", r.UsersByKind[k])
	}

	fmt.Fprintf(&b, `
TRAFFIC METRICS
---------------
  Total Requests:   %d
  Success:          %d
  Failed:           %d
  Error Rate:       %.2f%%
  RPS:              %.2f
  Avg Latency:      %v
  P99 Latency:      %v

REQUESTS
--------
%s
FAILURES
--------
%s
================================================================================`,
		r.TotalRequests,
		r.SuccessRequests,
		r.FailedRequests,
		r.ErrorRate*100,
		r.RPS,
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
		r.table,
		r.failuresTable,
	)

	return b.String()
}

package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Sample は1リクエスト分の記録
type Sample struct {
	Method  string
	Name    string
	Latency time.Duration
	Size    int
	OK      bool
	Message string // 失敗理由
}

// Recorder はリクエスト結果の記録先
type Recorder interface {
	Record(sample Sample)
}

// Key はリクエスト種別のキー
type Key struct {
	Method string
	Name   string
}

func (k Key) String() string {
	return k.Method + " " + k.Name
}

// Failure は失敗テーブルの1行
type Failure struct {
	Method      string `json:"method"`
	Name        string `json:"name"`
	Message     string `json:"message"`
	Occurrences uint64 `json:"occurrences"`
}

// Entry はリクエスト種別ごとのスナップショット
type Entry struct {
	Method string `json:"method"`
	Name   string `json:"name"`
	Snapshot
}

// Stats はリクエスト種別ごとのメトリクスを集約する
type Stats struct {
	collectors *Collectors

	mu       sync.RWMutex
	entries  map[Key]*Metrics
	total    *Metrics
	failures map[Failure]uint64
}

// NewStats は新しいStatsを作成する。collectors は nil でもよい
func NewStats(collectors *Collectors) *Stats {
	return &Stats{
		collectors: collectors,
		entries:    make(map[Key]*Metrics),
		total:      New(),
		failures:   make(map[Failure]uint64),
	}
}

// Record はサンプルを記録する
func (s *Stats) Record(sample Sample) {
	key := Key{Method: sample.Method, Name: sample.Name}
	m := s.entry(key)

	if sample.OK {
		m.RecordSuccess(sample.Latency, sample.Size)
		s.total.RecordSuccess(sample.Latency, sample.Size)
	} else {
		m.RecordFailure(sample.Latency, sample.Size)
		s.total.RecordFailure(sample.Latency, sample.Size)

		f := Failure{Method: sample.Method, Name: sample.Name, Message: sample.Message}
		s.mu.Lock()
		s.failures[f]++
		s.mu.Unlock()
	}

	if s.collectors != nil {
		s.collectors.Observe(sample)
	}
}

// entry はキーに対応するメトリクスを返す（なければ作成）
func (s *Stats) entry(key Key) *Metrics {
	s.mu.RLock()
	m, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return m
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok = s.entries[key]; ok {
		return m
	}
	m = New()
	s.entries[key] = m
	return m
}

// ResetWindow は全エントリのRPSウィンドウをリセットする
func (s *Stats) ResetWindow() {
	s.mu.RLock()
	for _, m := range s.entries {
		m.Reset()
	}
	s.mu.RUnlock()
	s.total.Reset()
}

// Get は指定キーのメトリクスを返す
func (s *Stats) Get(method, name string) (*Metrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.entries[Key{Method: method, Name: name}]
	return m, ok
}

// Total は全リクエストを集約したメトリクスを返す
func (s *Stats) Total() *Metrics {
	return s.total
}

// Entries は名前順のスナップショット一覧を返す
func (s *Stats) Entries() []Entry {
	s.mu.RLock()
	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].Method < keys[j].Method
	})

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		m, _ := s.Get(k.Method, k.Name)
		out = append(out, Entry{Method: k.Method, Name: k.Name, Snapshot: m.Snapshot()})
	}
	return out
}

// Failures は発生回数の多い順に失敗一覧を返す
func (s *Stats) Failures() []Failure {
	s.mu.RLock()
	out := make([]Failure, 0, len(s.failures))
	for f, n := range s.failures {
		f.Occurrences = n
		out = append(out, f)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// Table はリクエスト種別ごとの統計表を返す
func (s *Stats) Table() string {
	var b strings.Builder

	fmt.Fprintf(&b, "  %-6s %-36s %8s %8s %8s %8s %8s %8s %8s\n",
		"Type", "Name", "# reqs", "# fails", "Avg", "Min", "Max", "Med", "P95")
	b.WriteString("  " + strings.Repeat("-", 108) + "\n")

	for _, e := range s.Entries() {
		writeRow(&b, e.Method, e.Name, e.Snapshot)
	}

	b.WriteString("  " + strings.Repeat("-", 108) + "\n")
	writeRow(&b, "", "Aggregated", s.total.Snapshot())

	return b.String()
}

func writeRow(b *strings.Builder, method, name string, snap Snapshot) {
	fmt.Fprintf(b, "  %-6s %-36s %8d %8d %8s %8s %8s %8s %8s\n",
		method, name,
		snap.TotalRequests, snap.FailedRequests,
		ms(snap.AverageLatency), ms(snap.MinLatency), ms(snap.MaxLatency),
		ms(snap.MedianLatency), ms(snap.P95Latency))
}

// FailuresTable は失敗一覧の表を返す
func (s *Stats) FailuresTable() string {
	failures := s.Failures()
	if len(failures) == 0 {
		return "  (none)\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  %-8s %-44s %s\n", "# occ", "Request", "Message")
	for _, f := range failures {
		fmt.Fprintf(&b, "  %-8d %-44s %s\n", f.Occurrences, f.Method+" "+f.Name, f.Message)
	}
	return b.String()
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}

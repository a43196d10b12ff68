package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestStatsRecordGroupsByKey(t *testing.T) {
	s := NewStats(nil)

	s.Record(Sample{Method: "POST", Name: "Auth - Login", Latency: 10 * time.Millisecond, OK: true})
	s.Record(Sample{Method: "POST", Name: "Auth - Login", Latency: 30 * time.Millisecond, OK: false, Message: "Invalid credentials (401)"})
	s.Record(Sample{Method: "GET", Name: "Account - View Account Details", Latency: 5 * time.Millisecond, OK: true})

	login, ok := s.Get("POST", "Auth - Login")
	if !ok {
		t.Fatal("expected login entry")
	}
	if login.TotalRequests() != 2 || login.FailedRequests() != 1 {
		t.Errorf("expected 2 requests / 1 failure, got %d / %d", login.TotalRequests(), login.FailedRequests())
	}
	if s.Total().TotalRequests() != 3 {
		t.Errorf("expected 3 aggregated requests, got %d", s.Total().TotalRequests())
	}

	entries := s.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// 名前順
	if entries[0].Name != "Account - View Account Details" {
		t.Errorf("expected entries sorted by name, got %s first", entries[0].Name)
	}
}

func TestStatsFailures(t *testing.T) {
	s := NewStats(nil)

	for range 3 {
		s.Record(Sample{Method: "GET", Name: "A", OK: false, Message: "Unauthorized"})
	}
	s.Record(Sample{Method: "GET", Name: "A", OK: false, Message: "Account not found"})
	s.Record(Sample{Method: "GET", Name: "A", OK: true})

	failures := s.Failures()
	if len(failures) != 2 {
		t.Fatalf("expected 2 failure rows, got %d", len(failures))
	}
	if failures[0].Message != "Unauthorized" || failures[0].Occurrences != 3 {
		t.Errorf("unexpected first failure row: %+v", failures[0])
	}
	if failures[1].Occurrences != 1 {
		t.Errorf("expected 1 occurrence, got %d", failures[1].Occurrences)
	}

	table := s.FailuresTable()
	if !strings.Contains(table, "Unauthorized") {
		t.Error("failures table should contain message")
	}
}

func TestStatsTable(t *testing.T) {
	s := NewStats(nil)
	s.Record(Sample{Method: "POST", Name: "Account - Transfer Money", Latency: 12 * time.Millisecond, OK: true})

	table := s.Table()
	if !strings.Contains(table, "Account - Transfer Money") {
		t.Error("table should contain request name")
	}
	if !strings.Contains(table, "Aggregated") {
		t.Error("table should contain aggregated row")
	}
	if !strings.Contains(NewStats(nil).FailuresTable(), "(none)") {
		t.Error("empty failures table should say none")
	}
}

func TestStatsResetWindow(t *testing.T) {
	s := NewStats(nil)
	s.Record(Sample{Method: "GET", Name: "Account - View Account Details", Latency: 5 * time.Millisecond, OK: true})
	s.Record(Sample{Method: "GET", Name: "Account - View Account Details", Latency: 7 * time.Millisecond, OK: true})

	s.ResetWindow()

	m, ok := s.Get("GET", "Account - View Account Details")
	if !ok {
		t.Fatal("expected entry")
	}
	if m.RPS() != 0 || s.Total().RPS() != 0 {
		t.Errorf("expected window RPS 0 after reset, got %f / %f", m.RPS(), s.Total().RPS())
	}
	if s.Total().TotalRequests() != 2 {
		t.Errorf("expected totals kept, got %d", s.Total().TotalRequests())
	}
	if p := s.Total().P99Latency(); p != 7*time.Millisecond {
		t.Errorf("expected P99 kept across reset, got %v", p)
	}
}

func TestStatsConcurrentRecord(t *testing.T) {
	s := NewStats(NewCollectors())
	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				s.Record(Sample{Method: "GET", Name: []string{"a", "b"}[i%2], Latency: time.Millisecond, OK: true})
			}
		}()
	}
	wg.Wait()

	if s.Total().TotalRequests() != 1000 {
		t.Errorf("expected 1000 requests, got %d", s.Total().TotalRequests())
	}
	if len(s.Entries()) != 2 {
		t.Errorf("expected 2 entries, got %d", len(s.Entries()))
	}
}

func TestCollectorsHandler(t *testing.T) {
	c := NewCollectors()
	s := NewStats(c)

	s.Record(Sample{Method: "POST", Name: "Auth - Login", Latency: 10 * time.Millisecond, OK: true})
	s.Record(Sample{Method: "POST", Name: "Auth - Login", Latency: 10 * time.Millisecond, OK: false, Message: "x"})
	c.UserStarted("browse")
	c.UserStarted("browse")
	c.UserStopped("browse")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`bankload_requests_total{method="POST",name="Auth - Login",result="success"} 1`,
		`bankload_requests_total{method="POST",name="Auth - Login",result="failure"} 1`,
		`bankload_users{kind="browse"} 1`,
		`bankload_request_duration_seconds_count{method="POST",name="Auth - Login"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

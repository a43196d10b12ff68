package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bankload/internal/bankapi"
	"bankload/internal/events"
	"bankload/internal/metrics"
	"bankload/internal/mockbank"
	"bankload/internal/scenario"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	bank := mockbank.New(mockbank.DefaultConfig())
	backend := httptest.NewServer(bank.Handler())
	t.Cleanup(backend.Close)

	base := scenario.QuickScenario()
	base.Host = backend.URL
	base.WaitMin = 10 * time.Millisecond
	base.WaitMax = 20 * time.Millisecond
	base.Seed = 1

	s := NewServer("127.0.0.1:0", base)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.stopScenario(5 * time.Second)
		srv.Close()
	})
	return s, srv
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func post(t *testing.T, url, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func waitIdle(t *testing.T, s *Server) {
	t.Helper()
	require.Eventually(t, func() bool { return !s.status().Running }, 5*time.Second, 10*time.Millisecond)
}

func TestStatusIdle(t *testing.T) {
	_, srv := newTestServer(t)

	var status StatusResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/status", &status))
	assert.False(t, status.Running)
	assert.Empty(t, status.ScenarioName)

	var stats StatsResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/stats", &stats))
	assert.Empty(t, stats.Entries)

	var failures []metrics.Failure
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/failures", &failures))
	assert.Empty(t, failures)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/result", nil))
}

func TestMethodNotAllowed(t *testing.T) {
	_, srv := newTestServer(t)

	code, _ := post(t, srv.URL+"/api/status", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, http.StatusMethodNotAllowed, getJSON(t, srv.URL+"/api/scenario/start", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, getJSON(t, srv.URL+"/api/scenario/stop", nil))
}

func TestPresets(t *testing.T) {
	_, srv := newTestServer(t)

	var presets []PresetInfo
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/presets", &presets))
	require.Len(t, presets, len(scenario.ListPresets()))
	assert.Equal(t, "smoke", presets[0].Name)
	assert.Equal(t, 5, presets[0].Users)
	assert.Equal(t, "30s", presets[0].Duration)
}

func TestStartRejectsBadRequests(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"unknown preset", `{"preset":"huge"}`},
		{"bad duration", `{"duration":"soon"}`},
		{"bad host", `{"host":"not a url"}`},
		{"spawn rate too high", `{"spawn_rate":2e9}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := post(t, srv.URL+"/api/scenario/start", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}
}

func TestStopWhenIdle(t *testing.T) {
	_, srv := newTestServer(t)

	code, _ := post(t, srv.URL+"/api/scenario/stop", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestScenarioLifecycle(t *testing.T) {
	s, srv := newTestServer(t)

	code, body := post(t, srv.URL+"/api/scenario/start", `{"users":2,"spawn_rate":50,"duration":"400ms"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, `"status":"started"`)

	code, _ = post(t, srv.URL+"/api/scenario/start", `{}`)
	assert.Equal(t, http.StatusConflict, code)

	var status StatusResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/status", &status))
	assert.Equal(t, "quick", status.ScenarioName)
	assert.Equal(t, 2, status.TargetUsers)

	waitIdle(t, s)

	var stats StatsResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/stats", &stats))
	require.NotEmpty(t, stats.Entries)
	assert.NotZero(t, stats.Total.TotalRequests)

	names := make(map[string]bool)
	for _, e := range stats.Entries {
		names[e.Name] = true
	}
	assert.True(t, names[bankapi.NameLogin])

	var result scenario.Result
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/result", &result))
	assert.Equal(t, 2, result.Users)
	assert.False(t, result.Interrupted)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bankload_requests_total")
}

func TestScenarioStop(t *testing.T) {
	s, srv := newTestServer(t)

	code, body := post(t, srv.URL+"/api/scenario/start", `{"preset":"quick","users":1,"duration":"30s"}`)
	require.Equal(t, http.StatusOK, code, body)

	code, _ = post(t, srv.URL+"/api/scenario/stop", "")
	assert.Equal(t, http.StatusOK, code)

	waitIdle(t, s)

	var result scenario.Result
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/result", &result))
	assert.True(t, result.Interrupted)
}

func TestHostOverride(t *testing.T) {
	s, _ := newTestServer(t)

	config, err := s.buildConfig(ScenarioRequest{Preset: "peak", Host: "http://other:9090", Users: 3})
	require.NoError(t, err)
	assert.Equal(t, "http://other:9090", config.Host)
	assert.Equal(t, "peak", config.Name)
	assert.Equal(t, 3, config.Users)
	assert.Equal(t, float64(5), config.SpawnRate)
	assert.Equal(t, s.base.WaitMin, config.WaitMin)
}

func TestWebSocketReceivesEvents(t *testing.T) {
	s, srv := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.forwardEvents(ctx)
	require.Eventually(t, func() bool { return s.bus.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.wsClients) == 1
	}, time.Second, 5*time.Millisecond)

	// リクエスト失敗イベントはWebSocketへ流れない
	s.bus.Publish(events.NewRequestFailedEvent("POST", "Auth - Login", "Unauthorized"))

	code, body := post(t, srv.URL+"/api/scenario/start", `{"users":1,"duration":"200ms"}`)
	require.Equal(t, http.StatusOK, code, body)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	seen := make(map[string]bool)
	for !seen["scenario_complete"] {
		var msg string
		require.NoError(t, websocket.Message.Receive(ws, &msg))

		var envelope struct {
			Type  string `json:"type"`
			Event struct {
				Type string `json:"type"`
			} `json:"event"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg), &envelope))
		seen[envelope.Type] = true
		if envelope.Type == "event" {
			seen[envelope.Event.Type] = true
		}
	}

	assert.True(t, seen["event"])
	assert.True(t, seen["scenario_started"])
	assert.True(t, seen["user_spawned"])
	assert.False(t, seen["request_failed"])
}

func TestSetBaseHost(t *testing.T) {
	s, _ := newTestServer(t)
	s.SetBaseHost("http://mock:1234")

	config, err := s.buildConfig(ScenarioRequest{})
	require.NoError(t, err)
	assert.Equal(t, "http://mock:1234", config.Host)
}

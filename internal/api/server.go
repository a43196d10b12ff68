package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"bankload/internal/events"
	"bankload/internal/logger"
	"bankload/internal/metrics"
	"bankload/internal/scenario"

	"golang.org/x/net/websocket"
)

// Server はAPIサーバー
type Server struct {
	addr       string
	base       scenario.Config
	collectors *metrics.Collectors
	bus        *events.Bus

	mu         sync.RWMutex
	engine     *scenario.Engine
	config     scenario.Config
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	lastResult *scenario.Result
	wsClients  map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
// base は開始リクエストで上書きされない項目（ホスト、テストデータなど）の既定値
func NewServer(addr string, base scenario.Config) *Server {
	return &Server{
		addr:       addr,
		base:       base,
		collectors: metrics.NewCollectors(),
		bus:        events.NewBus(),
		wsClients:  make(map[*websocket.Conn]bool),
	}
}

// EventBus はイベントバスを返す
func (s *Server) EventBus() *events.Bus {
	return s.bus
}

// SetBaseHost は開始リクエストで host が省略されたときの対象ホストを設定する
func (s *Server) SetBaseHost(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base.Host = host
}

// Handler はルーティング済みのHTTPハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/failures", s.handleFailures)
	mux.HandleFunc("/api/result", s.handleResult)
	mux.HandleFunc("/api/scenario/start", s.handleScenarioStart)
	mux.HandleFunc("/api/scenario/stop", s.handleScenarioStop)
	mux.HandleFunc("/api/presets", s.handlePresets)

	// Prometheus
	mux.Handle("/metrics", s.collectors.Handler())

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始する。ctxが終了するとシナリオを止めてシャットダウンする
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// バックグラウンドでステータスとイベントを配信
	go s.broadcastLoop(ctx)
	go s.forwardEvents(ctx)

	logger.Info("", "API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		s.stopScenario(5 * time.Second)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Running        bool    `json:"running"`
	ScenarioName   string  `json:"scenario_name,omitempty"`
	Host           string  `json:"host,omitempty"`
	TargetUsers    int     `json:"target_users"`
	RunningUsers   int     `json:"running_users"`
	Elapsed        string  `json:"elapsed,omitempty"`
	TotalRequests  uint64  `json:"total_requests"`
	FailedRequests uint64  `json:"failed_requests"`
	RPS            float64 `json:"rps"`
	ErrorRate      float64 `json:"error_rate"`
}

func (s *Server) status() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := StatusResponse{Running: s.running}
	if s.engine == nil {
		return resp
	}

	resp.ScenarioName = s.config.Name
	resp.Host = s.config.Host
	resp.TargetUsers = s.config.Users
	resp.RunningUsers = s.engine.RunningUsers()
	if s.running {
		resp.Elapsed = time.Since(s.engine.StartTime()).Round(time.Second).String()
	}
	if stats := s.engine.Stats(); stats != nil {
		snap := stats.Total().Snapshot()
		resp.TotalRequests = snap.TotalRequests
		resp.FailedRequests = snap.FailedRequests
		resp.RPS = snap.RPS
		resp.ErrorRate = snap.ErrorRate
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.status())
}

// StatsResponse はリクエスト統計レスポンス
type StatsResponse struct {
	Entries []metrics.Entry  `json:"entries"`
	Total   metrics.Snapshot `json:"total"`
}

func (s *Server) currentStats() *metrics.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return nil
	}
	return s.engine.Stats()
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := StatsResponse{Entries: []metrics.Entry{}}
	if stats := s.currentStats(); stats != nil {
		resp.Entries = stats.Entries()
		resp.Total = stats.Total().Snapshot()
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	failures := []metrics.Failure{}
	if stats := s.currentStats(); stats != nil {
		failures = stats.Failures()
	}
	s.writeJSON(w, failures)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	result := s.lastResult
	s.mu.RUnlock()

	if result == nil {
		http.Error(w, "No completed scenario", http.StatusNotFound)
		return
	}
	s.writeJSON(w, result)
}

// ScenarioRequest はシナリオ開始リクエスト
type ScenarioRequest struct {
	Preset    string  `json:"preset"`
	Host      string  `json:"host,omitempty"`
	Users     int     `json:"users,omitempty"`
	SpawnRate float64 `json:"spawn_rate,omitempty"`
	Duration  string  `json:"duration,omitempty"`
}

// buildConfig はリクエストからシナリオ設定を作る
func (s *Server) buildConfig(req ScenarioRequest) (scenario.Config, error) {
	s.mu.RLock()
	config := s.base
	s.mu.RUnlock()
	if req.Preset != "" {
		preset, ok := scenario.GetPreset(req.Preset)
		if !ok {
			return config, errors.New("unknown preset: " + req.Preset)
		}
		config.Name = preset.Name
		config.Description = preset.Description
		config.Users = preset.Users
		config.SpawnRate = preset.SpawnRate
		config.Duration = preset.Duration
	}

	// オーバーライド
	if req.Host != "" {
		config.Host = req.Host
	}
	if req.Users > 0 {
		config.Users = req.Users
	}
	if req.SpawnRate > 0 {
		config.SpawnRate = req.SpawnRate
	}
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			return config, errors.New("invalid duration: " + req.Duration)
		}
		config.Duration = d
	}

	return config, config.Validate()
}

func (s *Server) handleScenarioStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	config, err := s.buildConfig(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		http.Error(w, "Scenario already running", http.StatusConflict)
		return
	}

	engine := scenario.New(config)
	engine.SetEventBus(s.bus)
	engine.SetCollectors(s.collectors)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.config = config
	s.engine = engine
	s.cancel = cancel
	s.done = done
	s.running = true
	s.mu.Unlock()

	// バックグラウンドで実行
	go func() {
		defer close(done)
		defer cancel()

		result, err := engine.Run(ctx)

		s.mu.Lock()
		s.running = false
		if result != nil {
			s.lastResult = result
		}
		s.mu.Unlock()

		if err != nil {
			logger.Error("", "Scenario failed: %v", err)
		} else {
			logger.Info("", "Scenario completed: %d requests, %d failures", result.TotalRequests, result.FailedRequests)
		}

		s.broadcast(map[string]any{
			"type":   "scenario_complete",
			"result": result,
		})
	}()

	s.writeJSON(w, map[string]string{"status": "started", "scenario": config.Name, "host": config.Host})
}

func (s *Server) handleScenarioStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		http.Error(w, "No scenario running", http.StatusBadRequest)
		return
	}
	s.cancel()
	s.mu.Unlock()

	s.writeJSON(w, map[string]string{"status": "stop requested"})
}

// stopScenario は実行中のシナリオを止めて終了を待つ
func (s *Server) stopScenario(timeout time.Duration) {
	s.mu.RLock()
	cancel, done, running := s.cancel, s.done, s.running
	s.mu.RUnlock()

	if !running {
		return
	}
	cancel()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("", "Scenario did not stop within %v", timeout)
	}
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Users       int     `json:"users"`
	SpawnRate   float64 `json:"spawn_rate"`
	Duration    string  `json:"duration"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var presets []PresetInfo
	for _, name := range scenario.ListPresets() {
		config, _ := scenario.GetPreset(name)
		presets = append(presets, PresetInfo{
			Name:        config.Name,
			Description: config.Description,
			Users:       config.Users,
			SpawnRate:   config.SpawnRate,
			Duration:    config.Duration.String(),
		})
	}

	s.writeJSON(w, presets)
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := s.status()
			if !status.Running {
				continue
			}
			s.broadcast(map[string]any{
				"type":   "status",
				"status": status,
			})
		}
	}
}

// forwardEvents はイベントバスのイベントをWebSocketクライアントへ転送する
func (s *Server) forwardEvents(ctx context.Context) {
	// リクエスト単位の失敗は /api/failures で見るため転送しない
	ch := s.bus.Subscribe(
		events.EventUserSpawned, events.EventUserStopped, events.EventSpawnComplete,
		events.EventScenarioStarted, events.EventScenarioComplete,
		events.EventChaosAttack, events.EventChaosRecovered,
	)
	defer func() {
		if dropped := s.bus.Unsubscribe(ch); dropped > 0 {
			logger.Warn("", "WebSocket forwarder dropped %d events", dropped)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(map[string]any{
				"type":  "event",
				"event": ev,
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("", "Failed to encode JSON: %v", err)
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"matpool/internal/bench"
	"matpool/internal/engine"
	"matpool/internal/events"
	"matpool/internal/logger"
	"matpool/internal/matrix"

	"golang.org/x/net/websocket"
)

// maxBodyBytes はリクエストボディの上限
const maxBodyBytes = 8 << 20

// maxResultCells は multiply が返す結果行列の要素数上限
const maxResultCells = 1 << 22

// Server はAPIサーバー
type Server struct {
	addr     string
	engine   *engine.Engine[float64]
	eventBus *events.Bus
	log      *logger.Scoped

	mu          sync.RWMutex
	running     bool
	benchName   string
	cancelBench context.CancelFunc
	lastResult  *bench.Result
	wsClients   map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
// bus が nil でなければエンジンのイベントもWebSocketに流れる
func NewServer(addr string, eng *engine.Engine[float64], bus *events.Bus) *Server {
	if eng == nil {
		eng = engine.New[float64](engine.DefaultConfig())
	}
	if bus != nil {
		eng.SetEventBus(bus)
	}
	return &Server{
		addr:      addr,
		engine:    eng,
		eventBus:  bus,
		log:       logger.Default.With("api"),
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/multiply", s.handleMultiply)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.HandleFunc("/api/bench/start", s.handleBenchStart)
	mux.HandleFunc("/api/bench/stop", s.handleBenchStop)
	mux.HandleFunc("/api/bench/result", s.handleBenchResult)

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始する
// ctx がキャンセルされるとシャットダウンする
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// バックグラウンドでイベント配信
	go s.forwardEvents(ctx)

	s.log.Info("API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		s.stopBench()
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
	BenchRunning bool   `json:"bench_running"`
	BenchName    string `json:"bench_name,omitempty"`
	Workers      int    `json:"workers"`
	QueueDepth   int    `json:"queue_depth"`
	ReplyTimeout string `json:"reply_timeout"`
	FaultsActive bool   `json:"faults_active"`
	TotalJobs    uint64 `json:"total_jobs"`
	WSClients    int    `json:"ws_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.status())
}

func (s *Server) status() StatusResponse {
	cfg := s.engine.Config()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return StatusResponse{
		BenchRunning: s.running,
		BenchName:    s.benchName,
		Workers:      cfg.NumWorkers,
		QueueDepth:   cfg.QueueDepth,
		ReplyTimeout: cfg.ReplyTimeout.String(),
		FaultsActive: cfg.Faults != nil,
		TotalJobs:    s.engine.Metrics().TotalJobs(),
		WSClients:    len(s.wsClients),
	}
}

// MatrixPayload はJSON上の行列表現（行優先）
type MatrixPayload struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// MultiplyRequest は行列積リクエスト
type MultiplyRequest struct {
	A MatrixPayload `json:"a"`
	B MatrixPayload `json:"b"`
}

// MultiplyResponse は行列積レスポンス
type MultiplyResponse struct {
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	Data      []float64 `json:"data"`
	Text      string    `json:"text"`
	ElapsedMs float64   `json:"elapsed_ms"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleMultiply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MultiplyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	a, err := matrix.New(req.A.Data, req.A.Rows, req.A.Cols)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "a: "+err.Error())
		return
	}
	b, err := matrix.New(req.B.Data, req.B.Rows, req.B.Cols)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "b: "+err.Error())
		return
	}
	if a.Rows() > maxResultCells/b.Cols() {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("result %dx%d exceeds %d cells", a.Rows(), b.Cols(), maxResultCells))
		return
	}

	start := time.Now()
	c, err := s.engine.Multiply(r.Context(), a, b)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	s.writeJSON(w, MultiplyResponse{
		Rows:      c.Rows(),
		Cols:      c.Cols(),
		Data:      c.Values(),
		Text:      c.String(),
		ElapsedMs: float64(time.Since(start).Microseconds()) / 1000,
	})
}

// statusFor はエンジンのエラーをHTTPステータスに対応付ける
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrShapeMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, matrix.ErrBadShape):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, engine.ErrReplyLost):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, engine.ErrTaskRouting):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// MetricsResponse はメトリクスレスポンス
type MetricsResponse struct {
	TotalJobs      uint64           `json:"total_jobs"`
	SuccessJobs    uint64           `json:"success_jobs"`
	FailedJobs     uint64           `json:"failed_jobs"`
	TotalCells     uint64           `json:"total_cells"`
	CellsPerSecond float64          `json:"cells_per_second"`
	AvgLatencyMs   float64          `json:"avg_latency_ms"`
	P99LatencyMs   float64          `json:"p99_latency_ms"`
	ErrorRate      float64          `json:"error_rate"`
	Counters       map[string]int64 `json:"counters"`
	DroppedEvents  uint64           `json:"dropped_events"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := s.engine.Metrics().Snapshot()
	resp := MetricsResponse{
		TotalJobs:      snapshot.TotalJobs,
		SuccessJobs:    snapshot.SuccessJobs,
		FailedJobs:     snapshot.FailedJobs,
		TotalCells:     snapshot.TotalCells,
		CellsPerSecond: snapshot.CellsPerSecond,
		AvgLatencyMs:   float64(snapshot.AverageLatency.Microseconds()) / 1000,
		P99LatencyMs:   float64(snapshot.P99Latency.Microseconds()) / 1000,
		ErrorRate:      snapshot.ErrorRate,
		Counters:       s.engine.Counters().Snapshot(),
	}
	if s.eventBus != nil {
		resp.DroppedEvents = s.eventBus.Dropped()
	}

	s.writeJSON(w, resp)
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Shape       string `json:"shape"`
	Iterations  int    `json:"iterations"`
	Faults      bool   `json:"faults"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names := bench.ListPresets()
	presets := make([]PresetInfo, 0, len(names))
	for _, name := range names {
		config, _ := bench.GetPreset(name)
		presets = append(presets, PresetInfo{
			Name:        config.Name,
			Description: config.Description,
			Shape:       config.Shape(),
			Iterations:  config.Iterations,
			Faults:      config.EnableFaults,
		})
	}

	s.writeJSON(w, presets)
}

// BenchRequest はベンチ開始リクエスト
type BenchRequest struct {
	Preset     string `json:"preset"`
	Iterations int    `json:"iterations,omitempty"`
	Workers    int    `json:"workers,omitempty"`
	Seed       uint64 `json:"seed,omitempty"`
}

func (s *Server) handleBenchStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BenchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// プリセット取得
	config, ok := bench.GetPreset(req.Preset)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "Unknown preset: "+req.Preset)
		return
	}

	// オーバーライド
	if req.Iterations > 0 {
		config.Iterations = req.Iterations
	}
	if req.Workers > 0 {
		config.Workers = req.Workers
	}
	if req.Seed > 0 {
		config.Seed = req.Seed
	}
	if err := config.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.writeError(w, http.StatusConflict, "Bench already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	runner := bench.New(config)
	runner.SetEventBus(s.eventBus)
	s.running = true
	s.benchName = config.Name
	s.cancelBench = cancel
	s.mu.Unlock()

	// バックグラウンドで実行
	go s.runBench(ctx, cancel, runner)

	s.writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "started", "bench": config.Name})
}

func (s *Server) runBench(ctx context.Context, cancel context.CancelFunc, runner *bench.Runner) {
	defer cancel()

	result, err := runner.Run(ctx)

	s.mu.Lock()
	s.running = false
	s.cancelBench = nil
	if err == nil {
		s.lastResult = result
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("Bench failed: %v", err)
		s.broadcast(map[string]any{
			"type":  "bench_error",
			"error": err.Error(),
		})
		return
	}

	s.log.Info("Bench completed: %d passed, %d failed", result.Passed, result.Failed)
	s.broadcast(map[string]any{
		"type":   "bench_result",
		"result": result,
	})
}

func (s *Server) handleBenchStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.stopBench() {
		s.writeError(w, http.StatusBadRequest, "No bench running")
		return
	}

	s.writeJSON(w, map[string]string{"status": "stop requested"})
}

// stopBench は実行中のベンチをキャンセルする
func (s *Server) stopBench() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.cancelBench == nil {
		return false
	}
	s.cancelBench()
	return true
}

func (s *Server) handleBenchResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	result := s.lastResult
	s.mu.RUnlock()

	if result == nil {
		s.writeError(w, http.StatusNotFound, "No bench result yet")
		return
	}
	s.writeJSON(w, result)
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

// forwardEvents はイベントバスの内容をWebSocketクライアントに配信する
func (s *Server) forwardEvents(ctx context.Context) {
	if s.eventBus == nil {
		return
	}

	ch := s.eventBus.Subscribe()
	defer s.eventBus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(ev)
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	s.writeJSONStatus(w, http.StatusOK, data)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSONStatus(w, status, ErrorResponse{Error: msg})
}

package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxLatencySamples = 1000

// Config はMetricsの設定
type Config struct {
	MaxLatencySamples int // 保持するレイテンシサンプル数
}

// Metrics は乗算ジョブのメトリクスを収集する
type Metrics struct {
	totalJobs      atomic.Uint64
	successJobs    atomic.Uint64
	failedJobs     atomic.Uint64
	totalCells     atomic.Uint64
	totalLatencyNs atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	latencies         []time.Duration
	maxLatencySamples int
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(Config{MaxLatencySamples: defaultMaxLatencySamples})
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	max := config.MaxLatencySamples
	if max <= 0 {
		max = defaultMaxLatencySamples
	}
	return &Metrics{
		startTime:         time.Now(),
		latencies:         make([]time.Duration, 0, max),
		maxLatencySamples: max,
	}
}

// RecordSuccess は成功したジョブを記録する
func (m *Metrics) RecordSuccess(latency time.Duration, cells int) {
	m.totalJobs.Add(1)
	m.successJobs.Add(1)
	m.totalCells.Add(uint64(cells))
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	}
	m.mu.Unlock()
}

// RecordFailure は失敗したジョブを記録する
func (m *Metrics) RecordFailure(latency time.Duration) {
	m.totalJobs.Add(1)
	m.failedJobs.Add(1)
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
}

func (m *Metrics) TotalJobs() uint64 {
	return m.totalJobs.Load()
}

func (m *Metrics) SuccessJobs() uint64 {
	return m.successJobs.Load()
}

func (m *Metrics) FailedJobs() uint64 {
	return m.failedJobs.Load()
}

// TotalCells は成功ジョブで計算した出力セル数の合計を返す
func (m *Metrics) TotalCells() uint64 {
	return m.totalCells.Load()
}

// CellsPerSecond は開始からの平均スループットを返す
func (m *Metrics) CellsPerSecond() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.totalCells.Load()) / elapsed
}

// AverageLatency は平均レイテンシを返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.totalJobs.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalLatencyNs.Load() / total)
}

// P99Latency は成功ジョブのP99レイテンシを返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
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

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ErrorRate はエラー率を返す（0.0〜1.0）
func (m *Metrics) ErrorRate() float64 {
	total := m.totalJobs.Load()
	if total == 0 {
		return 0
	}
	return float64(m.failedJobs.Load()) / float64(total)
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	TotalJobs      uint64        `json:"total_jobs"`
	SuccessJobs    uint64        `json:"success_jobs"`
	FailedJobs     uint64        `json:"failed_jobs"`
	TotalCells     uint64        `json:"total_cells"`
	CellsPerSecond float64       `json:"cells_per_second"`
	AverageLatency time.Duration `json:"average_latency_ns"`
	P99Latency     time.Duration `json:"p99_latency_ns"`
	ErrorRate      float64       `json:"error_rate"`
	Elapsed        time.Duration `json:"elapsed_ns"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalJobs:      m.TotalJobs(),
		SuccessJobs:    m.SuccessJobs(),
		FailedJobs:     m.FailedJobs(),
		TotalCells:     m.TotalCells(),
		CellsPerSecond: m.CellsPerSecond(),
		AverageLatency: m.AverageLatency(),
		P99Latency:     m.P99Latency(),
		ErrorRate:      m.ErrorRate(),
		Elapsed:        time.Since(m.startTime),
	}
}

package bench

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"matpool/internal/engine"
	"matpool/internal/events"
	"matpool/internal/fault"
	"matpool/internal/logger"
	"matpool/internal/matrix"
	"matpool/internal/metrics"
	"matpool/internal/worker"
)

const (
	// valueLimit は生成する要素の絶対値の上限
	// 整数値の float64 なので積和は丸め誤差なしで一致する
	valueLimit = 9

	// maxRecordedErrors は Result に残すエラーメッセージの上限
	maxRecordedErrors = 5

	pcgStream = 0x6a09e667f3bcc909
)

const (
	// MaxDimension は Rows/Inner/Cols の上限
	MaxDimension = 4096
	// MaxIterations は反復回数の上限
	MaxIterations = 10000
)

// ErrAlreadyRunning は実行中の Runner に Run を呼んだときに返される
var ErrAlreadyRunning = errors.New("bench: already running")

// Config はベンチマークの設定
type Config struct {
	Name        string // ベンチ名
	Description string // 説明

	// 形状: (Rows x Inner) * (Inner x Cols)
	Rows  int
	Inner int
	Cols  int

	Iterations int    // 積を計算する回数
	Seed       uint64 // 行列生成のシード

	// エンジン設定
	Workers      int           // ワーカー数（0 でデフォルト）
	QueueDepth   int           // ワーカーごとのキュー長（0 でデフォルト）
	ReplyTimeout time.Duration // 1件の応答を待つ上限（0 でデフォルト）

	// 障害注入
	EnableFaults bool
	Faults       fault.Config
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	ec := engine.DefaultConfig()
	return Config{
		Name:         "default",
		Description:  "Default bench",
		Rows:         32,
		Inner:        32,
		Cols:         32,
		Iterations:   3,
		Seed:         1,
		Workers:      ec.NumWorkers,
		QueueDepth:   ec.QueueDepth,
		ReplyTimeout: ec.ReplyTimeout,
		Faults:       fault.DefaultConfig(),
	}
}

// Validate は設定値を検証する
func (c Config) Validate() error {
	if c.Rows <= 0 || c.Inner <= 0 || c.Cols <= 0 {
		return fmt.Errorf("bench: invalid shape %dx%d * %dx%d", c.Rows, c.Inner, c.Inner, c.Cols)
	}
	if c.Rows > MaxDimension || c.Inner > MaxDimension || c.Cols > MaxDimension {
		return fmt.Errorf("bench: dimensions must not exceed %d, got %s", MaxDimension, c.Shape())
	}
	if c.Iterations <= 0 || c.Iterations > MaxIterations {
		return fmt.Errorf("bench: iterations must be between 1 and %d, got %d", MaxIterations, c.Iterations)
	}
	if c.Workers < 0 || c.Workers > worker.MaxWorkers {
		return fmt.Errorf("bench: workers must be between 0 and %d, got %d", worker.MaxWorkers, c.Workers)
	}
	if c.QueueDepth < 0 || c.QueueDepth > worker.MaxQueueDepth {
		return fmt.Errorf("bench: queue depth must be between 0 and %d, got %d", worker.MaxQueueDepth, c.QueueDepth)
	}
	if c.EnableFaults && (c.Faults.Rate < 0 || c.Faults.Rate > 1) {
		return fmt.Errorf("bench: fault rate must be between 0 and 1, got %v", c.Faults.Rate)
	}
	return nil
}

// Shape は "RxI * IxC" 形式で形状を返す
func (c Config) Shape() string {
	return fmt.Sprintf("%dx%d * %dx%d", c.Rows, c.Inner, c.Inner, c.Cols)
}

// Result はベンチマーク実行結果
type Result struct {
	Name      string        `json:"name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration_ns"`

	Rows    int `json:"rows"`
	Inner   int `json:"inner"`
	Cols    int `json:"cols"`
	Workers int `json:"workers"`

	// 反復ごとの判定
	Iterations int      `json:"iterations"`
	Passed     int      `json:"passed"`
	Failed     int      `json:"failed"`
	Mismatches int      `json:"mismatches"`
	Errors     []string `json:"errors,omitempty"`

	// 決定性チェック
	DeterminismChecked bool `json:"determinism_checked"`
	Deterministic      bool `json:"deterministic"`

	// メトリクス
	AvgLatency     time.Duration    `json:"avg_latency_ns"`
	P99Latency     time.Duration    `json:"p99_latency_ns"`
	CellsPerSecond float64          `json:"cells_per_second"`
	ErrorRate      float64          `json:"error_rate"`
	Counters       map[string]int64 `json:"counters"`

	FaultsEnabled bool        `json:"faults_enabled"`
	Faults        fault.Stats `json:"faults"`
}

// OK は誤った結果が一度も返らなかったかを返す
// 障害注入なしの場合は失敗も許容しない
func (r *Result) OK() bool {
	if r.Mismatches > 0 {
		return false
	}
	if r.DeterminismChecked && !r.Deterministic {
		return false
	}
	return r.FaultsEnabled || r.Failed == 0
}

// Runner はベンチマーク実行器
type Runner struct {
	config   Config
	eventBus *events.Bus
	log      *logger.Scoped

	mu      sync.RWMutex
	running bool
}

// New は新しいRunnerを作成する
func New(config Config) *Runner {
	return &Runner{
		config: config,
		log:    logger.Default.With("bench"),
	}
}

// SetEventBus はイベントバスを設定する
func (r *Runner) SetEventBus(bus *events.Bus) {
	r.eventBus = bus
}

// Config は設定を返す
func (r *Runner) Config() Config {
	return r.config
}

// IsRunning は実行中かどうかを返す
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Run はベンチマークを実行する
// ctx がキャンセルされた場合は結果を返さずにエラーを返す
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	cfg := r.config
	r.log.Info("=== Bench '%s' started ===", cfg.Name)
	r.log.Info("Description: %s", cfg.Description)

	result := &Result{
		Name:          cfg.Name,
		StartTime:     time.Now(),
		Rows:          cfg.Rows,
		Inner:         cfg.Inner,
		Cols:          cfg.Cols,
		Iterations:    cfg.Iterations,
		FaultsEnabled: cfg.EnableFaults,
		Faults:        fault.Stats{ByKind: map[string]uint64{}},
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^pcgStream))
	m := metrics.New()
	var counters *metrics.Counters

	for it := range cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("bench %s: %w", cfg.Name, err)
		}

		a := RandomMatrix(rng, cfg.Rows, cfg.Inner, valueLimit)
		b := RandomMatrix(rng, cfg.Inner, cfg.Cols, valueLimit)
		want, err := matrix.MulSequential(a, b)
		if err != nil {
			return nil, fmt.Errorf("bench %s: %w", cfg.Name, err)
		}

		eng := engine.New[float64](r.engineConfig(it))
		eng.SetEventBus(r.eventBus)
		if counters == nil {
			result.Workers = eng.Config().NumWorkers
			keys := append(worker.CounterKeys(result.Workers), engine.CounterJobsStarted)
			counters = metrics.NewCounters(keys...)
		}

		start := time.Now()
		got, err := eng.Multiply(ctx, a, b)
		elapsed := time.Since(start)

		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("bench %s: %w", cfg.Name, ctxErr)
			}
			m.RecordFailure(elapsed)
			result.Failed++
			if len(result.Errors) < maxRecordedErrors {
				result.Errors = append(result.Errors, fmt.Sprintf("iteration %d: %v", it, err))
			}
			r.log.Warn("iteration %d failed: %v", it, err)
		case !got.Equal(want):
			m.RecordFailure(elapsed)
			result.Mismatches++
			r.log.Error("iteration %d: parallel product differs from sequential reference", it)
		default:
			m.RecordSuccess(elapsed, cfg.Rows*cfg.Cols)
			result.Passed++
			if !result.DeterminismChecked {
				r.checkDeterminism(ctx, eng, a, b, got, result)
			}
		}

		for key, v := range eng.Counters().Snapshot() {
			_ = counters.Add(key, v)
		}
		mergeFaultStats(&result.Faults, eng.Faults().Stats())
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	snapshot := m.Snapshot()
	result.AvgLatency = snapshot.AverageLatency
	result.P99Latency = snapshot.P99Latency
	result.CellsPerSecond = snapshot.CellsPerSecond
	result.ErrorRate = snapshot.ErrorRate
	result.Counters = counters.Snapshot()

	if r.eventBus != nil {
		r.eventBus.Publish(events.NewBenchCompletedEvent(cfg.Name, result.OK(), result.Duration))
	}
	r.log.Info("=== Bench '%s' completed: %d passed, %d failed, %d mismatched ===",
		cfg.Name, result.Passed, result.Failed, result.Mismatches)

	return result, nil
}

// checkDeterminism は同じ入力で再計算し、出力が一致するかを記録する
// 再計算が失敗した場合は判定を保留する
func (r *Runner) checkDeterminism(ctx context.Context, eng *engine.Engine[float64], a, b, first *matrix.Matrix[float64], result *Result) {
	again, err := eng.Multiply(ctx, a, b)
	if err != nil {
		r.log.Debug("determinism re-run failed, will retry on a later iteration: %v", err)
		return
	}
	result.DeterminismChecked = true
	result.Deterministic = again.Equal(first)
	if !result.Deterministic {
		r.log.Error("re-run produced a different matrix for identical inputs")
	}
}

// engineConfig は反復 it 用のエンジン設定を組み立てる
// 障害のシードは反復ごとにずらす
func (r *Runner) engineConfig(it int) engine.Config {
	ec := engine.Config{
		NumWorkers:   r.config.Workers,
		QueueDepth:   r.config.QueueDepth,
		ReplyTimeout: r.config.ReplyTimeout,
	}
	if r.config.EnableFaults {
		fc := r.config.Faults
		fc.Seed += uint64(it)
		ec.Faults = &fc
	}
	return ec
}

func mergeFaultStats(dst *fault.Stats, src fault.Stats) {
	dst.Total += src.Total
	for k, v := range src.ByKind {
		dst.ByKind[k] += v
	}
}

// RandomMatrix は [-limit, limit] の整数値を持つ rows×cols の行列を生成する
func RandomMatrix(rng *rand.Rand, rows, cols, limit int) *matrix.Matrix[float64] {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64(rng.IntN(2*limit+1) - limit)
	}
	return matrix.MustNew(data, rows, cols)
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	verdict := "PASS"
	if !r.OK() {
		verdict = "FAIL"
	}
	determinism := "not checked"
	if r.DeterminismChecked {
		determinism = fmt.Sprintf("%v", r.Deterministic)
	}

	report := fmt.Sprintf(`
================================================================================
                         BENCH REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Start Time:     %s
  End Time:       %s
  Duration:       %v
  Shape:          %dx%d * %dx%d
  Workers:        %d

VERIFICATION
------------
  Iterations:     %d
  Passed:         %d
  Failed:         %d
  Mismatches:     %d
  Deterministic:  %s
  Verdict:        %s

JOB METRICS
-----------
  Error Rate:     %.2f%%
  Avg Latency:    %v
  P99 Latency:    %v
  Cells/sec:      %.0f

FAULT STATISTICS
----------------
  Enabled:        %v
  Injected:       %d
`,
		r.Name,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.Rows, r.Inner, r.Inner, r.Cols,
		r.Workers,
		r.Iterations,
		r.Passed,
		r.Failed,
		r.Mismatches,
		determinism,
		verdict,
		r.ErrorRate*100,
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
		r.CellsPerSecond,
		r.FaultsEnabled,
		r.Faults.Total,
	)

	var sb strings.Builder
	sb.WriteString(report)
	for _, kind := range slices.Sorted(maps.Keys(r.Faults.ByKind)) {
		fmt.Fprintf(&sb, "  %-15s %d\n", kind+":", r.Faults.ByKind[kind])
	}

	sb.WriteString("\nCOUNTERS\n--------\n")
	for _, key := range slices.Sorted(maps.Keys(r.Counters)) {
		fmt.Fprintf(&sb, "  %-20s %d\n", key+":", r.Counters[key])
	}

	if len(r.Errors) > 0 {
		sb.WriteString("\nERRORS\n------\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "  %s\n", e)
		}
	}

	sb.WriteString("\n================================================================================")
	return sb.String()
}

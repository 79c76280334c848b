package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"matpool/internal/events"
	"matpool/internal/fault"
	"matpool/internal/logger"
	"matpool/internal/matrix"
	"matpool/internal/metrics"
	"matpool/internal/vector"
	"matpool/internal/worker"
)

// CounterJobsStarted は開始したジョブ数のカウンタキー
const CounterJobsStarted = "jobs.started"

// Config はEngineの設定
type Config struct {
	NumWorkers   int           // ワーカー数
	QueueDepth   int           // ワーカーごとのキュー長
	ReplyTimeout time.Duration // 1件の応答を待つ上限
	Faults       *fault.Config // nil で障害注入なし
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	pc := worker.DefaultPoolConfig()
	return Config{
		NumWorkers:   pc.NumWorkers,
		QueueDepth:   pc.QueueDepth,
		ReplyTimeout: 5 * time.Second,
	}
}

// Engine は並列行列積の実行器
type Engine[T vector.Scalar] struct {
	config   Config
	metrics  *metrics.Metrics
	counters *metrics.Counters
	faults   *fault.Injector
	eventBus *events.Bus
	log      *logger.Scoped
}

// New は新しいEngineを作成する
func New[T vector.Scalar](config Config) *Engine[T] {
	def := DefaultConfig()
	if config.NumWorkers <= 0 {
		config.NumWorkers = def.NumWorkers
	}
	if config.QueueDepth <= 0 {
		config.QueueDepth = def.QueueDepth
	}
	if config.ReplyTimeout <= 0 {
		config.ReplyTimeout = def.ReplyTimeout
	}

	var inj *fault.Injector
	if config.Faults != nil {
		inj = fault.New(*config.Faults)
	}

	keys := append(worker.CounterKeys(config.NumWorkers), CounterJobsStarted)
	return &Engine[T]{
		config:   config,
		metrics:  metrics.New(),
		counters: metrics.NewCounters(keys...),
		faults:   inj,
		log:      logger.Default.With("engine"),
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine[T]) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// Config は設定を返す
func (e *Engine[T]) Config() Config {
	return e.config
}

// Metrics はジョブ単位のメトリクスを返す
func (e *Engine[T]) Metrics() *metrics.Metrics {
	return e.metrics
}

// Counters はタスク単位のカウンタを返す
func (e *Engine[T]) Counters() *metrics.Counters {
	return e.counters
}

// Faults は障害インジェクタを返す（未設定なら nil）
func (e *Engine[T]) Faults() *fault.Injector {
	return e.faults
}

// Multiply は a×b をワーカープールで計算する
func (e *Engine[T]) Multiply(ctx context.Context, a, b *matrix.Matrix[T]) (*matrix.Matrix[T], error) {
	if err := matrix.CheckProduct(a, b); err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	start := time.Now()

	out, err := e.run(ctx, jobID, a, b)
	elapsed := time.Since(start)
	if err != nil {
		e.metrics.RecordFailure(elapsed)
		e.publish(events.NewJobFailedEvent(jobID, err))
		e.log.Warn("job %s failed after %v: %v", jobID, elapsed, err)
		return nil, err
	}

	e.metrics.RecordSuccess(elapsed, out.Rows()*out.Cols())
	e.publish(events.NewJobCompletedEvent(jobID, out.Rows(), out.Cols(), elapsed))
	e.log.Debug("job %s completed %dx%d in %v", jobID, out.Rows(), out.Cols(), elapsed)
	return out, nil
}

// run はプールを起動し、全タスクを発行して結果を組み立てる
func (e *Engine[T]) run(ctx context.Context, jobID string, a, b *matrix.Matrix[T]) (_ *matrix.Matrix[T], err error) {
	rows, cols := a.Rows(), b.Cols()

	pool := worker.NewPool[T](worker.PoolConfig{
		NumWorkers: e.config.NumWorkers,
		QueueDepth: e.config.QueueDepth,
		Label:      jobID,
	})
	pool.SetFaults(e.faults)
	pool.SetCounters(e.counters)
	pool.SetEventBus(e.eventBus)

	if err := pool.Start(ctx); err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}
	defer func() {
		if err != nil {
			pool.Abort()
			return
		}
		pool.Stop()
	}()

	_ = e.counters.Inc(CounterJobsStarted)
	e.publish(events.NewJobStartedEvent(jobID, rows, cols, pool.NumWorkers()))
	e.log.Debug("job %s started: %dx%d * %dx%d on %d workers",
		jobID, a.Rows(), a.Cols(), b.Rows(), b.Cols(), pool.NumWorkers())

	replies, err := e.dispatch(ctx, pool, a, b)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}

	buf, err := e.collect(ctx, replies)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}

	return matrix.New(buf, rows, cols)
}

// dispatch は出力セルごとにタスクを作成してプールに送る
// 返り値のチャネルは発行順に並ぶ
func (e *Engine[T]) dispatch(ctx context.Context, pool *worker.Pool[T], a, b *matrix.Matrix[T]) ([]<-chan worker.Reply[T], error) {
	rows, cols := a.Rows(), b.Cols()
	replies := make([]<-chan worker.Reply[T], 0, rows*cols)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			// 行・列はタスクごとに新しく確保し、ワーカー間で共有しない
			row, err := a.Row(i)
			if err != nil {
				return nil, err
			}
			col, err := b.Col(j)
			if err != nil {
				return nil, err
			}

			task, reply := worker.NewTask(i*cols+j, row, col)
			if err := pool.Dispatch(ctx, task); err != nil {
				return nil, err
			}
			replies = append(replies, reply)
		}
	}
	return replies, nil
}

// collect は発行順に応答を待ち、各結果をその index の位置に書き込む
func (e *Engine[T]) collect(ctx context.Context, replies []<-chan worker.Reply[T]) ([]T, error) {
	buf := make([]T, len(replies))

	timer := time.NewTimer(e.config.ReplyTimeout)
	defer timer.Stop()

	for seq, ch := range replies {
		timer.Reset(e.config.ReplyTimeout)

		var r worker.Reply[T]
		select {
		case got, ok := <-ch:
			if !ok {
				return nil, fmt.Errorf("%w: task %d: reply channel closed", worker.ErrReplyLost, seq)
			}
			r = got
		case <-timer.C:
			return nil, fmt.Errorf("%w: task %d: no reply within %v", worker.ErrReplyLost, seq, e.config.ReplyTimeout)
		case <-ctx.Done():
			return nil, fmt.Errorf("task %d: %w", seq, ctx.Err())
		}

		if r.Err != nil {
			return nil, fmt.Errorf("task %d on worker %d: %w", r.Index, r.Worker, r.Err)
		}
		if r.Index < 0 || r.Index >= len(buf) {
			return nil, fmt.Errorf("%w: task %d: reply index %d out of range", worker.ErrReplyLost, seq, r.Index)
		}
		buf[r.Index] = r.Value
	}
	return buf, nil
}

func (e *Engine[T]) publish(event events.Event) {
	if e.eventBus != nil {
		e.eventBus.Publish(event)
	}
}

// Multiply はデフォルト設定のEngineで a×b を計算する
func Multiply[T vector.Scalar](ctx context.Context, a, b *matrix.Matrix[T]) (*matrix.Matrix[T], error) {
	return New[T](DefaultConfig()).Multiply(ctx, a, b)
}

// MustMultiply は Multiply と同じだが、エラー時にパニックする
// テストや例示用の簡易版で、本番の呼び出しには Multiply を使う
func MustMultiply[T vector.Scalar](a, b *matrix.Matrix[T]) *matrix.Matrix[T] {
	c, err := Multiply(context.Background(), a, b)
	if err != nil {
		panic(fmt.Sprintf("matrix multiply error: %v", err))
	}
	return c
}

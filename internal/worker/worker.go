package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"matpool/internal/events"
	"matpool/internal/fault"
	"matpool/internal/logger"
	"matpool/internal/metrics"
	"matpool/internal/vector"
)

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	NumWorkers int    // ワーカー数（0以下でデフォルト）
	QueueDepth int    // ワーカーごとのキュー長（0以下でデフォルト）
	Label      string // ログとイベントに付けるジョブ識別子
}

const (
	defaultNumWorkers = 4
	defaultQueueDepth = 64

	// MaxWorkers は設定で受け付けるワーカー数の上限
	MaxWorkers = 1024
	// MaxQueueDepth は設定で受け付けるキュー長の上限
	MaxQueueDepth = 1 << 16
)

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers: defaultNumWorkers,
		QueueDepth: defaultQueueDepth,
	}
}

// Pool はワーカーごとにキューを持つゴルーチンプール
type Pool[T vector.Scalar] struct {
	numWorkers int
	label      string
	queues     []chan Task[T]

	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
	mu      sync.RWMutex

	// done は shutdown 開始時に閉じる。RLock を持ったまま待つ Dispatch を起こす
	done     chan struct{}
	doneOnce sync.Once

	faults   *fault.Injector
	counters *metrics.Counters
	eventBus *events.Bus
	log      *logger.Scoped
}

// NewPool は新しいワーカープールを作成する
func NewPool[T vector.Scalar](config PoolConfig) *Pool[T] {
	numWorkers := config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = defaultNumWorkers
	}
	depth := config.QueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}

	queues := make([]chan Task[T], numWorkers)
	for i := range queues {
		queues[i] = make(chan Task[T], depth)
	}

	component := "pool"
	if config.Label != "" {
		component = "pool " + config.Label
	}

	return &Pool[T]{
		numWorkers: numWorkers,
		label:      config.Label,
		queues:     queues,
		done:       make(chan struct{}),
		log:        logger.Default.With(component),
	}
}

// SetFaults は障害インジェクタを設定する（Start前に呼ぶ）
func (p *Pool[T]) SetFaults(inj *fault.Injector) {
	p.faults = inj
}

// SetCounters はタスクカウンタを設定する（Start前に呼ぶ）
func (p *Pool[T]) SetCounters(c *metrics.Counters) {
	p.counters = c
}

// SetEventBus はイベントバスを設定する（Start前に呼ぶ）
func (p *Pool[T]) SetEventBus(bus *events.Bus) {
	p.eventBus = bus
}

// Start はワーカーを起動する
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return errors.New("worker: pool already stopped")
	}
	if p.started {
		return nil
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	for i := range p.numWorkers {
		p.wg.Add(1)
		go p.worker(i, p.queues[i])
	}

	p.log.Debug("started %d workers", p.numWorkers)
	return nil
}

// worker は個々のワーカーゴルーチン
func (p *Pool[T]) worker(id int, queue <-chan Task[T]) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-queue:
			if !ok {
				return
			}
			p.run(id, task)
		}
	}
}

// run はタスクを1件処理して結果を返信する
func (p *Pool[T]) run(id int, task Task[T]) {
	p.count(WorkerCounter(id))

	injectPanic := false
	switch p.faults.Decide(task.Index) {
	case fault.KindDrop:
		p.count(CounterFailed)
		p.log.Warn("worker %d dropped reply for task %d", id, task.Index)
		p.publish(events.NewWorkerFaultEvent(p.label, id, task.Index, fault.KindDrop.String()))
		return
	case fault.KindDelay:
		select {
		case <-time.After(p.faults.Delay()):
		case <-p.ctx.Done():
		}
	case fault.KindPanic:
		injectPanic = true
	}

	reply := Reply[T]{Index: task.Index, Worker: id}
	reply.Value, reply.Err = compute(task, injectPanic)

	if reply.Err != nil {
		p.count(CounterFailed)
		p.log.Warn("worker %d failed task %d: %v", id, task.Index, reply.Err)
		kind := "error"
		if errors.Is(reply.Err, ErrReplyLost) {
			kind = fault.KindPanic.String()
		}
		p.publish(events.NewWorkerFaultEvent(p.label, id, task.Index, kind))
	} else {
		p.count(CounterCompleted)
	}

	if !task.respond(reply) {
		p.log.Warn("worker %d: reply for task %d discarded", id, task.Index)
	}
}

// compute は内積を計算する。パニックは ErrReplyLost に変換する
func compute[T vector.Scalar](task Task[T], injectPanic bool) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: worker panicked on task %d: %v", ErrReplyLost, task.Index, r)
		}
	}()

	if injectPanic {
		panic("injected fault")
	}
	return vector.DotProduct(task.Row, task.Col)
}

// Route は index のタスクを受け持つワーカー番号を返す
func (p *Pool[T]) Route(index int) int {
	return index % p.numWorkers
}

// Dispatch はタスクを担当ワーカーのキューに送る
// キューが満杯ならブロックする。届けられない場合は ErrTaskRouting を返す
func (p *Pool[T]) Dispatch(ctx context.Context, task Task[T]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started || p.stopped {
		return fmt.Errorf("%w: task %d: pool is not running", ErrTaskRouting, task.Index)
	}
	if task.Index < 0 {
		return fmt.Errorf("%w: negative task index %d", ErrTaskRouting, task.Index)
	}

	// 先にコンテキストをチェック
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: task %d: %w", ErrTaskRouting, task.Index, err)
	}
	if p.ctx.Err() != nil {
		return fmt.Errorf("%w: task %d: pool cancelled", ErrTaskRouting, task.Index)
	}

	select {
	case <-p.done:
		return fmt.Errorf("%w: task %d: pool shutting down", ErrTaskRouting, task.Index)
	case <-ctx.Done():
		return fmt.Errorf("%w: task %d: %w", ErrTaskRouting, task.Index, ctx.Err())
	case <-p.ctx.Done():
		return fmt.Errorf("%w: task %d: pool cancelled", ErrTaskRouting, task.Index)
	case p.queues[p.Route(task.Index)] <- task:
		p.count(CounterDispatched)
		return nil
	}
}

// Stop はキューを閉じ、残りのタスクを処理させてから全ワーカーの終了を待つ
func (p *Pool[T]) Stop() {
	p.shutdown(false)
}

// Abort はワーカーを即座に止め、キューに残ったタスクを破棄する
func (p *Pool[T]) Abort() {
	p.shutdown(true)
}

func (p *Pool[T]) shutdown(abort bool) {
	// 書き込みロックの前に閉じないと、満杯のキューで待つ Dispatch が RLock を離さない
	p.doneOnce.Do(func() { close(p.done) })

	p.mu.Lock()
	if !p.started || p.stopped {
		p.stopped = true
		p.mu.Unlock()
		return
	}
	p.stopped = true
	if abort {
		p.cancel()
	}
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()

	p.log.Debug("stopped (abort=%v)", abort)
}

// NumWorkers はワーカー数を返す
func (p *Pool[T]) NumWorkers() int {
	return p.numWorkers
}

// QueueSize は全キューに滞留しているタスク数を返す
func (p *Pool[T]) QueueSize() int {
	n := 0
	for _, q := range p.queues {
		n += len(q)
	}
	return n
}

func (p *Pool[T]) count(key string) {
	if p.counters == nil {
		return
	}
	if err := p.counters.Inc(key); err != nil {
		p.log.Debug("%v", err)
	}
}

func (p *Pool[T]) publish(event events.Event) {
	if p.eventBus != nil {
		p.eventBus.Publish(event)
	}
}

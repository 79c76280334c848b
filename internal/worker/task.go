package worker

import (
	"errors"
	"fmt"

	"matpool/internal/vector"
)

var (
	// ErrTaskRouting はタスクをワーカーに届けられなかった場合のエラー
	ErrTaskRouting = errors.New("worker: task routing failure")
	// ErrReplyLost はワーカーが結果を返さなかった（返せなかった）場合のエラー
	ErrReplyLost = errors.New("worker: reply lost")
)

// カウンタのキー
const (
	CounterDispatched = "tasks.dispatched"
	CounterCompleted  = "tasks.completed"
	CounterFailed     = "tasks.failed"
)

// WorkerCounter は worker i の処理タスク数カウンタのキーを返す
func WorkerCounter(i int) string {
	return fmt.Sprintf("worker.%d.tasks", i)
}

// CounterKeys は numWorkers 個のワーカーを持つプールが使う全キーを返す
func CounterKeys(numWorkers int) []string {
	keys := []string{CounterDispatched, CounterCompleted, CounterFailed}
	for i := range numWorkers {
		keys = append(keys, WorkerCounter(i))
	}
	return keys
}

// Reply はタスク1件の結果
type Reply[T vector.Scalar] struct {
	Index  int   // 出力バッファ上の位置
	Value  T     // 内積
	Worker int   // 計算したワーカー
	Err    error // 計算に失敗した場合のみ非nil
}

// Task は出力1セル分の計算単位
type Task[T vector.Scalar] struct {
	Index int
	Row   vector.Vector[T]
	Col   vector.Vector[T]

	reply chan Reply[T]
}

// NewTask はタスクと、その結果だけを受け取る専用チャネルを返す
func NewTask[T vector.Scalar](index int, row, col vector.Vector[T]) (Task[T], <-chan Reply[T]) {
	ch := make(chan Reply[T], 1)
	return Task[T]{Index: index, Row: row, Col: col, reply: ch}, ch
}

// respond は結果を送信する。既に送信済みなら false
func (t Task[T]) respond(r Reply[T]) bool {
	if t.reply == nil {
		return false
	}
	select {
	case t.reply <- r:
		return true
	default:
		return false
	}
}

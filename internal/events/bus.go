package events

import (
	"sync"
	"sync/atomic"
)

// defaultBufferSize は購読チャネルごとのデフォルトバッファ長
const defaultBufferSize = 100

// Bus は購読者ごとにバッファ付きチャネルを持つイベントバス
type Bus struct {
	mu         sync.RWMutex
	subs       map[<-chan Event]chan Event // 受信側 -> 送信側
	bufferSize int
	closed     bool
	dropped    atomic.Uint64
}

// NewBus はデフォルトのバッファ長でバスを作成する
func NewBus() *Bus {
	return NewBusWithBuffer(defaultBufferSize)
}

// NewBusWithBuffer は購読チャネルに size 件まで溜められるバスを作成する
func NewBusWithBuffer(size int) *Bus {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Bus{
		subs:       make(map[<-chan Event]chan Event),
		bufferSize: size,
	}
}

// Subscribe は新しい購読チャネルを返す（Close 後は閉じたチャネル）
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = ch
	return ch
}

// Unsubscribe は購読を解除してチャネルを閉じる
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(sub)
	}
}

// Publish は全購読者にイベントを配る。満杯の購読者には送らず Dropped に数える
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped は配送できなかったイベント数を返す
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// SubscriberCount は現在の購読者数を返す
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close は全購読チャネルを閉じ、以降の Subscribe には閉じたチャネルを返す
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for key, sub := range b.subs {
		close(sub)
		delete(b.subs, key)
	}
}

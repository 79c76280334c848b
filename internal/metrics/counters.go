package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// ErrUnknownCounter は登録されていないキーへの操作で返される
var ErrUnknownCounter = errors.New("metrics: unknown counter")

// Counters は固定キー集合のアトミックカウンタ
type Counters struct {
	keys []string
	data map[string]*atomic.Int64
}

// NewCounters は keys のカウンタを 0 で作成する（重複は無視）
func NewCounters(keys ...string) *Counters {
	c := &Counters{data: make(map[string]*atomic.Int64, len(keys))}
	for _, k := range keys {
		if _, dup := c.data[k]; dup {
			continue
		}
		c.data[k] = new(atomic.Int64)
		c.keys = append(c.keys, k)
	}
	sort.Strings(c.keys)
	return c
}

// Inc はカウンタを 1 増やす
func (c *Counters) Inc(key string) error {
	return c.Add(key, 1)
}

// Add はカウンタに delta を加える
func (c *Counters) Add(key string, delta int64) error {
	counter, ok := c.data[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCounter, key)
	}
	counter.Add(delta)
	return nil
}

// Get はカウンタの現在値を返す
func (c *Counters) Get(key string) (int64, error) {
	counter, ok := c.data[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCounter, key)
	}
	return counter.Load(), nil
}

// Keys は登録済みキーをソート順で返す
func (c *Counters) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Snapshot は全カウンタの値を返す
func (c *Counters) Snapshot() map[string]int64 {
	snap := make(map[string]int64, len(c.keys))
	for _, k := range c.keys {
		snap[k] = c.data[k].Load()
	}
	return snap
}

// String は "key: value" 行をキー順に返す
func (c *Counters) String() string {
	var sb strings.Builder
	for _, k := range c.keys {
		fmt.Fprintf(&sb, "%s: %d\n", k, c.data[k].Load())
	}
	return sb.String()
}

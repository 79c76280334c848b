package fault

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Kind は障害の種類を表す
type Kind int

const (
	KindNone Kind = iota
	KindPanic
	KindDelay
	KindDrop
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPanic:
		return "panic"
	case KindDelay:
		return "delay"
	case KindDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// ParseKind は文字列の障害タイプをパースする
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "panic":
		return KindPanic, nil
	case "delay":
		return KindDelay, nil
	case "drop":
		return KindDrop, nil
	default:
		return KindNone, fmt.Errorf("unknown fault kind: %s", s)
	}
}

// Config はInjectorの設定
type Config struct {
	Rate    float64       // 障害を起こすタスクの割合（0.0〜1.0）
	Seed    uint64        // 決定に使うシード
	Kinds   []Kind        // 有効な障害タイプ
	Delay   time.Duration // Delay障害の遅延時間
	Indices []int         // 常に障害対象とするタスクインデックス
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Rate:  0.01,
		Seed:  1,
		Kinds: []Kind{KindPanic, KindDelay, KindDrop},
		Delay: 10 * time.Millisecond,
	}
}

// Stats は障害注入の統計情報
type Stats struct {
	Total  uint64            `json:"total"`
	ByKind map[string]uint64 `json:"by_kind"`
}

// Injector はタスク単位で障害を決定する
type Injector struct {
	config  Config
	indices map[int]struct{}

	total  atomic.Uint64
	byKind [KindDrop + 1]atomic.Uint64
}

// New は新しいInjectorを作成する
func New(config Config) *Injector {
	if len(config.Kinds) == 0 {
		config.Kinds = []Kind{KindDrop}
	}
	indices := make(map[int]struct{}, len(config.Indices))
	for _, idx := range config.Indices {
		indices[idx] = struct{}{}
	}
	return &Injector{
		config:  config,
		indices: indices,
	}
}

// Decide は index のタスクに注入する障害を返す
// nil の Injector は常に KindNone を返す
func (i *Injector) Decide(index int) Kind {
	if i == nil {
		return KindNone
	}

	h := mix(i.config.Seed ^ uint64(index))
	_, forced := i.indices[index]
	// 上位53ビットを [0,1) の一様値として使う
	if !forced && float64(h>>11)/(1<<53) >= i.config.Rate {
		return KindNone
	}

	kind := i.config.Kinds[h%uint64(len(i.config.Kinds))]
	i.total.Add(1)
	if kind >= KindNone && kind <= KindDrop {
		i.byKind[kind].Add(1)
	}
	return kind
}

// Delay はDelay障害の遅延時間を返す
func (i *Injector) Delay() time.Duration {
	if i == nil {
		return 0
	}
	return i.config.Delay
}

// Config は設定を返す
func (i *Injector) Config() Config {
	return i.config
}

// Stats は注入統計を返す
func (i *Injector) Stats() Stats {
	if i == nil {
		return Stats{ByKind: map[string]uint64{}}
	}

	byKind := make(map[string]uint64)
	for k := KindPanic; k <= KindDrop; k++ {
		if n := i.byKind[k].Load(); n > 0 {
			byKind[k.String()] = n
		}
	}
	return Stats{
		Total:  i.total.Load(),
		ByKind: byKind,
	}
}

// mix は splitmix64 の最終化関数
func mix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

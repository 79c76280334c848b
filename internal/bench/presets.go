package bench

import (
	"slices"
	"time"

	"matpool/internal/fault"
)

// QuickPreset は動作確認用の小さなベンチを返す
func QuickPreset() Config {
	return Config{
		Name:         "quick",
		Description:  "Quick 16x16 verification",
		Rows:         16,
		Inner:        16,
		Cols:         16,
		Iterations:   3,
		Seed:         1,
		Workers:      4,
		ReplyTimeout: 5 * time.Second,
	}
}

// SquarePreset は中規模の正方行列ベンチを返す
func SquarePreset() Config {
	return Config{
		Name:         "square",
		Description:  "64x64 square products",
		Rows:         64,
		Inner:        64,
		Cols:         64,
		Iterations:   5,
		Seed:         1,
		Workers:      8,
		ReplyTimeout: 5 * time.Second,
	}
}

// WidePreset は内積が長い非正方行列のベンチを返す
// 少数のタスクがそれぞれ長いベクトルを扱う
func WidePreset() Config {
	return Config{
		Name:         "wide",
		Description:  "8x512 by 512x96 products with long dot products",
		Rows:         8,
		Inner:        512,
		Cols:         96,
		Iterations:   3,
		Seed:         1,
		Workers:      4,
		ReplyTimeout: 5 * time.Second,
	}
}

// StressPreset は高負荷ベンチを返す
// 1回の積で 40000 タスクを発行する
func StressPreset() Config {
	return Config{
		Name:         "stress",
		Description:  "200x200 products, 40000 tasks per call",
		Rows:         200,
		Inner:        200,
		Cols:         200,
		Iterations:   2,
		Seed:         1,
		Workers:      4,
		ReplyTimeout: 10 * time.Second,
	}
}

// FaultyPreset は障害注入付きのベンチを返す
// 失敗は許容されるが、誤った結果は許容されない
func FaultyPreset() Config {
	return Config{
		Name:         "faulty",
		Description:  "16x16 products with injected panics, delays and dropped replies",
		Rows:         16,
		Inner:        16,
		Cols:         16,
		Iterations:   8,
		Seed:         7,
		Workers:      4,
		ReplyTimeout: 200 * time.Millisecond,
		EnableFaults: true,
		Faults: fault.Config{
			Rate:  0.004,
			Seed:  7,
			Kinds: []fault.Kind{fault.KindPanic, fault.KindDelay, fault.KindDrop},
			Delay: 2 * time.Millisecond,
		},
	}
}

var presets = map[string]func() Config{
	"quick":  QuickPreset,
	"square": SquarePreset,
	"wide":   WidePreset,
	"stress": StressPreset,
	"faulty": FaultyPreset,
}

// GetPreset は名前からプリセットを取得する
func GetPreset(name string) (Config, bool) {
	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

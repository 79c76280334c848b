package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"matpool/internal/bench"
	"matpool/internal/engine"
	"matpool/internal/fault"
	"matpool/internal/logger"
	"matpool/internal/worker"

	"gopkg.in/yaml.v3"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Engine EngineConfig `yaml:"engine" json:"engine"`
	Log    LogConfig    `yaml:"log" json:"log"`
	Bench  BenchConfig  `yaml:"bench" json:"bench"`
	Fault  FaultConfig  `yaml:"fault" json:"fault"`
}

// EngineConfig はエンジン設定
type EngineConfig struct {
	Workers      int    `yaml:"workers" json:"workers"`
	QueueDepth   int    `yaml:"queue_depth" json:"queue_depth"`
	ReplyTimeout string `yaml:"reply_timeout" json:"reply_timeout"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// BenchConfig はベンチ設定
// Preset を指定した場合はその値を起点に他の項目で上書きする
type BenchConfig struct {
	Preset      string `yaml:"preset" json:"preset"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Rows        int    `yaml:"rows" json:"rows"`
	Inner       int    `yaml:"inner" json:"inner"`
	Cols        int    `yaml:"cols" json:"cols"`
	Iterations  int    `yaml:"iterations" json:"iterations"`
	Seed        uint64 `yaml:"seed" json:"seed"`
}

// FaultConfig は障害注入設定
type FaultConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Rate    float64  `yaml:"rate" json:"rate"`
	Seed    uint64   `yaml:"seed" json:"seed"`
	Kinds   []string `yaml:"kinds" json:"kinds"`
	Delay   string   `yaml:"delay" json:"delay"`
	Indices []int    `yaml:"indices" json:"indices"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	if f.Engine.Workers < 0 || f.Engine.Workers > worker.MaxWorkers {
		return fmt.Errorf("engine.workers must be between 0 and %d", worker.MaxWorkers)
	}
	if f.Engine.QueueDepth < 0 || f.Engine.QueueDepth > worker.MaxQueueDepth {
		return fmt.Errorf("engine.queue_depth must be between 0 and %d", worker.MaxQueueDepth)
	}

	b := f.Bench
	for name, v := range map[string]int{"rows": b.Rows, "inner": b.Inner, "cols": b.Cols} {
		if v < 0 || v > bench.MaxDimension {
			return fmt.Errorf("bench.%s must be between 0 and %d", name, bench.MaxDimension)
		}
	}
	if b.Iterations < 0 || b.Iterations > bench.MaxIterations {
		return fmt.Errorf("bench.iterations must be between 0 and %d", bench.MaxIterations)
	}
	if b.Preset != "" {
		if _, ok := bench.GetPreset(b.Preset); !ok {
			return fmt.Errorf("unknown bench.preset: %s", b.Preset)
		}
	}

	if f.Fault.Rate < 0 || f.Fault.Rate > 1 {
		return fmt.Errorf("fault.rate must be between 0 and 1")
	}
	for _, idx := range f.Fault.Indices {
		if idx < 0 {
			return fmt.Errorf("fault.indices must be non-negative, got %d", idx)
		}
	}

	if f.Log.Level != "" {
		if _, err := logger.ParseLevel(f.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}

	return nil
}

// LogLevel はログレベルを返す（未指定なら INFO）
func (f *FileConfig) LogLevel() (logger.Level, error) {
	return logger.ParseLevel(f.Log.Level)
}

// ToEngineConfig はFileConfigをengine.Configに変換する
func (f *FileConfig) ToEngineConfig() (engine.Config, error) {
	config := engine.DefaultConfig()

	if f.Engine.Workers > 0 {
		config.NumWorkers = f.Engine.Workers
	}
	if f.Engine.QueueDepth > 0 {
		config.QueueDepth = f.Engine.QueueDepth
	}
	if f.Engine.ReplyTimeout != "" {
		d, err := time.ParseDuration(f.Engine.ReplyTimeout)
		if err != nil {
			return config, fmt.Errorf("invalid reply timeout: %w", err)
		}
		config.ReplyTimeout = d
	}

	if f.Fault.Enabled {
		fc, err := f.toFaultConfig(fault.DefaultConfig())
		if err != nil {
			return config, err
		}
		config.Faults = &fc
	}

	return config, nil
}

// ToBenchConfig はFileConfigをbench.Configに変換する
func (f *FileConfig) ToBenchConfig() (bench.Config, error) {
	b := f.Bench

	config := bench.DefaultConfig()
	if b.Preset != "" {
		preset, ok := bench.GetPreset(b.Preset)
		if !ok {
			return config, fmt.Errorf("unknown preset: %s", b.Preset)
		}
		config = preset
	}

	if b.Name != "" {
		config.Name = b.Name
	}
	if b.Description != "" {
		config.Description = b.Description
	}
	if b.Rows > 0 {
		config.Rows = b.Rows
	}
	if b.Inner > 0 {
		config.Inner = b.Inner
	}
	if b.Cols > 0 {
		config.Cols = b.Cols
	}
	if b.Iterations > 0 {
		config.Iterations = b.Iterations
	}
	if b.Seed > 0 {
		config.Seed = b.Seed
	}

	// エンジン設定
	if f.Engine.Workers > 0 {
		config.Workers = f.Engine.Workers
	}
	if f.Engine.QueueDepth > 0 {
		config.QueueDepth = f.Engine.QueueDepth
	}
	if f.Engine.ReplyTimeout != "" {
		d, err := time.ParseDuration(f.Engine.ReplyTimeout)
		if err != nil {
			return config, fmt.Errorf("invalid reply timeout: %w", err)
		}
		config.ReplyTimeout = d
	}

	// 障害注入設定
	if f.Fault.Enabled {
		base := config.Faults
		if !config.EnableFaults {
			base = fault.DefaultConfig()
		}
		fc, err := f.toFaultConfig(base)
		if err != nil {
			return config, err
		}
		config.EnableFaults = true
		config.Faults = fc
	}

	return config, nil
}

// toFaultConfig は base を fault セクションの値で上書きする
func (f *FileConfig) toFaultConfig(base fault.Config) (fault.Config, error) {
	fc := f.Fault
	config := base

	if fc.Rate > 0 {
		config.Rate = fc.Rate
	}
	if fc.Seed > 0 {
		config.Seed = fc.Seed
	}
	if fc.Delay != "" {
		d, err := time.ParseDuration(fc.Delay)
		if err != nil {
			return config, fmt.Errorf("invalid fault delay: %w", err)
		}
		config.Delay = d
	}
	if len(fc.Kinds) > 0 {
		kinds, err := parseKinds(fc.Kinds)
		if err != nil {
			return config, err
		}
		config.Kinds = kinds
	}
	if len(fc.Indices) > 0 {
		config.Indices = append([]int(nil), fc.Indices...)
	}

	return config, nil
}

// parseKinds は文字列の障害タイプをパースする
func parseKinds(names []string) ([]fault.Kind, error) {
	kinds := make([]fault.Kind, 0, len(names))
	for _, name := range names {
		k, err := fault.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

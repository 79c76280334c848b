// Package main is the entry point for matpool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"matpool/internal/api"
	"matpool/internal/bench"
	"matpool/internal/config"
	"matpool/internal/engine"
	"matpool/internal/events"
	"matpool/internal/fault"
	"matpool/internal/logger"
	"matpool/internal/matrix"
)

var (
	version = "dev"
)

// options はコマンドライン引数
type options struct {
	configFile   string
	presetName   string
	workers      int
	iterations   int
	seed         uint64
	enableFaults bool
	logLevel     string
}

func main() {
	// フラグ定義
	var (
		opts        options
		demo        = flag.Bool("demo", false, "基本的な行列積のデモを実行")
		listPresets = flag.Bool("list-presets", false, "利用可能なプリセットを表示")
		showVersion = flag.Bool("version", false, "バージョンを表示")
		serverMode  = flag.Bool("server", false, "APIサーバーモードで起動")
		serverAddr  = flag.String("addr", ":8080", "サーバーアドレス (例: :8080, 0.0.0.0:3000)")
	)
	flag.StringVar(&opts.configFile, "config", "", "設定ファイルパス (YAML/JSON)")
	flag.StringVar(&opts.presetName, "preset", "", "ベンチプリセット名 (quick, square, wide, stress, faulty)")
	flag.IntVar(&opts.workers, "workers", 0, "ワーカー数")
	flag.IntVar(&opts.iterations, "iterations", 0, "ベンチの反復回数")
	flag.Uint64Var(&opts.seed, "seed", 0, "行列生成のシード")
	flag.BoolVar(&opts.enableFaults, "faults", false, "障害注入を有効化")
	flag.StringVar(&opts.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `matpool - Worker-Pool Parallel Matrix Multiplication

Usage:
  matpool [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # 行列積のデモ
  matpool --demo

  # プリセットベンチを実行
  matpool --preset stress

  # 設定ファイルから実行
  matpool --config bench.yaml

  # フラグでカスタマイズ
  matpool --preset square --workers 16 --iterations 10

  # プリセット一覧を表示
  matpool --list-presets

  # APIサーバーモードで起動
  matpool --server --addr :3000
`)
	}

	flag.Parse()

	// バージョン表示
	if *showVersion {
		fmt.Printf("matpool version %s\n", version)
		return
	}

	// プリセット一覧表示
	if *listPresets {
		printPresets()
		return
	}

	fileConfig, err := loadConfig(opts)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	// デモ
	if *demo {
		if err := runDemo(ctx); err != nil {
			logger.Error("", "デモ実行エラー: %v", err)
			os.Exit(1)
		}
		return
	}

	// APIサーバーモード
	if *serverMode {
		if err := runServer(ctx, *serverAddr, fileConfig, opts); err != nil {
			logger.Error("", "サーバーエラー: %v", err)
			os.Exit(1)
		}
		return
	}

	// ベンチ設定の決定
	benchConfig, err := buildBenchConfig(fileConfig, opts)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	// ベンチ実行
	ok, err := runBench(ctx, benchConfig)
	if err != nil {
		logger.Error("", "ベンチ実行エラー: %v", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(2)
	}
}

// loadConfig は設定ファイルを読み込み、ログレベルを反映する
// 設定ファイルがない場合は空の設定を返す
func loadConfig(opts options) (*config.FileConfig, error) {
	fileConfig := &config.FileConfig{}

	if opts.configFile != "" {
		loaded, err := config.LoadFile(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return nil, fmt.Errorf("設定検証エラー: %w", err)
		}
		fileConfig = loaded
	}

	// フラグ優先
	if opts.logLevel != "" {
		fileConfig.Log.Level = opts.logLevel
	}
	level, err := fileConfig.LogLevel()
	if err != nil {
		return nil, err
	}
	logger.Default.SetLevel(level)

	return fileConfig, nil
}

// buildBenchConfig はベンチ設定を構築する
func buildBenchConfig(fileConfig *config.FileConfig, opts options) (bench.Config, error) {
	var cfg bench.Config

	switch {
	case opts.presetName != "":
		// 1. プリセットから読み込み（設定ファイルのプリセットより優先）
		fileConfig.Bench.Preset = opts.presetName
		if _, ok := bench.GetPreset(opts.presetName); !ok {
			return cfg, fmt.Errorf("不明なプリセット: %s (利用可能: %v)", opts.presetName, bench.ListPresets())
		}
	case opts.configFile == "":
		// 2. デフォルト（quickプリセット）
		fileConfig.Bench.Preset = "quick"
	}

	cfg, err := fileConfig.ToBenchConfig()
	if err != nil {
		return cfg, fmt.Errorf("設定変換エラー: %w", err)
	}

	// フラグでオーバーライド
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.iterations > 0 {
		cfg.Iterations = opts.iterations
	}
	if opts.seed > 0 {
		cfg.Seed = opts.seed
	}
	if opts.enableFaults && !cfg.EnableFaults {
		cfg.EnableFaults = true
		cfg.Faults = fault.DefaultConfig()
	}

	return cfg, cfg.Validate()
}

// runBench はベンチを実行してレポートを表示する
func runBench(ctx context.Context, cfg bench.Config) (bool, error) {
	fmt.Println("matpool - Worker-Pool Parallel Matrix Multiplication")
	fmt.Println("====================================================")
	fmt.Printf("Bench: %s\n", cfg.Name)
	fmt.Printf("Shape: %s\n", cfg.Shape())
	fmt.Printf("Iterations: %d, Workers: %d\n", cfg.Iterations, cfg.Workers)
	fmt.Printf("Faults: %v\n", cfg.EnableFaults)
	fmt.Println("====================================================")
	fmt.Println()

	runner := bench.New(cfg)
	result, err := runner.Run(ctx)
	if err != nil {
		return false, err
	}

	// レポート出力
	fmt.Println(result.Report())

	return result.OK(), nil
}

// runDemo は基本的な行列積を表示する
func runDemo(ctx context.Context) error {
	fmt.Println("matpool demo")
	fmt.Println("============")

	// 2x3 * 3x2
	a := matrix.MustNew([]int{1, 2, 3, 4, 5, 6}, 2, 3)
	b := matrix.MustNew([]int{1, 2, 3, 4, 5, 6}, 3, 2)
	c, err := engine.Multiply(ctx, a, b)
	if err != nil {
		return err
	}
	fmt.Printf("%v * %v = %v\n", a, b, c)
	fmt.Printf("%#v\n", c)

	// 2x2 の自乗
	sq := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)
	fmt.Printf("%v * %v = %v\n", sq, sq, engine.MustMultiply(sq, sq))

	// 形状不一致
	_, err = engine.Multiply(ctx, a, sq)
	if !errors.Is(err, engine.ErrShapeMismatch) {
		return fmt.Errorf("expected shape mismatch, got %v", err)
	}
	fmt.Printf("%v * %v: %v\n", a, sq, err)

	return nil
}

// printPresets は利用可能なプリセットを表示する
func printPresets() {
	fmt.Println("利用可能なベンチプリセット:")
	fmt.Println()

	for _, name := range bench.ListPresets() {
		p, _ := bench.GetPreset(name)
		fmt.Printf("  %-10s %-16s %s\n", p.Name, p.Shape(), p.Description)
	}

	fmt.Println()
	fmt.Println("使用例: matpool --preset quick")
}

// runServer はAPIサーバーを起動する
func runServer(ctx context.Context, addr string, fileConfig *config.FileConfig, opts options) error {
	fmt.Println("matpool - API Server")
	fmt.Println("====================")
	fmt.Printf("Starting server on http://%s\n", addr)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	engineConfig, err := fileConfig.ToEngineConfig()
	if err != nil {
		return fmt.Errorf("設定変換エラー: %w", err)
	}
	if opts.workers > 0 {
		engineConfig.NumWorkers = opts.workers
	}

	bus := events.NewBus()
	defer bus.Close()

	server := api.NewServer(addr, engine.New[float64](engineConfig), bus)
	return server.Start(ctx)
}

// signalContext は SIGINT/SIGTERM でキャンセルされるコンテキストを返す
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			fmt.Println("\n中断シグナルを受信、終了中...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

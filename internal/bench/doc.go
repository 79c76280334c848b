// Package bench は並列行列積の検証ベンチマークを提供する。
//
// ベンチマークはシードから整数値のランダム行列を生成し、
// engine による並列積を matrix.MulSequential の結果と突き合わせる。
// 最初に成功した積はもう一度計算し、出力がビット単位で一致するかも確認する。
//
// # 機能
//
// - 反復ごとの並列積と逐次積の比較
// - 同一入力に対する再計算での決定性チェック
// - 障害注入（fault）を有効にした実行
// - 定義済みプリセット
// - 実行結果のレポート生成
//
// # プリセット
//
// - quick: 16x16 の短時間の動作確認
// - square: 64x64 の正方行列
// - wide: 細長い左辺と長い内積
// - stress: 200x200 の高負荷テスト
// - faulty: panic/delay/drop を注入した実行
//
// # 使用例
//
//	config, _ := bench.GetPreset("square")
//	runner := bench.New(config)
//	result, err := runner.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package bench

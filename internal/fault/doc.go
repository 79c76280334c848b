// Package fault はワーカー内部に障害を注入する機能を提供する。
//
// Injector はタスクごとに障害を起こすかを決定する。決定はシードとタスク
// インデックスのみから導かれるため、同じ入力に対して毎回同じタスクが
// 障害対象になる。ロックは取らない。
//
// # 障害タイプ
//
// - Panic: 内積計算中にパニックさせる
// - Delay: 応答前に遅延を注入する
// - Drop: 応答を送らずにタスクを破棄する
//
// # 使用例
//
//	config := fault.DefaultConfig()
//	config.Rate = 0.05
//	config.Kinds = []fault.Kind{fault.KindDrop}
//
//	inj := fault.New(config)
//	switch inj.Decide(task.Index) {
//	case fault.KindDrop:
//	    // 応答しない
//	}
package fault

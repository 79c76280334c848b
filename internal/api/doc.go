// Package api はHTTP/WebSocketによる外部インターフェースを提供する。
//
// # エンドポイント
//
//	GET  /api/status        エンジン設定とベンチの実行状態
//	POST /api/multiply      {"a":{"rows","cols","data"},"b":{...}} の積を返す
//	GET  /api/metrics       ジョブ単位のメトリクスとタスクカウンタ
//	GET  /api/presets       ベンチプリセットの一覧
//	POST /api/bench/start   {"preset":"quick"} でベンチをバックグラウンド実行
//	POST /api/bench/stop    実行中のベンチをキャンセル
//	GET  /api/bench/result  直近のベンチ結果
//	GET  /ws                イベントバスの内容をJSONで配信
//
// # エラー
//
// 入力の形状不正は 400、積の形状不一致は 422、応答の欠落やタイムアウトは 504、
// キャンセルやルーティング失敗は 503 を返す。本文は {"error": "..."} 形式。
package api

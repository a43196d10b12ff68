// Package chaos はモック銀行APIへの障害注入機能を提供する。
//
// InjectorはHTTPハンドラをラップし、対象パスごとに障害を注入する。
// ChaosMonkeyは一定間隔で対象を選んで障害を注入し、継続時間が過ぎると解除する。
// 負荷シナリオの失敗分類（接続失敗、5xx、タイムアウト）を手元で確認するために使う。
//
// # 障害タイプ
//
// - Outage: 503 Service Unavailable を返す
// - Stall: 障害が解除されるまで応答しない（クライアントのタイムアウトを誘発）
// - Delay: レスポンスに遅延を注入
//
// # 使用例
//
//	injector := chaos.NewInjector(bank.Handler(), nil)
//	config := chaos.DefaultConfig()
//	config.Interval = 3 * time.Second
//
//	monkey := chaos.New(injector, config)
//	monkey.Start(ctx)
//	defer monkey.Stop()
package chaos

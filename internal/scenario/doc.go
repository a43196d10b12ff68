// Package scenario は負荷シナリオの実行機能を提供する。
//
// エンジンは設定された人数の仮想ユーザーをspawn rateに従って起動し、
// browse/active/historyの重み付き配分でシナリオを割り当てる。
// 実行時間が経過するかコンテキストがキャンセルされると全ユーザーを停止し、
// リクエスト種別ごとの統計と失敗一覧をResultとして返す。
//
// # プリセットシナリオ
//
// - smoke: 5ユーザー、30秒（デフォルト）
// - baseline: 10ユーザー、2/s、1分
// - peak: 50ユーザー、5/s、3分
// - soak: 20ユーザー、2/s、15分
// - quick: 2ユーザー、10秒
//
// # 使用例
//
//	config := scenario.BaselineScenario()
//	config.Host = "http://localhost:8080"
//	engine := scenario.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package scenario

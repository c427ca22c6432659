// Package httpclient は通知サービスのHTTP APIを呼び出すクライアントを提供する。
//
// いいね・コメント・フォローを処理するドメインサービスが通知トリガーを送信する際や、
// CLIから開発用に通知を送る際に使用する。
package httpclient

// Package notification はリアルタイム通知の生成・配信・照会を提供する。
//
// いいね・コメント・フォローといったドメイン操作を受けて通知を永続化し、
// 受信者のすべてのライブ接続（WebSocket）へ即時に配信する。
// 接続していないユーザーは、次回の一覧取得で同じ通知を参照できる。
//
// 主な構成要素:
//   - Registry: ユーザーIDとライブ接続IDの対応表
//   - Gate: ライブ接続のハンドシェイク時の認証
//   - Factory: 通知の生成・永続化・付加情報の補完・配信依頼
//   - Dispatcher: 受信者の全接続へのファンアウト
//   - Query: 通知一覧、未読件数、既読化
//   - Hub: WebSocket接続の保持とフレーム送信
//   - Server: HTTP APIとライブ接続のエンドポイント
package notification

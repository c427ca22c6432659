// Package event はWebSocket上でクライアントへ配信するリアルタイムイベントの
// ワイヤーフォーマットを定義する。
//
// すべてのフレームはEnvelopeとしてJSONエンコードされ、Nameで種類を識別する。
package event

import (
	"encoding/json"
	"time"
)

// Name はクライアントへ配信するイベントの種類を表す。
type Name string

const (
	// NameNewNotification は新しい通知が作成されたことを表す。
	NameNewNotification Name = "new_notification"
	// NameConnected はライブ接続の確立が完了したことを表す。
	// 接続直後に一度だけ送信される。
	NameConnected Name = "connected"
)

// Envelope はWebSocketの1フレームに対応するイベントレコード。
type Envelope struct {
	// ID はフレームの一意識別子（UUID）。
	ID string `json:"id"`
	// Event はイベントの種類。
	Event Name `json:"event"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// SentAt はフレームを生成した日時。
	SentAt time.Time `json:"sent_at"`
}

// ConnectedData はconnectedイベントのデータ。
type ConnectedData struct {
	// ConnectionID はサーバーが割り当てた接続ID。
	ConnectionID string `json:"connection_id"`
	// UserID は認証済みユーザーのID。
	UserID string `json:"user_id"`
}

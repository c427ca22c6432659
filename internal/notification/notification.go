package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/swish/pkg/event"
)

var (
	// ErrMissingCredential はハンドシェイクで認証情報が提示されなかったことを表す。
	ErrMissingCredential = errors.New("認証情報がありません")
	// ErrInvalidCredential は認証情報の署名や有効期限が不正であることを表す。
	ErrInvalidCredential = errors.New("認証情報が無効です")
	// ErrPersistence は通知の永続化に失敗したことを表す。
	ErrPersistence = errors.New("通知の保存に失敗しました")
	// ErrInvalidTrigger は通知トリガーの内容が不正であることを表す。
	ErrInvalidTrigger = errors.New("通知トリガーが不正です")
	// ErrUserNotFound はユーザーディレクトリに該当ユーザーが存在しないことを表す。
	ErrUserNotFound = errors.New("ユーザーが見つかりません")
	// ErrConnectionClosed は配信先の接続がすでに閉じていることを表す。
	ErrConnectionClosed = errors.New("接続は閉じられています")
	// ErrSendBufferFull は接続の送信バッファが満杯であることを表す。
	ErrSendBufferFull = errors.New("送信バッファが満杯です")
)

// EventNewNotification は新着通知をライブ接続へ配信する際のイベント名。
const EventNewNotification = string(event.NameNewNotification)

// fallbackSenderName は送信者情報を取得できない場合の表示名。
const fallbackSenderName = "Someone"

// Type は通知の種類を表す。
type Type string

const (
	// TypeLike は投稿へのいいね。
	TypeLike Type = "like"
	// TypeComment は投稿へのコメント。
	TypeComment Type = "comment"
	// TypeFollow はフォロー。対象オブジェクトを持たない。
	TypeFollow Type = "follow"
)

// Valid は既知の通知種別かどうかを返す。
func (t Type) Valid() bool {
	switch t {
	case TypeLike, TypeComment, TypeFollow:
		return true
	default:
		return false
	}
}

// Compose は送信者の表示名から通知メッセージを組み立てる。
func (t Type) Compose(senderName string) string {
	switch t {
	case TypeLike:
		return fmt.Sprintf("%s liked your post", senderName)
	case TypeComment:
		return fmt.Sprintf("%s commented on your post", senderName)
	case TypeFollow:
		return fmt.Sprintf("%s started following you", senderName)
	default:
		return ""
	}
}

// Notification は永続化された通知レコード。
// 生成後に変化するのはReadのfalse→trueの遷移のみ。
type Notification struct {
	// ID はストアが割り当てる一意識別子。
	ID string
	// RecipientID は通知先のユーザーID。
	RecipientID string
	// SenderID は通知の発生元となったユーザーID。
	SenderID string
	// Type は通知の種類。
	Type Type
	// SubjectID は通知の対象オブジェクト（投稿IDなど）。フォローではnil。
	SubjectID *string
	// Message は表示用のメッセージ。
	Message string
	// Read は既読状態。
	Read bool
	// CreatedAt は通知の作成日時。
	CreatedAt time.Time
}

// Payload は送信者情報と相対時刻を補完した通知。
// ライブ配信と一覧取得の両方で同じ形を返す。
type Payload struct {
	// ID は通知の一意識別子。
	ID string `json:"id"`
	// RecipientID は通知先のユーザーID。
	RecipientID string `json:"recipient_id"`
	// SenderID は送信者のユーザーID。
	SenderID string `json:"sender_id"`
	// Type は通知の種類。
	Type Type `json:"type"`
	// SubjectID は通知の対象オブジェクトのID。
	SubjectID *string `json:"subject_id"`
	// Message は表示用のメッセージ。
	Message string `json:"message"`
	// Read は既読状態。
	Read bool `json:"read"`
	// CreatedAt は通知の作成日時。
	CreatedAt time.Time `json:"created_at"`
	// SenderName は送信者の現在の表示名。
	SenderName string `json:"sender_name"`
	// SenderAvatar は送信者の現在のアバターURL。
	SenderAvatar *string `json:"sender_avatar"`
	// TimeAgo は生成時点から見た相対時刻（例: "5m ago"）。
	TimeAgo string `json:"time_ago"`
}

// User は通知の付加情報に使うユーザーの表示情報。
type User struct {
	// ID はユーザーID。
	ID string
	// Name は表示名。
	Name string
	// AvatarURL はアバター画像のURL。未設定の場合はnil。
	AvatarURL *string
}

// Page は一覧取得の範囲。Limitが0の場合は全件を返す。
type Page struct {
	// Limit は取得件数の上限。
	Limit int
	// Offset は先頭から読み飛ばす件数。
	Offset int
}

// Store は通知レコードの永続化層。
type Store interface {
	// InsertNotification は通知を保存し、割り当てたIDを返す。
	InsertNotification(ctx context.Context, n Notification) (string, error)
	// FindByRecipient は受信者の通知を作成日時の降順で返す。
	FindByRecipient(ctx context.Context, userID string, page Page) ([]Notification, error)
	// CountUnread は受信者の未読通知の件数を返す。
	CountUnread(ctx context.Context, userID string) (int, error)
	// MarkRead は受信者が一致する場合に限り通知を既読にする。
	MarkRead(ctx context.Context, id, userID string) error
	// MarkAllRead は受信者の未読通知をすべて既読にする。
	MarkAllRead(ctx context.Context, userID string) error
}

// UserDirectory は送信者の表示情報を引くためのユーザー参照。
type UserDirectory interface {
	// FindUser はユーザーを返す。存在しない場合はErrUserNotFoundを返す。
	FindUser(ctx context.Context, id string) (*User, error)
}

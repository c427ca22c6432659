package notification

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Pusher は補完済みの通知を受信者のライブ接続へ配信する。
type Pusher interface {
	// Dispatch は受信者の全接続へ配信し、成功した接続数を返す。
	Dispatch(recipientID, eventName string, payload any) int
}

// Trigger は通知を発生させるドメイン操作の内容。
type Trigger struct {
	// RecipientID は通知先のユーザーID。
	RecipientID string
	// SenderID は操作を行ったユーザーID。
	SenderID string
	// Type は通知の種類。
	Type Type
	// SubjectID は操作の対象（投稿IDなど）。
	SubjectID *string
	// Message は表示用のメッセージ。空の場合は種類と送信者名から組み立てる。
	Message string
}

// Factory はドメイン操作から通知を生成し、永続化してから配信を依頼する。
type Factory struct {
	store    Store
	enricher *Enricher
	pusher   Pusher
	// clock は現在時刻を返す。テストで差し替える。
	clock func() time.Time
}

// NewFactory は新しいFactoryを生成する。
func NewFactory(store Store, enricher *Enricher, pusher Pusher) *Factory {
	return &Factory{
		store:    store,
		enricher: enricher,
		pusher:   pusher,
		clock:    time.Now,
	}
}

// Notify は通知を保存し、送信者情報を補完したうえで受信者のライブ接続へ配信する。
// 保存に失敗した場合はErrPersistenceを返し、配信は行わない。
// 送信者情報が取得できない場合でも通知の保存と配信は行う。
func (f *Factory) Notify(ctx context.Context, in Trigger) (*Payload, error) {
	if in.RecipientID == "" || in.SenderID == "" {
		return nil, fmt.Errorf("%w: recipient_idとsender_idは必須です", ErrInvalidTrigger)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: 未知の通知種別 %q", ErrInvalidTrigger, in.Type)
	}
	if in.SubjectID != nil && *in.SubjectID == "" {
		in.SubjectID = nil
	}

	// メッセージを組み立てる場合は、そのとき取得した送信者情報を配信ペイロードにも使う。
	var from *sender
	message := in.Message
	if message == "" {
		s := f.enricher.lookup(ctx, in.SenderID)
		from = &s
		message = in.Type.Compose(s.name)
	}

	n := Notification{
		RecipientID: in.RecipientID,
		SenderID:    in.SenderID,
		Type:        in.Type,
		SubjectID:   in.SubjectID,
		Message:     message,
		Read:        false,
		CreatedAt:   f.clock().UTC(),
	}

	id, err := f.store.InsertNotification(ctx, n)
	if err != nil {
		log.Printf("[Notification] 通知の保存に失敗: recipient=%s type=%s: %v", n.RecipientID, n.Type, err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	n.ID = id

	if from == nil {
		s := f.enricher.lookup(ctx, n.SenderID)
		from = &s
	}
	payload := f.enricher.build(n, *from, f.clock())

	delivered := f.pusher.Dispatch(n.RecipientID, EventNewNotification, payload)
	log.Printf("[Notification] 通知を作成しました: id=%s recipient=%s type=%s delivered=%d", n.ID, n.RecipientID, n.Type, delivered)

	return &payload, nil
}

package notification

import (
	"context"
	"errors"
	"log"
	"time"
)

// sender は付加情報として使う送信者の表示情報。
type sender struct {
	name   string
	avatar *string
}

// Enricher は通知に送信者の現在の表示情報と相対時刻を補完する。
// ライブ配信と一覧取得で同じフォールバック規則を適用するため、補完処理はここに集約する。
type Enricher struct {
	users UserDirectory
}

// NewEnricher は新しいEnricherを生成する。
func NewEnricher(users UserDirectory) *Enricher {
	return &Enricher{users: users}
}

// lookup は送信者の表示情報を取得する。
// 取得に失敗した場合や送信者が存在しない場合は "Someone" とnilのアバターを返す。
func (e *Enricher) lookup(ctx context.Context, senderID string) sender {
	u, err := e.users.FindUser(ctx, senderID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			log.Printf("[Notification] 送信者情報の取得に失敗: sender=%s: %v", senderID, err)
		}
		return sender{name: fallbackSenderName}
	}
	if u == nil || u.Name == "" {
		return sender{name: fallbackSenderName}
	}
	return sender{name: u.Name, avatar: u.AvatarURL}
}

// build は通知と送信者情報からPayloadを組み立てる。
func (e *Enricher) build(n Notification, s sender, now time.Time) Payload {
	return Payload{
		ID:           n.ID,
		RecipientID:  n.RecipientID,
		SenderID:     n.SenderID,
		Type:         n.Type,
		SubjectID:    n.SubjectID,
		Message:      n.Message,
		Read:         n.Read,
		CreatedAt:    n.CreatedAt,
		SenderName:   s.name,
		SenderAvatar: s.avatar,
		TimeAgo:      TimeAgo(n.CreatedAt, now),
	}
}

// Enrich は1件の通知を補完する。
func (e *Enricher) Enrich(ctx context.Context, n Notification, now time.Time) Payload {
	return e.build(n, e.lookup(ctx, n.SenderID), now)
}

// EnrichAll は複数の通知を補完する。同じ送信者の情報は1回だけ取得する。
func (e *Enricher) EnrichAll(ctx context.Context, ns []Notification, now time.Time) []Payload {
	senders := make(map[string]sender)
	payloads := make([]Payload, 0, len(ns))
	for _, n := range ns {
		s, ok := senders[n.SenderID]
		if !ok {
			s = e.lookup(ctx, n.SenderID)
			senders[n.SenderID] = s
		}
		payloads = append(payloads, e.build(n, s, now))
	}
	return payloads
}

package notification

import (
	"context"
	"fmt"
	"time"
)

// Query は通知の照会と既読管理を行う。
// 未読件数は常にストアのレコードから数え、別のカウンターは持たない。
type Query struct {
	store    Store
	enricher *Enricher
	clock    func() time.Time
}

// NewQuery は新しいQueryを生成する。
func NewQuery(store Store, enricher *Enricher) *Query {
	return &Query{store: store, enricher: enricher, clock: time.Now}
}

// List はユーザー宛ての通知を新しい順に返す。
// 送信者情報と相対時刻はリクエストごとに計算し直す。
func (q *Query) List(ctx context.Context, userID string, page Page) ([]Payload, error) {
	ns, err := q.store.FindByRecipient(ctx, userID, page)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	return q.enricher.EnrichAll(ctx, ns, q.clock()), nil
}

// UnreadCount はユーザー宛ての未読通知の件数を返す。
func (q *Query) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := q.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("未読件数の取得に失敗: %w", err)
	}
	return n, nil
}

// MarkRead は通知を既読にする。
// 他のユーザーの通知IDを指定した場合は何もしない（IDの存在を漏らさないためエラーにもしない）。
func (q *Query) MarkRead(ctx context.Context, userID, notificationID string) error {
	if err := q.store.MarkRead(ctx, notificationID, userID); err != nil {
		return fmt.Errorf("通知の既読処理に失敗: %w", err)
	}
	return nil
}

// MarkAllRead はユーザー宛ての未読通知をすべて既読にする。
func (q *Query) MarkAllRead(ctx context.Context, userID string) error {
	if err := q.store.MarkAllRead(ctx, userID); err != nil {
		return fmt.Errorf("全通知の既読処理に失敗: %w", err)
	}
	return nil
}

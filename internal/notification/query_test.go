package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seed はストアに通知を直接保存してIDを返すヘルパー関数。
func seed(t *testing.T, store *memoryStore, recipient, sender string, createdAt time.Time) string {
	t.Helper()
	id, err := store.InsertNotification(context.Background(), Notification{
		RecipientID: recipient,
		SenderID:    sender,
		Type:        TypeLike,
		Message:     "liked",
		CreatedAt:   createdAt,
	})
	require.NoError(t, err)
	return id
}

func newTestQuery(store *memoryStore, now time.Time) *Query {
	q := NewQuery(store, NewEnricher(store))
	q.clock = fixedClock(now)
	return q
}

// TestQueryList は通知一覧の取得を検証する。
func TestQueryList(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	t.Run("自分宛ての通知だけを新しい順に返すこと", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()
		store.addUser("user-a", "Alice", nil)
		old := seed(t, store, "user-b", "user-a", now.Add(-2*time.Hour))
		recent := seed(t, store, "user-b", "user-a", now.Add(-5*time.Minute))
		seed(t, store, "user-c", "user-a", now)

		got, err := newTestQuery(store, now).List(context.Background(), "user-b", Page{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, recent, got[0].ID)
		assert.Equal(t, "5m ago", got[0].TimeAgo)
		assert.Equal(t, old, got[1].ID)
		assert.Equal(t, "2h ago", got[1].TimeAgo)
		for _, p := range got {
			assert.Equal(t, "user-b", p.RecipientID)
			assert.Equal(t, "Alice", p.SenderName)
		}
	})

	t.Run("送信者の表示名は取得時点のものを使うこと", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()
		store.addUser("user-a", "Alice", nil)
		seed(t, store, "user-b", "user-a", now)
		q := newTestQuery(store, now)

		store.addUser("user-a", "Alice Renamed", strPtr("https://cdn.example.com/new.png"))
		got, err := q.List(context.Background(), "user-b", Page{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Alice Renamed", got[0].SenderName)
		assert.Equal(t, "https://cdn.example.com/new.png", *got[0].SenderAvatar)
	})

	t.Run("存在しない送信者はSomeoneとして返すこと", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()
		seed(t, store, "user-b", "ghost", now)

		got, err := newTestQuery(store, now).List(context.Background(), "user-b", Page{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Someone", got[0].SenderName)
		assert.Nil(t, got[0].SenderAvatar)
	})

	t.Run("通知がない場合は空のスライスを返すこと", func(t *testing.T) {
		t.Parallel()

		got, err := newTestQuery(newMemoryStore(), now).List(context.Background(), "user-b", Page{})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

// TestQueryReadState は既読管理と未読件数を検証する。
func TestQueryReadState(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	t.Run("既読にすると未読件数が減ること", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()
		first := seed(t, store, "user-b", "user-a", now)
		seed(t, store, "user-b", "user-a", now)
		q := newTestQuery(store, now)
		ctx := context.Background()

		count, err := q.UnreadCount(ctx, "user-b")
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		require.NoError(t, q.MarkRead(ctx, "user-b", first))
		count, err = q.UnreadCount(ctx, "user-b")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		require.NoError(t, q.MarkRead(ctx, "user-b", first))
		count, err = q.UnreadCount(ctx, "user-b")
		require.NoError(t, err)
		assert.Equal(t, 1, count, "既読化は冪等")
	})

	t.Run("他人の通知は既読にできないこと", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()
		victims := seed(t, store, "user-b", "user-a", now)
		q := newTestQuery(store, now)
		ctx := context.Background()

		require.NoError(t, q.MarkRead(ctx, "user-x", victims))

		count, err := q.UnreadCount(ctx, "user-b")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("全既読化で未読件数が0になり他人には影響しないこと", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()
		seed(t, store, "user-b", "user-a", now)
		seed(t, store, "user-b", "user-a", now)
		seed(t, store, "user-c", "user-a", now)
		q := newTestQuery(store, now)
		ctx := context.Background()

		require.NoError(t, q.MarkAllRead(ctx, "user-b"))

		count, err := q.UnreadCount(ctx, "user-b")
		require.NoError(t, err)
		assert.Zero(t, count)

		count, err = q.UnreadCount(ctx, "user-c")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		got, err := q.List(ctx, "user-b", Page{})
		require.NoError(t, err)
		for _, p := range got {
			assert.True(t, p.Read)
		}
	})
}

package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFactory はインメモリストアとspyPusherでFactoryを生成する。
func newTestFactory(store *memoryStore, pusher Pusher, now time.Time) *Factory {
	f := NewFactory(store, NewEnricher(store), pusher)
	f.clock = fixedClock(now)
	return f
}

// TestFactoryNotify は通知の生成と配信を検証する。
func TestFactoryNotify(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	t.Run("保存した通知に送信者情報を補完して配信すること", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()
		store.addUser("user-a", "Alice", strPtr("https://cdn.example.com/a.png"))
		pusher := &spyPusher{}

		payload, err := newTestFactory(store, pusher, now).Notify(context.Background(), Trigger{
			RecipientID: "user-b",
			SenderID:    "user-a",
			Type:        TypeLike,
			SubjectID:   strPtr("post-1"),
			Message:     "Alice liked your post",
		})
		require.NoError(t, err)

		assert.Equal(t, "n-1", payload.ID)
		assert.Equal(t, "user-b", payload.RecipientID)
		assert.Equal(t, "user-a", payload.SenderID)
		assert.Equal(t, TypeLike, payload.Type)
		assert.Equal(t, "post-1", *payload.SubjectID)
		assert.Equal(t, "Alice liked your post", payload.Message)
		assert.False(t, payload.Read)
		assert.Equal(t, "Alice", payload.SenderName)
		assert.Equal(t, "https://cdn.example.com/a.png", *payload.SenderAvatar)
		assert.Equal(t, "Just now", payload.TimeAgo)
		assert.True(t, now.Equal(payload.CreatedAt))

		require.Len(t, pusher.calls, 1)
		assert.Equal(t, "user-b", pusher.calls[0].connID)
		assert.Equal(t, EventNewNotification, pusher.calls[0].eventName)
		assert.Equal(t, *payload, pusher.calls[0].payload)
	})

	t.Run("配信時点で通知が保存済みであること", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()
		var storedAtDispatch int
		pusher := &spyPusher{before: func() { storedAtDispatch = store.count() }}

		_, err := newTestFactory(store, pusher, now).Notify(context.Background(), Trigger{
			RecipientID: "user-b", SenderID: "user-a", Type: TypeFollow,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, storedAtDispatch)
	})

	t.Run("保存に失敗した場合はErrPersistenceを返し配信しないこと", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()
		store.insertErr = errors.New("disk full")
		pusher := &spyPusher{}

		payload, err := newTestFactory(store, pusher, now).Notify(context.Background(), Trigger{
			RecipientID: "user-b", SenderID: "user-a", Type: TypeComment,
		})
		assert.ErrorIs(t, err, ErrPersistence)
		assert.Nil(t, payload)
		assert.Empty(t, pusher.calls)
	})

	t.Run("送信者が見つからない場合はSomeoneとして配信すること", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()
		pusher := &spyPusher{}

		payload, err := newTestFactory(store, pusher, now).Notify(context.Background(), Trigger{
			RecipientID: "user-b", SenderID: "deleted-user", Type: TypeFollow,
		})
		require.NoError(t, err)
		assert.Equal(t, "Someone", payload.SenderName)
		assert.Nil(t, payload.SenderAvatar)
		assert.Equal(t, "Someone started following you", payload.Message)
		assert.Len(t, pusher.calls, 1)
	})

	t.Run("ユーザー参照が失敗してもSomeoneとして配信すること", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()
		store.userErr = errors.New("connection refused")
		pusher := &spyPusher{}

		payload, err := newTestFactory(store, pusher, now).Notify(context.Background(), Trigger{
			RecipientID: "user-b", SenderID: "user-a", Type: TypeLike, Message: "hello",
		})
		require.NoError(t, err)
		assert.Equal(t, "Someone", payload.SenderName)
		assert.Equal(t, "hello", payload.Message)
	})

	t.Run("メッセージ省略時は種類と送信者名から組み立てること", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			typ  Type
			want string
		}{
			{typ: TypeLike, want: "Alice liked your post"},
			{typ: TypeComment, want: "Alice commented on your post"},
			{typ: TypeFollow, want: "Alice started following you"},
		}
		for _, tt := range tests {
			store := newMemoryStore()
			store.addUser("user-a", "Alice", nil)

			payload, err := newTestFactory(store, &spyPusher{}, now).Notify(context.Background(), Trigger{
				RecipientID: "user-b", SenderID: "user-a", Type: tt.typ,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, payload.Message)
		}
	})

	t.Run("空のsubject_idはnilとして保存すること", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()

		payload, err := newTestFactory(store, &spyPusher{}, now).Notify(context.Background(), Trigger{
			RecipientID: "user-b", SenderID: "user-a", Type: TypeFollow, SubjectID: strPtr(""),
		})
		require.NoError(t, err)
		assert.Nil(t, payload.SubjectID)
	})

	t.Run("不正なトリガーはErrInvalidTriggerを返し保存しないこと", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name string
			in   Trigger
		}{
			{name: "受信者なし", in: Trigger{SenderID: "user-a", Type: TypeLike}},
			{name: "送信者なし", in: Trigger{RecipientID: "user-b", Type: TypeLike}},
			{name: "未知の種類", in: Trigger{RecipientID: "user-b", SenderID: "user-a", Type: "poke"}},
		}
		for _, tt := range tests {
			store := newMemoryStore()
			pusher := &spyPusher{}

			_, err := newTestFactory(store, pusher, now).Notify(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrInvalidTrigger, tt.name)
			assert.Zero(t, store.count(), tt.name)
			assert.Empty(t, pusher.calls, tt.name)
		}
	})
}

// TestFactoryWithDispatcher はRegistryとTransportを通した配信を検証する。
func TestFactoryWithDispatcher(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register("user-b", "phone")
	registry.Register("user-b", "laptop")
	registry.Register("user-a", "desktop")
	transport := &spyTransport{}
	store := newMemoryStore()
	store.addUser("user-a", "Alice", nil)

	f := newTestFactory(store, NewDispatcher(registry, transport), time.Now())
	payload, err := f.Notify(context.Background(), Trigger{
		RecipientID: "user-b", SenderID: "user-a", Type: TypeLike, SubjectID: strPtr("post-1"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"laptop", "phone"}, transport.connIDs())
	for _, s := range transport.sent {
		assert.Equal(t, *payload, s.payload)
	}
}

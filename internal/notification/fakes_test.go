package notification

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// memoryStore はテスト用のインメモリStoreとUserDirectory。
type memoryStore struct {
	mu        sync.Mutex
	seq       int
	records   []Notification
	users     map[string]User
	insertErr error
	userErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[string]User)}
}

func (m *memoryStore) addUser(id, name string, avatar *string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = User{ID: id, Name: name, AvatarURL: avatar}
}

func (m *memoryStore) InsertNotification(_ context.Context, n Notification) (string, error) {
	m.mu.Lock()
	if m.insertErr != nil {
		m.mu.Unlock()
		return "", m.insertErr
	}
	m.seq++
	n.ID = fmt.Sprintf("n-%d", m.seq)
	n.Read = false
	m.records = append(m.records, n)
	m.mu.Unlock()
	return n.ID, nil
}

func (m *memoryStore) FindByRecipient(_ context.Context, userID string, page Page) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Notification
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].RecipientID == userID {
			out = append(out, m.records[i])
		}
	}
	slices.SortStableFunc(out, func(a, b Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if page.Offset >= len(out) {
		return []Notification{}, nil
	}
	out = out[page.Offset:]
	if page.Limit > 0 && page.Limit < len(out) {
		out = out[:page.Limit]
	}
	return out, nil
}

func (m *memoryStore) CountUnread(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, n := range m.records {
		if n.RecipientID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) MarkRead(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].ID == id && m.records[i].RecipientID == userID {
			m.records[i].Read = true
		}
	}
	return nil
}

func (m *memoryStore) MarkAllRead(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].RecipientID == userID {
			m.records[i].Read = true
		}
	}
	return nil
}

func (m *memoryStore) FindUser(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.userErr != nil {
		return nil, m.userErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// sent は送信記録。
type sent struct {
	connID    string
	eventName string
	payload   any
}

// spyTransport は送信を記録するTransport。failは接続IDごとに返すエラー。
type spyTransport struct {
	mu     sync.Mutex
	sent   []sent
	fail   map[string]error
	panics map[string]bool
}

func (s *spyTransport) Send(connectionID, eventName string, payload any) error {
	if s.panics[connectionID] {
		panic("transport exploded")
	}
	if err := s.fail[connectionID]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sent{connID: connectionID, eventName: eventName, payload: payload})
	return nil
}

func (s *spyTransport) connIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sent))
	for _, r := range s.sent {
		ids = append(ids, r.connID)
	}
	slices.Sort(ids)
	return ids
}

// spyPusher はDispatch呼び出しを記録するPusher。
type spyPusher struct {
	mu    sync.Mutex
	calls []sent
	// before はDispatch時点で観測したい処理。
	before func()
}

func (p *spyPusher) Dispatch(recipientID, eventName string, payload any) int {
	if p.before != nil {
		p.before()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, sent{connID: recipientID, eventName: eventName, payload: payload})
	return 1
}

// fakeVerifier はトークンをそのままユーザーIDとして扱うTokenVerifier。
// "bad" で始まるトークンは不正とする。
type fakeVerifier struct{}

var errBadToken = errors.New("署名が不正です")

func (fakeVerifier) Verify(token string) (string, error) {
	if len(token) >= 3 && token[:3] == "bad" {
		return "", errBadToken
	}
	if token == "anonymous" {
		return "", nil
	}
	return token, nil
}

// fixedClock は固定時刻を返す。
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(s string) *string { return &s }

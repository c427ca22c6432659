package notification

import (
	"slices"
	"sync"
)

// Registry はユーザーIDとライブ接続IDの対応を保持する。
// 1人のユーザーは複数の端末やタブから同時に接続できる。
// 接続集合が空になったユーザーはエントリごと削除する。
type Registry struct {
	mu sync.RWMutex
	// conns はユーザーIDごとの接続ID集合。
	conns map[string]map[string]struct{}
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[string]struct{})}
}

// Register はユーザーの接続集合に接続IDを追加する。同じ組で複数回呼んでも結果は変わらない。
func (r *Registry) Register(ownerID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[ownerID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[ownerID] = set
	}
	set[connectionID] = struct{}{}
}

// Unregister はユーザーの接続集合から接続IDを取り除く。
// 登録されていない組に対しては何もしない。
func (r *Registry) Unregister(ownerID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[ownerID]
	if !ok {
		return
	}
	delete(set, connectionID)
	if len(set) == 0 {
		delete(r.conns, ownerID)
	}
}

// ConnectionsFor はユーザーの接続IDのスナップショットを返す。
// 戻り値はRegistryと共有しないため、走査中に登録解除が起きても安全。
func (r *Registry) ConnectionsFor(ownerID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.conns[ownerID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// IsOnline はユーザーが1つ以上のライブ接続を持つかを返す。
func (r *Registry) IsOnline(ownerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.conns[ownerID]
	return ok
}

// OnlineUsers は接続中のユーザー数を返す。
func (r *Registry) OnlineUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}

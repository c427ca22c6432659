package notification

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// Transport は1つのライブ接続へイベントを送信する。
type Transport interface {
	// Send は接続IDで示される接続へイベントを送信する。
	Send(connectionID, eventName string, payload any) error
}

// Dispatcher は受信者のすべてのライブ接続へペイロードを配信する。
type Dispatcher struct {
	registry  *Registry
	transport Transport
}

// NewDispatcher は新しいDispatcherを生成する。
func NewDispatcher(registry *Registry, transport Transport) *Dispatcher {
	return &Dispatcher{registry: registry, transport: transport}
}

// Dispatch は受信者の接続ごとに独立して送信を試み、すべての試行が終わってから戻る。
// 個々の接続への送信失敗は記録して破棄し、他の接続への配信は継続する。
// 受信者が接続していない場合は何もせず0を返す。戻り値は送信に成功した接続数。
func (d *Dispatcher) Dispatch(recipientID, eventName string, payload any) int {
	targets := d.registry.ConnectionsFor(recipientID)
	if len(targets) == 0 {
		return 0
	}

	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
	)
	for _, connID := range targets {
		wg.Go(func() {
			if err := d.deliver(connID, eventName, payload); err != nil {
				log.Printf("[Dispatcher] 配信に失敗: user=%s conn=%s event=%s: %v", recipientID, connID, eventName, err)
				return
			}
			delivered.Add(1)
		})
	}
	wg.Wait()

	return int(delivered.Load())
}

// deliver は1接続への送信を行う。Transport内のパニックはエラーとして扱う。
func (d *Dispatcher) deliver(connID, eventName string, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("送信中にパニック: %v", r)
		}
	}()
	return d.transport.Send(connID, eventName, payload)
}

package notification

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nao1215/swish/pkg/event"
)

const (
	// writeWait は1フレームの書き込みに許す時間。
	writeWait = 10 * time.Second
	// pongWait はクライアントからのpongを待つ時間。
	pongWait = 60 * time.Second
	// pingPeriod はpingの送信間隔。pongWaitより短くする。
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize はクライアントから受け付けるフレームの最大サイズ。
	maxMessageSize = 4096
)

// client は1本のWebSocket接続。
// 書き込みはwritePumpだけが行い、Sendは送信バッファへの投入のみを行う。
type client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func newClient(id, userID string, conn *websocket.Conn, buffer int) *client {
	return &client{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// close は書き込みループを停止させる。複数回呼んでもよい。
func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// writePump は送信バッファのフレームを順に書き込み、定期的にpingを送る。
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("[Hub] 書き込みに失敗: conn=%s: %v", c.id, err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// readPump はクライアントが切断するまで受信を続ける。
// 通知はサーバーからの一方向配信のため、受信したフレームは読み捨てる。
func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[Hub] 予期しない切断: conn=%s: %v", c.id, err)
			}
			return
		}
	}
}

// Hub は接続IDとWebSocket接続の対応を保持し、Transportとして送信を行う。
// Close後はattachを受け付けない。
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

// NewHub は新しいHubを生成する。
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// attach は接続を登録する。Close済みの場合はErrConnectionClosedを返す。
func (h *Hub) attach(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrConnectionClosed
	}
	h.clients[c.id] = c
	return nil
}

func (h *Hub) detach(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// Len は保持している接続数を返す。
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send はイベントをフレームにエンコードし、接続の送信バッファへ投入する。
// 書き込みの完了は待たない。接続が閉じている場合はErrConnectionClosed、
// バッファが満杯の場合はErrSendBufferFullを返す。
func (h *Hub) Send(connectionID, eventName string, payload any) error {
	h.mu.RLock()
	c, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return ErrConnectionClosed
	}

	frame, err := event.Encode(event.Name(eventName), payload)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close はすべての接続を閉じる。サーバー停止時に呼び出す。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, c := range h.clients {
		c.close()
	}
}

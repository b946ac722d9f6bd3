package stubapp

import (
	"net/http"
	"sync"
	"time"

	applog "github.com/darkkaiser/pops-connect/pkg/log"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

const (
	// hubWriteTimeout 클라이언트 한 명에게 메시지를 쓰는 최대 시간
	hubWriteTimeout = 5 * time.Second

	// maxInboundMessageSize 클라이언트가 보내는 메시지는 ping 정도이므로 작게 제한합니다.
	maxInboundMessageSize = 4 << 10
)

var pongMessage = []byte(`{"type":"pong"}`)

// hubClient 연결된 실시간 채널 클라이언트 하나입니다.
type hubClient struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	once    sync.Once
}

func (c *hubClient) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *hubClient) close() {
	c.once.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
}

// hub /ws에 연결된 클라이언트를 관리하고 이벤트를 모두에게 보냅니다.
type hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]struct{}
	closed  bool

	wg sync.WaitGroup
}

func newHub() *hub {
	return &hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,

			// 출처 제한은 CORS 설정과 같은 수준으로 두고, 개발용 서버이므로 모두 허용합니다.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
	}
}

// serve 연결을 업그레이드하고 연결이 끊길 때까지 읽기 루프를 돕니다.
func (h *hub) serve(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade가 이미 에러 응답을 썼습니다.
		return nil
	}

	c := &hubClient{conn: conn}
	if !h.add(c) {
		c.close()
		return nil
	}
	defer h.remove(c)

	conn.SetReadLimit(maxInboundMessageSize)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}

		if gjson.GetBytes(data, "type").String() == "ping" {
			if err := c.write(pongMessage); err != nil {
				return nil
			}
			continue
		}

		applog.WithComponentAndFields(component, applog.Fields{
			"bytes": len(data),
		}).Debug("처리하지 않는 클라이언트 메시지를 무시합니다")
	}
}

func (h *hub) add(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *hub) remove(c *hubClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	c.close()
	if ok {
		h.wg.Done()
	}
}

func (h *hub) snapshot() []*hubClient {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// broadcast 모든 클라이언트에게 data를 보냅니다. 쓰기에 실패한 클라이언트는 연결을 끊습니다.
func (h *hub) broadcast(data []byte) int {
	sent := 0
	for _, c := range h.snapshot() {
		if err := c.write(data); err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"error": err,
			}).Debug("이벤트 전송 실패: 연결을 끊습니다")
			c.close()
			continue
		}
		sent++
	}
	return sent
}

// count 연결된 클라이언트 수
func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// dropAll 모든 연결을 끊습니다. 새 연결은 계속 받습니다.
func (h *hub) dropAll() {
	for _, c := range h.snapshot() {
		c.close()
	}
}

// close 모든 연결을 끊고 읽기 루프가 끝날 때까지 기다립니다. 이후 연결은 즉시 끊습니다.
func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.dropAll()
	h.wg.Wait()
}

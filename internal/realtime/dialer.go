package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"github.com/gorilla/websocket"
)

// Conn 양방향 메시지 연결입니다.
//
// ReadMessage는 한 고루틴에서만, WriteMessage는 여러 고루틴에서 호출될 수 있습니다.
// Close는 여러 번 호출해도 안전해야 하며, 대기 중인 ReadMessage를 깨워야 합니다.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer url로 연결을 엽니다.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var (
	_ Dialer = (*WebSocketDialer)(nil)
	_ Conn   = (*wsConn)(nil)
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 5 * time.Second
)

// WebSocketDialer gorilla/websocket으로 연결하는 Dialer입니다.
type WebSocketDialer struct {
	dialer websocket.Dialer
	header http.Header
}

// NewWebSocketDialer WebSocketDialer를 생성합니다. header는 핸드셰이크 요청에 추가됩니다.
func NewWebSocketDialer(header http.Header) *WebSocketDialer {
	return &WebSocketDialer{
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		header: header,
	}
}

func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, apperrors.Wrapf(err, apperrors.HTTP, "실시간 채널 핸드셰이크가 HTTP %d로 거부되었습니다", resp.StatusCode)
		}
		return nil, apperrors.Wrap(err, apperrors.Network, "실시간 채널에 연결할 수 없습니다")
	}
	return &wsConn{conn: conn}, nil
}

// wsConn gorilla 연결은 동시 쓰기를 허용하지 않으므로 쓰기를 직렬화합니다.
type wsConn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var (
	errConnClosed = errors.New("fake: connection closed")
	errDial       = errors.New("fake: connection refused")
)

// fakeConn 메모리 안에서 동작하는 Conn입니다. push로 수신 메시지를 넣고, Close로 연결 끊김을 흉내냅니다.
type fakeConn struct {
	msgs   chan []byte
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	writes []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		msgs:   make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case b := <-c.msgs:
		return b, nil
	case <-c.closed:
		return nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, string(data))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(msg string) {
	c.msgs <- []byte(msg)
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

// fakeDialer script 순서대로 연결 결과를 돌려주고, script를 다 쓰면 fallback을 돌려줍니다.
type fakeDialer struct {
	mu       sync.Mutex
	script   []error
	fallback error
	dials    []time.Time
	urls     []string

	conns chan *fakeConn
}

func newFakeDialer(script ...error) *fakeDialer {
	return &fakeDialer{
		script: script,
		conns:  make(chan *fakeConn, 16),
	}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	n := len(d.dials)
	d.dials = append(d.dials, time.Now())
	d.urls = append(d.urls, url)
	err := d.fallback
	if n < len(d.script) {
		err = d.script[n]
	}
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) setFallback(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = err
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func (d *fakeDialer) dialTimes() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.dials...)
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()

	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("연결이 열리지 않았습니다")
		return nil
	}
}

type fakeObserver struct {
	mu         sync.Mutex
	reconnects int
	connected  map[string]bool
}

func (o *fakeObserver) Reconnect(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reconnects++
}

func (o *fakeObserver) SetConnected(app string, connected bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.connected == nil {
		o.connected = make(map[string]bool)
	}
	o.connected[app] = connected
}

func (o *fakeObserver) snapshot() (int, map[string]bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m := make(map[string]bool, len(o.connected))
	for k, v := range o.connected {
		m[k] = v
	}
	return o.reconnects, m
}

// recorder 리스너 호출 기록
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) listener(name string) Listener {
	return func(e Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, name+":"+string(e.Type))
	}
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

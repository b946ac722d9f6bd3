// Package realtime 애플리케이션별 실시간 이벤트 채널(웹소켓)을 관리합니다.
//
// 채널은 첫 리스너가 등록될 때 열리고 마지막 리스너가 떠날 때 닫힙니다.
// 연결이 끊기면 ReconnectDelay * 시도 횟수만큼 기다린 뒤 다시 연결하며,
// 연결에 성공하면 시도 횟수는 0으로 돌아가고, 연속 실패가 MaxReconnectAttempts에 도달하면
// 새 리스너가 올 때까지 끊긴 상태로 남습니다.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/darkkaiser/pops-connect/internal/suite"
	applog "github.com/darkkaiser/pops-connect/pkg/log"
)

// component 로깅용 컴포넌트 이름
const component = "realtime.manager"

const (
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = time.Second
)

// Listener 이벤트를 받는 콜백입니다. 채널 고루틴에서 동기적으로 호출되므로 오래 블로킹하면 안 됩니다.
type Listener func(Event)

// Observer 연결 상태 변화를 관찰합니다. *metrics.Collectors가 이 인터페이스를 만족합니다.
type Observer interface {
	Reconnect(app string)
	SetConnected(app string, connected bool)
}

type noopObserver struct{}

func (noopObserver) Reconnect(string)          {}
func (noopObserver) SetConnected(string, bool) {}

// Option Manager 생성 옵션입니다.
type Option func(*Manager)

// WithDialer 연결 방식을 바꿉니다.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dialer = d
		}
	}
}

// WithHeartbeatInterval 하트비트 주기를 바꿉니다.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.heartbeatInterval = d
		}
	}
}

// WithMaxReconnectAttempts 연속 재연결 시도 한도를 바꿉니다. 0이면 재연결하지 않습니다.
func WithMaxReconnectAttempts(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.maxReconnectAttempts = n
		}
	}
}

// WithReconnectDelay 재연결 기본 지연 시간을 바꿉니다.
func WithReconnectDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.reconnectDelay = d
		}
	}
}

// WithObserver 연결 상태 관찰자를 지정합니다.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// Manager 애플리케이션별 실시간 채널과 리스너를 관리합니다. 여러 고루틴에서 동시에 사용해도 안전합니다.
type Manager struct {
	registry *suite.Registry
	dialer   Dialer
	observer Observer

	heartbeatInterval    time.Duration
	maxReconnectAttempts int
	reconnectDelay       time.Duration

	mu       sync.Mutex
	channels map[suite.ID]*channel
	nextID   uint64
	closed   bool

	wg sync.WaitGroup
}

// channel 애플리케이션 하나의 연결 기록입니다. 모든 필드는 Manager.mu로 보호됩니다.
type channel struct {
	app suite.ID
	url string

	listeners []*subscription

	state    State
	attempts int
	conn     Conn

	// running 채널 고루틴이 살아 있는지 여부입니다. 재연결 한도를 다 쓰면 false가 됩니다.
	running bool
	cancel  context.CancelFunc
}

type subscription struct {
	id    uint64
	topic string
	fn    Listener
}

func (s *subscription) matches(t EventType) bool {
	return s.topic == Wildcard || s.topic == string(t)
}

// NewManager Manager를 생성합니다.
func NewManager(registry *suite.Registry, opts ...Option) *Manager {
	m := &Manager{
		registry:             registry,
		observer:             noopObserver{},
		heartbeatInterval:    DefaultHeartbeatInterval,
		maxReconnectAttempts: DefaultMaxReconnectAttempts,
		reconnectDelay:       DefaultReconnectDelay,
		channels:             make(map[suite.ID]*channel),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		m.dialer = NewWebSocketDialer(nil)
	}
	return m
}

// Subscribe app의 topic 이벤트를 받을 리스너를 등록하고 해지 함수를 반환합니다.
// topic이 Wildcard("*")이면 모든 이벤트를 받습니다. 해지 함수는 여러 번 호출해도 안전합니다.
//
// 해당 애플리케이션의 첫 리스너라면 채널을 만들고 비동기로 연결을 시작합니다.
// 재연결 한도를 다 써서 끊겨 있던 채널이라면 시도 횟수를 0으로 되돌리고 다시 연결합니다.
func (m *Manager) Subscribe(app suite.ID, topic string, fn Listener) (func(), error) {
	if fn == nil {
		return nil, ErrNilListener
	}
	if topic == "" {
		topic = Wildcard
	}

	url, err := m.registry.RealtimeURL(app)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	m.nextID++
	sub := &subscription{id: m.nextID, topic: topic, fn: fn}

	ch, ok := m.channels[app]
	if !ok {
		ch = &channel{app: app, url: url}
		m.channels[app] = ch
	}
	ch.listeners = append(ch.listeners, sub)

	if !ch.running {
		m.startLocked(ch)
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(ch, sub.id) })
	}, nil
}

func (m *Manager) unsubscribe(ch *channel, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range ch.listeners {
		if s.id == id {
			ch.listeners = append(ch.listeners[:i:i], ch.listeners[i+1:]...)
			break
		}
	}
	if len(ch.listeners) > 0 {
		return
	}

	// 마지막 리스너가 떠났으므로 채널을 즉시 닫고 기록을 지웁니다.
	if m.channels[ch.app] == ch {
		delete(m.channels, ch.app)
	}
	m.stopLocked(ch)

	applog.WithComponentAndFields(component, applog.Fields{
		"app": ch.app,
	}).Debug("마지막 리스너가 해지되어 실시간 채널을 닫았습니다")
}

// startLocked 채널 고루틴을 시작합니다. m.mu를 잡은 상태에서 호출해야 합니다.
func (m *Manager) startLocked(ch *channel) {
	if ch.cancel != nil {
		ch.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())

	ch.attempts = 0
	ch.state = Connecting
	ch.running = true
	ch.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx, ch)
	}()
}

// stopLocked 채널 고루틴에 종료를 알리고 연결을 닫습니다. m.mu를 잡은 상태에서 호출해야 합니다.
func (m *Manager) stopLocked(ch *channel) {
	if ch.cancel != nil {
		ch.cancel()
	}
	if ch.conn != nil {
		_ = ch.conn.Close()
		ch.conn = nil
	}
	ch.state = Disconnected
}

// Close 모든 채널을 닫고 채널 고루틴이 끝날 때까지 기다립니다. 이후의 Subscribe는 ErrClosed를 반환합니다.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for app, ch := range m.channels {
		m.stopLocked(ch)
		ch.listeners = nil
		delete(m.channels, app)
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// State app 채널의 연결 상태를 반환합니다. 채널이 없으면 Disconnected입니다.
func (m *Manager) State(app suite.ID) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.channels[app]; ok {
		return ch.state
	}
	return Disconnected
}

// Attempts app 채널의 마지막 연결 이후 예약된 재연결 횟수를 반환합니다.
func (m *Manager) Attempts(app suite.ID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.channels[app]; ok {
		return ch.attempts
	}
	return 0
}

// ListenerCount app에 등록된 리스너 수를 반환합니다.
func (m *Manager) ListenerCount(app suite.ID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.channels[app]; ok {
		return len(ch.listeners)
	}
	return 0
}

// run 채널 하나의 연결, 수신, 재연결을 담당합니다. ctx가 취소되거나 재연결 한도를 다 쓰면 끝납니다.
func (m *Manager) run(ctx context.Context, ch *channel) {
	for {
		conn, err := m.dialer.Dial(ctx, ch.url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			applog.WithComponentAndFields(component, applog.Fields{
				"app":   ch.app,
				"url":   ch.url,
				"error": err,
			}).Warn("실시간 채널 연결 실패")
		} else {
			if !m.opened(ctx, ch, conn) {
				_ = conn.Close()
				return
			}
			m.serve(ctx, ch, conn)
			m.observer.SetConnected(string(ch.app), false)
			if ctx.Err() != nil {
				return
			}
			applog.WithComponentAndFields(component, applog.Fields{
				"app": ch.app,
			}).Warn("실시간 채널 연결이 끊어졌습니다")
		}

		delay, ok := m.nextAttempt(ctx, ch)
		if !ok {
			return
		}
		m.observer.Reconnect(string(ch.app))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// opened 연결 성공을 기록합니다. 그 사이 채널이 닫혔다면 false를 반환합니다.
func (m *Manager) opened(ctx context.Context, ch *channel, conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	ch.conn = conn
	ch.state = Connected
	ch.attempts = 0
	m.observer.SetConnected(string(ch.app), true)

	applog.WithComponentAndFields(component, applog.Fields{
		"app": ch.app,
		"url": ch.url,
	}).Info("실시간 채널 연결 완료")
	return true
}

// nextAttempt 재연결을 예약할 수 있는지 판단하고 대기 시간을 계산합니다.
func (m *Manager) nextAttempt(ctx context.Context, ch *channel) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch.conn = nil
	if ctx.Err() != nil {
		return 0, false
	}

	if ch.attempts >= m.maxReconnectAttempts {
		ch.state = Disconnected
		ch.running = false
		applog.WithComponentAndFields(component, applog.Fields{
			"app":          ch.app,
			"max_attempts": m.maxReconnectAttempts,
		}).Error("재연결 시도 한도를 초과하여 실시간 채널을 닫힌 상태로 둡니다")
		return 0, false
	}

	ch.attempts++
	ch.state = Reconnecting
	delay := m.reconnectDelay * time.Duration(ch.attempts)

	applog.WithComponentAndFields(component, applog.Fields{
		"app":     ch.app,
		"attempt": ch.attempts,
		"delay":   delay.String(),
	}).Info("실시간 채널 재연결 예약")
	return delay, true
}

// serve 연결이 끊기거나 ctx가 취소될 때까지 메시지를 수신하고 하트비트를 보냅니다.
func (m *Manager) serve(ctx context.Context, ch *channel, conn Conn) {
	connCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	// ctx가 취소되면 연결을 닫아 블로킹된 ReadMessage를 깨웁니다.
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-connCtx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer wg.Done()
		m.heartbeat(connCtx, ch.app, conn)
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		m.dispatch(ch, data)
	}
}

func (m *Manager) heartbeat(ctx context.Context, app suite.ID, conn Conn) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(pingMessage); err != nil {
				applog.WithComponentAndFields(component, applog.Fields{
					"app":   app,
					"error": err,
				}).Debug("하트비트 전송 실패")
				return
			}
		}
	}
}

// dispatch 이벤트를 해석해서 리스너에 등록 순서대로 전달합니다.
// 리스너 목록은 복사본을 순회하므로 전달 중에 리스너가 해지되어도 안전합니다.
func (m *Manager) dispatch(ch *channel, data []byte) {
	event, err := ParseEvent(ch.app, data)
	if err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"app":     ch.app,
			"error":   err,
			"payload": truncate(string(data), 256),
		}).Warn("잘못된 이벤트 메시지를 버렸습니다")
		return
	}

	m.mu.Lock()
	targets := make([]*subscription, 0, len(ch.listeners))
	for _, s := range ch.listeners {
		if s.matches(event.Type) {
			targets = append(targets, s)
		}
	}
	m.mu.Unlock()

	for _, s := range targets {
		deliver(s, event)
	}
}

// deliver 리스너 하나를 호출합니다. 리스너의 패닉은 여기서 멈추고 나머지 리스너에는 영향을 주지 않습니다.
func deliver(s *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"app":        event.App,
				"event_type": event.Type,
				"topic":      s.topic,
				"panic":      fmt.Sprint(r),
			}).Error("리스너 패닉 복구: 이벤트 전달을 계속합니다")
		}
	}()
	s.fn(event)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/darkkaiser/pops-connect/internal/health"
	"github.com/darkkaiser/pops-connect/internal/notification"
	"github.com/darkkaiser/pops-connect/internal/realtime"
	"github.com/darkkaiser/pops-connect/internal/suite"
	"github.com/darkkaiser/pops-connect/internal/transport/mocks"
	"github.com/stretchr/testify/require"
)

// fakeTransport MockRequester에 토큰 기록을 더한 Transport입니다.
type fakeTransport struct {
	*mocks.MockRequester

	mu     sync.Mutex
	token  string
	clears int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{MockRequester: mocks.NewMockRequester()}
}

func (f *fakeTransport) SetBearerToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func (f *fakeTransport) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
}

func (f *fakeTransport) cacheClears() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

func (f *fakeTransport) bearer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

type navigation struct {
	URL    string
	NewTab bool
}

type fakeNavigator struct {
	mu    sync.Mutex
	calls []navigation
	err   error
}

func (n *fakeNavigator) Navigate(url string, newTab bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, navigation{URL: url, NewTab: newTab})
	return n.err
}

func (n *fakeNavigator) all() []navigation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]navigation(nil), n.calls...)
}

type fakeChecker struct {
	statuses map[suite.ID]health.Status
	asked    []suite.ID
}

func (p *fakeChecker) CheckAll(_ context.Context, apps []suite.ID) map[suite.ID]health.Status {
	p.asked = append([]suite.ID(nil), apps...)
	out := make(map[suite.ID]health.Status)
	for _, app := range apps {
		if s, ok := p.statuses[app]; ok {
			out[app] = s
		}
	}
	return out
}

type fakeFetcher struct {
	list        []notification.Notification
	includeRead bool
}

func (f *fakeFetcher) FetchAll(_ context.Context, includeRead bool) []notification.Notification {
	f.includeRead = includeRead
	return append([]notification.Notification(nil), f.list...)
}

// fakeSubscriber 구독을 기록하고 emit으로 이벤트를 직접 전달합니다.
type fakeSubscriber struct {
	mu           sync.Mutex
	listeners    map[suite.ID][]realtime.Listener
	unsubscribed map[suite.ID]int
	fail         map[suite.ID]error
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		listeners:    make(map[suite.ID][]realtime.Listener),
		unsubscribed: make(map[suite.ID]int),
		fail:         make(map[suite.ID]error),
	}
}

func (s *fakeSubscriber) Subscribe(app suite.ID, topic string, fn realtime.Listener) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail[app]; err != nil {
		return nil, err
	}
	s.listeners[app] = append(s.listeners[app], fn)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.unsubscribed[app]++
	}, nil
}

func (s *fakeSubscriber) emit(t *testing.T, app suite.ID, raw string) {
	t.Helper()

	e, err := realtime.ParseEvent(app, []byte(raw))
	require.NoError(t, err)

	s.mu.Lock()
	listeners := append([]realtime.Listener(nil), s.listeners[app]...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(e)
	}
}

// fixedClock 테스트용 시계
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

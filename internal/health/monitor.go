// Package health suite 애플리케이션의 상태 점검을 담당합니다.
//
// 점검은 절대 에러를 반환하지 않습니다. 실패는 Offline 상태로 표현됩니다.
package health

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/darkkaiser/pops-connect/internal/suite"
	"github.com/darkkaiser/pops-connect/internal/transport"
	applog "github.com/darkkaiser/pops-connect/pkg/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// component 로깅용 컴포넌트 이름
const component = "health.monitor"

const (
	// Endpoint 모든 애플리케이션이 제공하는 상태 점검 경로
	Endpoint = "/api/health"

	// DefaultTimeout 점검 한 번의 제한 시간
	DefaultTimeout = 5 * time.Second
)

// Observer 점검 결과를 관찰합니다. *metrics.Collectors가 이 인터페이스를 만족합니다.
type Observer interface {
	SetOnline(app string, online bool)
}

type noopObserver struct{}

func (noopObserver) SetOnline(string, bool) {}

// Option Monitor 생성 옵션입니다.
type Option func(*Monitor)

// WithTimeout 점검 제한 시간을 바꿉니다.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithObserver 점검 결과 관찰자를 지정합니다.
func WithObserver(o Observer) Option {
	return func(m *Monitor) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithClock 현재 시각 함수를 바꿉니다.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// Monitor 상태 점검기입니다.
type Monitor struct {
	requester transport.Requester
	timeout   time.Duration
	observer  Observer
	now       func() time.Time
}

// NewMonitor Monitor를 생성합니다.
func NewMonitor(r transport.Requester, opts ...Option) *Monitor {
	m := &Monitor{
		requester: r,
		timeout:   DefaultTimeout,
		observer:  noopObserver{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check app의 상태를 점검합니다.
//
// 요청이 성공하면 Online이고, 응답 data.status가 degraded 또는 maintenance이면 그 상태를 따릅니다.
// 제한 시간 초과를 포함한 모든 실패는 Offline입니다. LastCheck는 항상 기록됩니다.
func (m *Monitor) Check(ctx context.Context, app suite.ID) Status {
	start := m.now()
	data, err := m.requester.Request(ctx, app, Endpoint, transport.RequestOptions{
		Timeout:   m.timeout,
		SkipCache: true,
	})

	status := Status{App: app, State: Offline, LastCheck: m.now()}
	if err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"app":   app,
			"error": err,
		}).Warn("상태 점검 실패: 오프라인으로 표시합니다")
	} else {
		status.State = stateFromPayload(app, data)
		status.ResponseTime = status.LastCheck.Sub(start)
	}

	m.observer.SetOnline(string(app), status.Online())
	return status
}

// CheckAll apps를 동시에 점검합니다. 개별 실패는 다른 점검에 영향을 주지 않습니다.
func (m *Monitor) CheckAll(ctx context.Context, apps []suite.ID) map[suite.ID]Status {
	var mu sync.Mutex
	result := make(map[suite.ID]Status, len(apps))

	var g errgroup.Group
	for _, app := range apps {
		g.Go(func() error {
			s := m.Check(ctx, app)

			mu.Lock()
			result[app] = s
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return result
}

// stateFromPayload 응답이 왔으면 기본은 online이고, data.status가 알려진 상태이면 그 값을 따릅니다.
func stateFromPayload(app suite.ID, data json.RawMessage) State {
	raw := strings.TrimSpace(gjson.GetBytes(data, "status").String())
	switch strings.ToLower(raw) {
	case "", "ok", "up", "healthy":
		return Online
	}

	state := ParseState(raw)
	if state == Offline && !strings.EqualFold(raw, string(Offline)) {
		applog.WithComponentAndFields(component, applog.Fields{
			"app":    app,
			"status": raw,
		}).Warn("알 수 없는 상태 값입니다: 온라인으로 간주합니다")
		return Online
	}
	return state
}

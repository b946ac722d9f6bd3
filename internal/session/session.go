// Package session 사용자 세션 하나를 이루는 상태(인증, 알림, 애플리케이션 상태, 이동 기록)를 한곳에서 관리합니다.
//
// Context는 Transport, Health Monitor, Notification Aggregator, Realtime Manager를 조합하는 파사드이며,
// UI 계층은 이 타입만 사용합니다. 모든 메서드는 여러 고루틴에서 동시에 호출해도 안전합니다.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/darkkaiser/pops-connect/internal/health"
	"github.com/darkkaiser/pops-connect/internal/notification"
	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"github.com/darkkaiser/pops-connect/internal/realtime"
	"github.com/darkkaiser/pops-connect/internal/suite"
	"github.com/darkkaiser/pops-connect/internal/transport"
	applog "github.com/darkkaiser/pops-connect/pkg/log"
)

// component 로깅용 컴포넌트 이름
const component = "session"

const (
	// LoginEndpoint 인증 애플리케이션의 로그인 경로
	LoginEndpoint = "/api/auth/login"

	DefaultLoginPath = "/login"
)

// Transport 세션이 사용하는 교차 도메인 요청 클라이언트입니다. *transport.Transport가 이 인터페이스를 만족합니다.
type Transport interface {
	transport.Requester
	SetBearerToken(token string)

	// ClearCache 캐시된 응답을 버립니다. 응답은 토큰 없이 (app, endpoint)로만 캐시되므로
	// 사용자가 바뀌면 반드시 비워야 합니다.
	ClearCache()
}

// StatusChecker 여러 애플리케이션의 상태를 점검합니다. *health.Monitor가 이 인터페이스를 만족합니다.
type StatusChecker interface {
	CheckAll(ctx context.Context, apps []suite.ID) map[suite.ID]health.Status
}

// NotificationFetcher 알림을 수집합니다. *notification.Aggregator가 이 인터페이스를 만족합니다.
type NotificationFetcher interface {
	FetchAll(ctx context.Context, includeRead bool) []notification.Notification
}

// Subscriber 실시간 이벤트를 구독합니다. *realtime.Manager가 이 인터페이스를 만족합니다.
type Subscriber interface {
	Subscribe(app suite.ID, topic string, fn realtime.Listener) (func(), error)
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var (
	_ Transport           = (*transport.Transport)(nil)
	_ StatusChecker       = (*health.Monitor)(nil)
	_ NotificationFetcher = (*notification.Aggregator)(nil)
	_ Subscriber          = (*realtime.Manager)(nil)
)

// Config Context 생성에 필요한 구성 요소와 설정입니다.
// Registry와 Transport는 필수이며, 나머지는 생략하면 기본값을 사용합니다.
type Config struct {
	Registry      *suite.Registry
	Transport     Transport
	Monitor       StatusChecker
	Notifications NotificationFetcher
	Realtime      Subscriber
	Storage       Storage
	Navigator     Navigator

	AuthApp     suite.ID
	LoginPath   string
	HistorySize int

	// StatusApps 상태를 점검할 애플리케이션. 비어 있으면 전체
	StatusApps []suite.ID

	// UpdateApps SubscribeToUpdates가 구독할 애플리케이션. 비어 있으면 알림 수집 대상과 같습니다.
	UpdateApps []suite.ID

	Now func() time.Time
}

// Context 세션 파사드입니다.
type Context struct {
	registry  *suite.Registry
	transport Transport
	monitor   StatusChecker
	notifier  NotificationFetcher
	realtime  Subscriber
	storage   Storage
	navigator Navigator

	authApp    suite.ID
	loginPath  string
	statusApps []suite.ID
	updateApps []suite.ID
	now        func() time.Time

	mu            sync.RWMutex
	auth          AuthState
	notifications []notification.Notification
	statuses      map[suite.ID]health.Status
	history       *history
}

// New Context를 생성합니다.
func New(cfg Config) (*Context, error) {
	if cfg.Registry == nil {
		return nil, apperrors.New(apperrors.InvalidInput, "Registry는 필수입니다")
	}
	if cfg.Transport == nil {
		return nil, apperrors.New(apperrors.InvalidInput, "Transport는 필수입니다")
	}

	c := &Context{
		registry:   cfg.Registry,
		transport:  cfg.Transport,
		monitor:    cfg.Monitor,
		notifier:   cfg.Notifications,
		realtime:   cfg.Realtime,
		storage:    cfg.Storage,
		navigator:  cfg.Navigator,
		authApp:    cfg.AuthApp,
		loginPath:  cfg.LoginPath,
		statusApps: append([]suite.ID(nil), cfg.StatusApps...),
		updateApps: append([]suite.ID(nil), cfg.UpdateApps...),
		now:        cfg.Now,
		statuses:   make(map[suite.ID]health.Status),
		history:    newHistory(cfg.HistorySize),
	}

	if c.monitor == nil {
		c.monitor = health.NewMonitor(cfg.Transport)
	}
	if c.notifier == nil {
		c.notifier = notification.NewAggregator(cfg.Transport, nil)
	}
	if c.storage == nil {
		c.storage = NewMemoryStorage()
	}
	if c.navigator == nil {
		c.navigator = &LogNavigator{}
	}
	if c.authApp == "" {
		c.authApp = suite.Auth
	}
	if c.loginPath == "" {
		c.loginPath = DefaultLoginPath
	}
	if len(c.statusApps) == 0 {
		c.statusApps = suite.All()
	}
	if len(c.updateApps) == 0 {
		if a, ok := c.notifier.(interface{ Apps() []suite.ID }); ok {
			c.updateApps = a.Apps()
		} else {
			c.updateApps = append([]suite.ID(nil), notification.DefaultApps...)
		}
	}
	if c.now == nil {
		c.now = time.Now
	}

	return c, nil
}

// ============================================================================
// Authentication
// ============================================================================

// Login 인증 애플리케이션에 로그인하고 세션을 저장소에 남깁니다.
// 실패하면 에러를 반환하며 기존 세션 상태는 바뀌지 않습니다.
func (c *Context) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return ErrMissingCredentials
	}

	data, err := c.transport.Request(ctx, c.authApp, LoginEndpoint, transport.RequestOptions{
		Method:          http.MethodPost,
		Body:            loginRequest{Email: email, Password: password},
		WithCredentials: true,
	})
	if err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"email": email,
			"error": err,
		}).Warn("로그인 실패")
		return NewErrLoginFailed(err)
	}

	var resp loginResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return NewErrLoginFailed(apperrors.Wrap(err, apperrors.Parsing, "로그인 응답을 해석할 수 없습니다"))
	}
	if resp.Token == "" {
		return NewErrLoginFailed(ErrMissingToken)
	}

	expiresAt := c.now().Add(defaultSessionLifetime)
	if resp.ExpiresAt != nil && !resp.ExpiresAt.IsZero() {
		expiresAt = *resp.ExpiresAt
	} else if exp, ok := tokenExpiry(resp.Token); ok {
		expiresAt = exp
	}

	state := AuthState{
		Authenticated: true,
		User:          resp.User,
		Token:         resp.Token,
		ExpiresAt:     expiresAt,
		RefreshToken:  resp.RefreshToken,
	}

	c.mu.Lock()
	prev := c.auth
	c.auth = state
	c.mu.Unlock()

	if identity(prev) != identity(state) {
		c.transport.ClearCache()
	}
	c.transport.SetBearerToken(state.Token)
	c.persist(state)

	applog.WithComponentAndFields(component, applog.Fields{
		"email":      email,
		"token":      applog.MaskSensitiveData(state.Token),
		"expires_at": expiresAt.Format(time.RFC3339),
	}).Info("로그인 완료")
	return nil
}

func (c *Context) persist(state AuthState) {
	data, err := encodePersisted(state)
	if err == nil {
		err = c.storage.Set(StorageKey, data)
	}
	if err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Warn("세션 저장 실패: 재시작 후에는 다시 로그인해야 합니다")
	}
}

// Logout 인증 정보와 알림, 저장된 세션을 지우고 인증 애플리케이션의 로그인 화면으로 이동합니다.
// 이미 로그아웃된 상태에서 호출해도 이동 외에는 아무 일도 하지 않습니다.
func (c *Context) Logout() {
	c.mu.Lock()
	wasAuthenticated := c.auth.Authenticated
	c.auth = AuthState{}
	c.notifications = nil
	c.mu.Unlock()

	c.transport.SetBearerToken("")
	c.transport.ClearCache()
	if err := c.storage.Remove(StorageKey); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Warn("저장된 세션 삭제 실패")
	}

	if wasAuthenticated {
		applog.WithComponent(component).Info("로그아웃 완료")
	}

	url, err := c.registry.URL(c.authApp, c.loginPath)
	if err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"app":   c.authApp,
			"error": err,
		}).Error("로그인 화면 주소를 만들 수 없습니다")
		return
	}
	if err := c.navigator.Navigate(url, false); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"url":   url,
			"error": err,
		}).Warn("로그인 화면으로 이동 실패")
	}
}

// RefreshAuth 저장된 세션을 불러옵니다. 만료 시각이 아직 지나지 않은 경우에만 복원하고 true를 반환합니다.
// 만료되었거나 손상된 기록은 삭제합니다.
func (c *Context) RefreshAuth() bool {
	data, err := c.storage.Get(StorageKey)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			applog.WithComponentAndFields(component, applog.Fields{
				"error": err,
			}).Warn("저장된 세션을 읽을 수 없습니다")
		}
		return false
	}

	var rec persistedAuth
	if err := json.Unmarshal(data, &rec); err != nil || rec.Token == "" {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Warn("손상된 세션 기록을 삭제합니다")
		c.discardPersisted()
		return false
	}

	if !rec.ExpiresAt.After(c.now()) {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": NewErrSessionExpired(rec.ExpiresAt.Format(time.RFC3339)),
		}).Info("만료된 세션 기록을 삭제합니다")
		c.discardPersisted()
		return false
	}

	restored := AuthState{
		Authenticated: true,
		User:          rec.User,
		Token:         rec.Token,
		ExpiresAt:     rec.ExpiresAt,
	}

	c.mu.Lock()
	prev := c.auth
	c.auth = restored
	c.mu.Unlock()

	if identity(prev) != identity(restored) {
		c.transport.ClearCache()
	}

	c.transport.SetBearerToken(rec.Token)
	return true
}

func (c *Context) discardPersisted() {
	if err := c.storage.Remove(StorageKey); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Warn("저장된 세션 삭제 실패")
	}
}

// Auth 현재 인증 상태의 복사본
func (c *Context) Auth() AuthState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth.clone()
}

// IsAuthenticated 로그인 여부
func (c *Context) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth.Authenticated
}

// ============================================================================
// Navigation
// ============================================================================

// SwitchToApp 이동 기록을 남기고 app의 path로 이동합니다. newTab이면 새 탭에서 엽니다.
func (c *Context) SwitchToApp(app suite.ID, path string, newTab bool) error {
	if path == "" {
		path = "/"
	}
	url, err := c.registry.URL(app, path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.history.push(HistoryEntry{App: app, Path: path, At: c.now()})
	c.mu.Unlock()

	return c.navigator.Navigate(url, newTab)
}

// History 이동 기록 (오래된 순)
func (c *Context) History() []HistoryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.history.entries()
}

// ============================================================================
// Notifications
// ============================================================================

// RefreshNotifications 알림 목록을 새로 수집해서 교체하고 그 복사본을 반환합니다.
func (c *Context) RefreshNotifications(ctx context.Context, includeRead bool) []notification.Notification {
	list := c.notifier.FetchAll(ctx, includeRead)

	c.mu.Lock()
	c.notifications = list
	c.mu.Unlock()

	return cloneNotifications(list)
}

// Notifications 현재 알림 목록의 복사본 (최신순)
func (c *Context) Notifications() []notification.Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneNotifications(c.notifications)
}

// UnreadCount 읽지 않은 알림 수
func (c *Context) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return notification.UnreadCount(c.notifications)
}

// MarkNotificationAsRead id 알림을 읽음으로 표시합니다. 네트워크 요청은 보내지 않습니다.
// 해당 알림이 없으면 false를 반환합니다.
func (c *Context) MarkNotificationAsRead(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.notifications {
		if c.notifications[i].ID == id {
			c.notifications[i].Read = true
			return true
		}
	}
	return false
}

// ClearAllNotifications 알림 목록을 비웁니다. 네트워크 요청은 보내지 않습니다.
func (c *Context) ClearAllNotifications() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = nil
}

// mergeNotification 실시간으로 받은 알림을 목록에 넣습니다. 같은 ID가 있으면 교체합니다.
func (c *Context) mergeNotification(n notification.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := make([]notification.Notification, 0, len(c.notifications)+1)
	list = append(list, n)
	for _, existing := range c.notifications {
		if existing.ID != n.ID || n.ID == "" {
			list = append(list, existing)
		}
	}
	notification.SortByTimestampDesc(list)
	c.notifications = list
}

func cloneNotifications(list []notification.Notification) []notification.Notification {
	if list == nil {
		return nil
	}
	return append([]notification.Notification(nil), list...)
}

// ============================================================================
// Application status
// ============================================================================

// RefreshAppStatuses 설정된 애플리케이션을 동시에 점검하고 상태 표를 통째로 교체합니다.
// 점검에 실패한 애플리케이션은 offline이 되며, 이 메서드는 실패하지 않습니다.
func (c *Context) RefreshAppStatuses(ctx context.Context) map[suite.ID]health.Status {
	checked := c.monitor.CheckAll(ctx, c.statusApps)

	next := make(map[suite.ID]health.Status, len(c.statusApps))
	for _, app := range c.statusApps {
		s, ok := checked[app]
		if !ok {
			s = health.OfflineStatus(app)
			s.LastCheck = c.now()
		}
		next[app] = s
	}

	c.mu.Lock()
	c.statuses = next
	c.mu.Unlock()

	return cloneStatuses(next)
}

// AppStatuses 현재 상태 표의 복사본
func (c *Context) AppStatuses() map[suite.ID]health.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneStatuses(c.statuses)
}

// IsAppOnline 상태 표에서 app이 online인지 확인합니다. 점검 기록이 없으면 false입니다.
func (c *Context) IsAppOnline(app suite.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.statuses[app]
	return ok && s.Online()
}

// applyStatusChange 실시간 상태 변경 이벤트를 상태 표에 반영합니다. 표는 복사 후 교체합니다.
func (c *Context) applyStatusChange(app suite.ID, state health.State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := cloneStatuses(c.statuses)
	next[app] = health.Status{App: app, State: state, LastCheck: c.now()}
	c.statuses = next
}

func cloneStatuses(m map[suite.ID]health.Status) map[suite.ID]health.Status {
	out := make(map[suite.ID]health.Status, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ============================================================================
// Realtime updates
// ============================================================================

// SubscribeToUpdates 설정된 애플리케이션들의 모든 실시간 이벤트를 구독하고, 전부를 해지하는 함수 하나를 반환합니다.
//
// 수신한 notification 이벤트는 알림 목록에, status_change 이벤트는 상태 표에 반영된 뒤 callback으로 전달됩니다.
// 일부 애플리케이션의 구독이 실패해도 나머지는 계속 구독합니다. callback은 nil일 수 있습니다.
func (c *Context) SubscribeToUpdates(callback realtime.Listener) func() {
	if c.realtime == nil {
		applog.WithComponent(component).Warn("실시간 채널이 설정되지 않아 업데이트를 구독하지 않습니다")
		return func() {}
	}

	listener := func(e realtime.Event) {
		c.handleEvent(e)
		if callback != nil {
			callback(e)
		}
	}

	var unsubscribes []func()
	for _, app := range c.updateApps {
		unsubscribe, err := c.realtime.Subscribe(app, realtime.Wildcard, listener)
		if err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"app":   app,
				"error": err,
			}).Warn("실시간 업데이트 구독 실패: 해당 애플리케이션을 제외합니다")
			continue
		}
		unsubscribes = append(unsubscribes, unsubscribe)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, unsubscribe := range unsubscribes {
				unsubscribe()
			}
		})
	}
}

func (c *Context) handleEvent(e realtime.Event) {
	switch e.Type {
	case realtime.EventNotification:
		data := e.Get("data")
		if !data.IsObject() {
			applog.WithComponentAndFields(component, applog.Fields{
				"app": e.App,
			}).Warn("data가 없는 알림 이벤트를 무시합니다")
			return
		}
		var n notification.Notification
		if err := json.Unmarshal([]byte(data.Raw), &n); err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"app":   e.App,
				"error": err,
			}).Warn("알림 이벤트를 해석할 수 없습니다")
			return
		}
		if n.App == "" {
			n.App = e.App
		}
		if n.Timestamp.IsZero() {
			n.Timestamp = c.now()
		}
		c.mergeNotification(n)

	case realtime.EventStatusChange:
		var sc realtime.StatusChange
		if err := e.Decode(&sc); err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"app":   e.App,
				"error": err,
			}).Warn("상태 변경 이벤트를 해석할 수 없습니다")
			return
		}
		app := sc.App
		if app == "" {
			app = e.App
		}
		if !app.Valid() {
			return
		}
		c.applyStatusChange(app, health.ParseState(sc.Status))
	}
}

// ============================================================================
// Direct access
// ============================================================================

// FetchFromApp app의 endpoint를 직접 호출합니다. 집계 도우미와 달리 실패를 그대로 반환합니다.
func (c *Context) FetchFromApp(ctx context.Context, app suite.ID, endpoint string, opts transport.RequestOptions) (json.RawMessage, error) {
	return c.transport.Request(ctx, app, endpoint, opts)
}

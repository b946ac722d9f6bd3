package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/darkkaiser/pops-connect/internal/health"
	"github.com/darkkaiser/pops-connect/internal/notification"
	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"github.com/darkkaiser/pops-connect/internal/realtime"
	"github.com/darkkaiser/pops-connect/internal/suite"
	"github.com/darkkaiser/pops-connect/internal/testutil"
	"github.com/darkkaiser/pops-connect/internal/transport"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

var testNow = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx        *Context
	transport  *fakeTransport
	storage    *MemoryStorage
	navigator  *fakeNavigator
	checker    *fakeChecker
	fetcher    *fakeFetcher
	subscriber *fakeSubscriber
	clock      *fixedClock
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()

	registry, err := suite.NewRegistry(suite.Development, nil)
	require.NoError(t, err)

	f := &fixture{
		transport:  newFakeTransport(),
		storage:    NewMemoryStorage(),
		navigator:  &fakeNavigator{},
		checker:    &fakeChecker{},
		fetcher:    &fakeFetcher{},
		subscriber: newFakeSubscriber(),
		clock:      &fixedClock{now: testNow},
	}
	cfg := Config{
		Registry:      registry,
		Transport:     f.transport,
		Monitor:       f.checker,
		Notifications: f.fetcher,
		Realtime:      f.subscriber,
		Storage:       f.storage,
		Navigator:     f.navigator,
		UpdateApps:    []suite.ID{suite.Money, suite.Travel, suite.Events},
		Now:           f.clock.Now,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	f.ctx, err = New(cfg)
	require.NoError(t, err)
	return f
}

func (f *fixture) expectLogin(data string) *mock.Call {
	return f.transport.On("Request", mock.Anything, suite.Auth, LoginEndpoint, mock.MatchedBy(func(o transport.RequestOptions) bool {
		body, ok := o.Body.(loginRequest)
		return o.Method == http.MethodPost && o.WithCredentials && ok && body.Email == "kim@pops.app" && body.Password == "secret"
	})).Return(data, nil)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.True(t, apperrors.Is(err, apperrors.InvalidInput))

	registry, err := suite.NewRegistry(suite.Development, nil)
	require.NoError(t, err)
	_, err = New(Config{Registry: registry})
	assert.True(t, apperrors.Is(err, apperrors.InvalidInput))

	c, err := New(Config{Registry: registry, Transport: newFakeTransport()})
	require.NoError(t, err)
	assert.Equal(t, suite.All(), c.statusApps)
	assert.Equal(t, notification.DefaultApps, c.updateApps)
	assert.Equal(t, suite.Auth, c.authApp)
}

// =============================================================================
// Authentication
// =============================================================================

func TestLogin_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.expectLogin(`{"user":{"id":"u-1","email":"kim@pops.app","name":"Kim"},"token":"tok-1","expiresAt":"2026-04-11T09:00:00Z","refreshToken":"ref-1"}`)

	require.NoError(t, f.ctx.Login(context.Background(), "kim@pops.app", "secret"))

	auth := f.ctx.Auth()
	assert.True(t, auth.Authenticated)
	assert.True(t, f.ctx.IsAuthenticated())
	require.NotNil(t, auth.User)
	assert.Equal(t, "Kim", auth.User.Name)
	assert.Equal(t, "tok-1", auth.Token)
	assert.Equal(t, "ref-1", auth.RefreshToken)
	assert.True(t, auth.ExpiresAt.Equal(time.Date(2026, 4, 11, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, "tok-1", f.transport.bearer())

	raw, err := f.storage.Get(StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":{"id":"u-1","email":"kim@pops.app","name":"Kim"},"token":"tok-1","expiresAt":"2026-04-11T09:00:00Z"}`, string(raw))

	auth.User.Name = "changed"
	assert.Equal(t, "Kim", f.ctx.Auth().User.Name, "Auth returns a copy")
}

func TestLogin_ExpiryFallbacks(t *testing.T) {
	t.Parallel()

	exp := testNow.Add(2 * time.Hour)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("any-key"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  time.Time
	}{
		{name: "JWT exp claim", token: signed, want: exp},
		{name: "Opaque token", token: "opaque", want: testNow.Add(24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.expectLogin(`{"user":null,"token":"` + tt.token + `"}`)

			require.NoError(t, f.ctx.Login(context.Background(), "kim@pops.app", "secret"))
			assert.True(t, f.ctx.Auth().ExpiresAt.Equal(tt.want), "got %v", f.ctx.Auth().ExpiresAt)
		})
	}
}

func TestLogin_Failures(t *testing.T) {
	t.Parallel()

	t.Run("Missing Credentials", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		assert.ErrorIs(t, f.ctx.Login(context.Background(), "", "secret"), ErrMissingCredentials)
		assert.ErrorIs(t, f.ctx.Login(context.Background(), "kim@pops.app", ""), ErrMissingCredentials)
		f.transport.AssertNotCalled(t, "Request", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Transport Error", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.transport.ReturnError(suite.Auth, LoginEndpoint, apperrors.New(apperrors.HTTP, "401 Unauthorized"))

		err := f.ctx.Login(context.Background(), "kim@pops.app", "secret")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.Unauthorized))
		assert.True(t, apperrors.Is(err, apperrors.HTTP), "the transport failure kind is kept")

		assert.False(t, f.ctx.IsAuthenticated())
		_, err = f.storage.Get(StorageKey)
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("Missing Token", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.expectLogin(`{"user":{"id":"u-1"}}`)

		err := f.ctx.Login(context.Background(), "kim@pops.app", "secret")
		assert.ErrorIs(t, err, ErrMissingToken)
		assert.False(t, f.ctx.IsAuthenticated())
	})

	t.Run("Malformed Payload", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.expectLogin(`["not","an","object"]`)

		err := f.ctx.Login(context.Background(), "kim@pops.app", "secret")
		assert.True(t, apperrors.Is(err, apperrors.Parsing))
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.expectLogin(`{"token":"tok-1","expiresAt":"2026-04-11T09:00:00Z"}`)
	require.NoError(t, f.ctx.Login(context.Background(), "kim@pops.app", "secret"))
	f.fetcher.list = []notification.Notification{{ID: "n1"}}
	f.ctx.RefreshNotifications(context.Background(), false)
	clears := f.transport.cacheClears()

	f.ctx.Logout()

	assert.False(t, f.ctx.IsAuthenticated())
	assert.Equal(t, clears+1, f.transport.cacheClears())
	assert.Empty(t, f.ctx.Notifications())
	assert.Empty(t, f.transport.bearer())
	_, err := f.storage.Get(StorageKey)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// 이미 로그아웃된 상태에서도 이동은 다시 일어납니다.
	f.ctx.Logout()
	assert.Equal(t, []navigation{
		{URL: "http://localhost:3001/login"},
		{URL: "http://localhost:3001/login"},
	}, f.navigator.all())
}

func TestLogout_ThenRefreshAuthOnFreshContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.expectLogin(`{"token":"tok-1","expiresAt":"2026-04-11T09:00:00Z"}`)
	require.NoError(t, f.ctx.Login(context.Background(), "kim@pops.app", "secret"))
	f.ctx.Logout()

	fresh := newFixture(t, func(c *Config) { c.Storage = f.storage })
	assert.False(t, fresh.ctx.RefreshAuth())
	assert.False(t, fresh.ctx.IsAuthenticated())
}

func TestRefreshAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		stored     string
		wantOK     bool
		wantRemove bool
	}{
		{name: "Valid", stored: `{"user":{"id":"u-1","name":"Kim"},"token":"tok","expiresAt":"2026-04-10T10:00:00Z"}`, wantOK: true},
		{name: "Expired", stored: `{"user":null,"token":"tok","expiresAt":"2026-04-10T08:59:59Z"}`, wantRemove: true},
		{name: "Expires Exactly Now", stored: `{"token":"tok","expiresAt":"2026-04-10T09:00:00Z"}`, wantRemove: true},
		{name: "Corrupted", stored: `{"token":`, wantRemove: true},
		{name: "Missing Token", stored: `{"expiresAt":"2027-01-01T00:00:00Z"}`, wantRemove: true},
		{name: "Nothing Stored"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			if tt.stored != "" {
				require.NoError(t, f.storage.Set(StorageKey, []byte(tt.stored)))
			}

			assert.Equal(t, tt.wantOK, f.ctx.RefreshAuth())
			assert.Equal(t, tt.wantOK, f.ctx.IsAuthenticated())

			_, err := f.storage.Get(StorageKey)
			if tt.wantRemove || tt.stored == "" {
				assert.ErrorIs(t, err, ErrKeyNotFound)
			} else {
				assert.NoError(t, err)
			}

			if tt.wantOK {
				assert.Equal(t, "tok", f.transport.bearer())
				assert.Equal(t, "Kim", f.ctx.Auth().User.Name)
			}
		})
	}
}

// =============================================================================
// Navigation
// =============================================================================

func TestSwitchToApp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	require.NoError(t, f.ctx.SwitchToApp(suite.Money, "/budget", true))
	require.NoError(t, f.ctx.SwitchToApp(suite.Travel, "", false))

	assert.Equal(t, []navigation{
		{URL: "http://localhost:3003/budget", NewTab: true},
		{URL: "http://localhost:3002/", NewTab: false},
	}, f.navigator.all())
	assert.Equal(t, []HistoryEntry{
		{App: suite.Money, Path: "/budget", At: testNow},
		{App: suite.Travel, Path: "/", At: testNow},
	}, f.ctx.History())

	err := f.ctx.SwitchToApp("bank", "/", false)
	assert.True(t, apperrors.Is(err, apperrors.NotFound))
	assert.Len(t, f.ctx.History(), 2, "failed switches leave no history")
}

func TestSwitchToApp_HistoryIsBounded(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for i := range 12 {
		f.clock.Advance(time.Minute)
		require.NoError(t, f.ctx.SwitchToApp(suite.Docs, "/page/"+string(rune('a'+i)), false))
	}

	h := f.ctx.History()
	require.Len(t, h, DefaultHistorySize)
	assert.Equal(t, "/page/c", h[0].Path, "the two oldest entries were dropped")
	assert.Equal(t, "/page/l", h[len(h)-1].Path)
}

func TestSwitchToApp_NavigatorError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.navigator.err = errors.New("no display")

	assert.EqualError(t, f.ctx.SwitchToApp(suite.Hub, "/", false), "no display")
	assert.Len(t, f.ctx.History(), 1)
}

// =============================================================================
// Notifications
// =============================================================================

func TestNotifications_LocalMutations(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fetcher.list = []notification.Notification{
		{ID: "a", Timestamp: testNow},
		{ID: "b", Timestamp: testNow.Add(-time.Minute)},
		{ID: "c", Timestamp: testNow.Add(-time.Hour), Read: true},
	}

	got := f.ctx.RefreshNotifications(context.Background(), true)
	assert.True(t, f.fetcher.includeRead)
	assert.Len(t, got, 3)
	assert.Equal(t, 2, f.ctx.UnreadCount())

	assert.True(t, f.ctx.MarkNotificationAsRead("b"))
	assert.False(t, f.ctx.MarkNotificationAsRead("missing"))
	assert.Equal(t, 1, f.ctx.UnreadCount())

	got[0].Read = true
	assert.Equal(t, 1, f.ctx.UnreadCount(), "returned slices are copies")

	f.ctx.ClearAllNotifications()
	assert.Empty(t, f.ctx.Notifications())
	assert.Zero(t, f.ctx.UnreadCount())
	f.transport.AssertNotCalled(t, "Request", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =============================================================================
// Application status
// =============================================================================

func TestRefreshAppStatuses(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *Config) {
		c.StatusApps = []suite.ID{suite.Hub, suite.Money, suite.Travel, suite.Events}
	})
	f.checker.statuses = map[suite.ID]health.Status{
		suite.Hub:    {App: suite.Hub, State: health.Online, LastCheck: testNow},
		suite.Money:  {App: suite.Money, State: health.Degraded, LastCheck: testNow},
		suite.Travel: {App: suite.Travel, State: health.Offline, LastCheck: testNow},
	}

	got := f.ctx.RefreshAppStatuses(context.Background())

	assert.Equal(t, []suite.ID{suite.Hub, suite.Money, suite.Travel, suite.Events}, f.checker.asked)
	require.Len(t, got, 4)
	assert.Equal(t, health.Offline, got[suite.Events].State, "a missing check result is offline")
	assert.Equal(t, testNow, got[suite.Events].LastCheck)

	assert.True(t, f.ctx.IsAppOnline(suite.Hub))
	assert.False(t, f.ctx.IsAppOnline(suite.Money))
	assert.False(t, f.ctx.IsAppOnline(suite.Travel))
	assert.False(t, f.ctx.IsAppOnline(suite.Docs), "never checked")

	// 상태 표는 통째로 교체됩니다.
	f.checker.statuses = map[suite.ID]health.Status{}
	f.ctx.RefreshAppStatuses(context.Background())
	assert.False(t, f.ctx.IsAppOnline(suite.Hub))
	assert.Len(t, f.ctx.AppStatuses(), 4)
}

// =============================================================================
// Realtime updates
// =============================================================================

func TestSubscribeToUpdates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.subscriber.fail[suite.Travel] = apperrors.New(apperrors.Unavailable, "closed")

	var received []string
	unsubscribe := f.ctx.SubscribeToUpdates(func(e realtime.Event) {
		received = append(received, string(e.App)+":"+string(e.Type))
	})

	f.subscriber.emit(t, suite.Money, `{"type":"notification","data":{"id":"n-1","title":"Bill due","type":"warning","timestamp":"2026-04-10T08:00:00Z"}}`)
	f.subscriber.emit(t, suite.Events, `{"type":"notification","data":{"id":"n-2","title":"Meetup"}}`)
	f.subscriber.emit(t, suite.Money, `{"type":"notification","data":{"id":"n-1","title":"Bill due (updated)","timestamp":"2026-04-10T08:00:00Z"}}`)
	f.subscriber.emit(t, suite.Events, `{"type":"status_change","app":"money","status":"maintenance"}`)
	f.subscriber.emit(t, suite.Events, `{"type":"status_change","status":"online"}`)
	f.subscriber.emit(t, suite.Events, `{"type":"notification"}`)
	f.subscriber.emit(t, suite.Money, `{"type":"data_update","entity":"budget"}`)

	assert.Equal(t, []string{
		"money:notification",
		"events:notification",
		"money:notification",
		"events:status_change",
		"events:status_change",
		"events:notification",
		"money:data_update",
	}, received)

	list := f.ctx.Notifications()
	require.Len(t, list, 2)
	assert.Equal(t, "n-2", list[0].ID, "events notification without timestamp is stamped now and sorts first")
	assert.Equal(t, suite.Events, list[0].App)
	assert.Equal(t, "Bill due (updated)", list[1].Title, "same id replaces the earlier entry")
	assert.Equal(t, suite.Money, list[1].App)

	statuses := f.ctx.AppStatuses()
	assert.Equal(t, health.Maintenance, statuses[suite.Money].State)
	assert.True(t, f.ctx.IsAppOnline(suite.Events))

	unsubscribe()
	unsubscribe()
	assert.Equal(t, map[suite.ID]int{suite.Money: 1, suite.Events: 1}, f.subscriber.unsubscribed)
}

func TestSubscribeToUpdates_WithoutRealtime(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *Config) { c.Realtime = nil })
	unsubscribe := f.ctx.SubscribeToUpdates(nil)
	require.NotNil(t, unsubscribe)
	assert.NotPanics(t, unsubscribe)
}

// =============================================================================
// Direct access
// =============================================================================

func TestFetchFromApp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.transport.ReturnData(suite.Docs, "/api/docs", `[{"id":1}]`)
	f.transport.ReturnError(suite.Calendar, "/api/events", apperrors.New(apperrors.Timeout, "calendar timed out"))

	data, err := f.ctx.FetchFromApp(context.Background(), suite.Docs, "/api/docs", transport.RequestOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(data))

	_, err = f.ctx.FetchFromApp(context.Background(), suite.Calendar, "/api/events", transport.RequestOptions{})
	assert.True(t, apperrors.Is(err, apperrors.Timeout), "direct calls propagate errors")
}

func TestLogin_ClearsCacheOnlyWhenUserChanges(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.expectLogin(`{"user":{"id":"u1","email":"kim@pops.app"},"token":"tok-1","expiresAt":"2026-04-11T09:00:00Z"}`)

	require.NoError(t, f.ctx.Login(context.Background(), "kim@pops.app", "secret"))
	assert.Equal(t, 1, f.transport.cacheClears(), "anonymous responses are dropped on login")

	require.NoError(t, f.ctx.Login(context.Background(), "kim@pops.app", "secret"))
	assert.Equal(t, 1, f.transport.cacheClears(), "same user keeps the cache")

	f.ctx.Logout()
	assert.Equal(t, 2, f.transport.cacheClears())
}

func TestIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state AuthState
		want  string
	}{
		{name: "Anonymous", state: AuthState{Token: "t"}, want: ""},
		{name: "User ID", state: AuthState{Authenticated: true, User: &User{ID: "u1", Email: "a@pops.app"}}, want: "id:u1"},
		{name: "Email only", state: AuthState{Authenticated: true, User: &User{Email: "a@pops.app"}}, want: "email:a@pops.app"},
		{name: "Token only", state: AuthState{Authenticated: true, Token: "t"}, want: "token:t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, identity(tt.state))
		})
	}
}

// 응답 캐시는 토큰을 키에 넣지 않으므로, 사용자가 바뀐 뒤 이전 사용자의 응답이 나오면 안 됩니다.
func TestLogout_NextUserDoesNotSeeCachedResponses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case LoginEndpoint:
			var req loginRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{
				"user":      map[string]string{"id": req.Email, "email": req.Email},
				"token":     req.Email + "-token",
				"expiresAt": "2099-01-01T00:00:00Z",
			}})
		case "/api/profile":
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]string{
				"auth": r.Header.Get("Authorization"),
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	registry := testutil.DevRegistry(t, map[suite.ID]string{suite.Auth: srv.URL})
	sc, err := New(Config{Registry: registry, Transport: transport.New(registry)})
	require.NoError(t, err)
	ctx := context.Background()

	profile := func() string {
		t.Helper()
		data, err := sc.FetchFromApp(ctx, suite.Auth, "/api/profile", transport.RequestOptions{})
		require.NoError(t, err)
		return gjson.GetBytes(data, "auth").String()
	}

	require.NoError(t, sc.Login(ctx, "alice", "pw"))
	assert.Equal(t, "Bearer alice-token", profile())
	assert.Equal(t, "Bearer alice-token", profile())

	sc.Logout()
	assert.Empty(t, profile())

	require.NoError(t, sc.Login(ctx, "bob", "pw"))
	assert.Equal(t, "Bearer bob-token", profile())
}

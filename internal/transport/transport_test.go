package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/darkkaiser/pops-connect/internal/cache"
	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"github.com/darkkaiser/pops-connect/internal/suite"
	"github.com/darkkaiser/pops-connect/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func writeEnvelope(w http.ResponseWriter, status int, env map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// newTestTransport app 하나를 handler로 서비스하는 Transport를 만듭니다.
func newTestTransport(t *testing.T, app suite.ID, handler http.HandlerFunc, opts ...Option) (*Transport, *int32) {
	t.Helper()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	registry := testutil.DevRegistry(t, map[suite.ID]string{app: srv.URL})
	return New(registry, opts...), &hits
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	hits     int
	misses   int
}

func (o *recordingObserver) ObserveRequest(_, _, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) CacheLookup(_ string, hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

// =============================================================================
// Success paths
// =============================================================================

func TestRequest_GetIsCached(t *testing.T) {
	t.Parallel()

	var gotHeader http.Header
	tr, hits := newTestTransport(t, suite.Money, func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		assert.Equal(t, "/api/budgets", r.URL.Path)
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"total": 3}})
	})

	data, err := tr.Request(context.Background(), suite.Money, "/api/budgets", RequestOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":3}`, string(data))

	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "XMLHttpRequest", gotHeader.Get("X-Requested-With"))
	assert.NotEmpty(t, gotHeader.Get("X-Request-ID"))
	assert.True(t, strings.HasPrefix(gotHeader.Get("User-Agent"), "pops-connect/"))
	assert.Empty(t, gotHeader.Get("Authorization"))

	again, err := tr.Request(context.Background(), suite.Money, "/api/budgets", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, data, again)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits), "second call within TTL must not reach the network")
	assert.Equal(t, 1, tr.CacheStats().Size)

	tr.ClearCache()
	_, err = tr.Request(context.Background(), suite.Money, "/api/budgets", RequestOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(hits))
}

func TestRequest_CacheExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	tr, hits := newTestTransport(t, suite.Calendar, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": []string{"standup"}})
	}, WithCache(cache.New(time.Minute, cache.WithClock(clock))))

	fetch := func() {
		t.Helper()
		_, err := tr.Request(context.Background(), suite.Calendar, "/api/events/today", RequestOptions{})
		require.NoError(t, err)
	}

	fetch()
	advance(59 * time.Second)
	fetch()
	assert.EqualValues(t, 1, atomic.LoadInt32(hits), "entry is still fresh")

	advance(2 * time.Second)
	fetch()
	assert.EqualValues(t, 2, atomic.LoadInt32(hits), "expired entry must be refetched")

	fetch()
	assert.EqualValues(t, 2, atomic.LoadInt32(hits), "refetched entry is cached again")
}

func TestRequest_SkipCacheAndNonGet(t *testing.T) {
	t.Parallel()

	tr, hits := newTestTransport(t, suite.Travel, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			b, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"city":"Seoul"}`, string(b))
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true})
	})

	for i := 0; i < 2; i++ {
		data, err := tr.Request(context.Background(), suite.Travel, "/api/trips", RequestOptions{SkipCache: true})
		require.NoError(t, err)
		assert.Equal(t, "null", string(data), "missing data becomes JSON null")
	}
	for i := 0; i < 2; i++ {
		_, err := tr.Request(context.Background(), suite.Travel, "/api/trips", RequestOptions{
			Method: http.MethodPost,
			Body:   map[string]string{"city": "Seoul"},
		})
		require.NoError(t, err)
	}

	assert.EqualValues(t, 4, atomic.LoadInt32(hits))
	assert.Zero(t, tr.CacheStats().Size)
}

func TestRequest_HeadersAndToken(t *testing.T) {
	t.Parallel()

	var got http.Header
	tr, _ := newTestTransport(t, suite.Docs, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": 1})
	})

	tr.SetBearerToken("jwt-token")
	_, err := tr.Request(context.Background(), suite.Docs, "/api/docs", RequestOptions{
		SkipCache: true,
		Headers:   map[string]string{"X-Trace": "abc", "Content-Type": "application/vnd.pops+json"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer jwt-token", got.Get("Authorization"))
	assert.Equal(t, "abc", got.Get("X-Trace"))
	assert.Equal(t, "application/vnd.pops+json", got.Get("Content-Type"), "caller headers override defaults")

	tr.SetBearerToken("")
	_, err = tr.Request(context.Background(), suite.Docs, "/api/docs", RequestOptions{SkipCache: true})
	require.NoError(t, err)
	assert.Empty(t, got.Get("Authorization"))
}

func TestRequest_Credentials(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var cookies []string
	tr, _ := newTestTransport(t, suite.Auth, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		cookies = append(cookies, r.Header.Get("Cookie"))
		mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s-1", Path: "/"})
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true})
	})

	call := func(withCredentials bool) {
		_, err := tr.Request(context.Background(), suite.Auth, "/api/me", RequestOptions{SkipCache: true, WithCredentials: withCredentials})
		require.NoError(t, err)
	}
	call(true)
	call(true)
	call(false)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "sid=s-1", ""}, cookies)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t, suite.Events, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"name": "meetup"}})
	})

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, tr.Decode(context.Background(), suite.Events, "/api/event", RequestOptions{}, &out))
	assert.Equal(t, "meetup", out.Name)

	var wrong []int
	err := tr.Decode(context.Background(), suite.Events, "/api/event", RequestOptions{}, &wrong)
	assert.True(t, apperrors.Is(err, apperrors.Parsing))
}

// =============================================================================
// Failure normalisation
// =============================================================================

func TestRequest_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		opts     RequestOptions
		wantKind apperrors.ErrorType
		wantCode int
	}{
		{
			name: "HTTP Status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "maintenance", http.StatusServiceUnavailable)
			},
			wantKind: apperrors.HTTP,
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name: "Timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			opts:     RequestOptions{Timeout: 30 * time.Millisecond},
			wantKind: apperrors.Timeout,
		},
		{
			name: "Malformed Body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>oops</html>`))
			},
			wantKind: apperrors.Parsing,
		},
		{
			name: "Missing Success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data": 1}`))
			},
			wantKind: apperrors.Parsing,
		},
		{
			name: "Remote Rejection",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, http.StatusOK, map[string]any{"success": false, "error": "quota exceeded"})
			},
			wantKind: apperrors.Remote,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr, hits := newTestTransport(t, suite.Money, tt.handler)

			_, err := tr.Request(context.Background(), suite.Money, "/api/x", tt.opts)
			require.Error(t, err)

			var reqErr *Error
			require.True(t, errors.As(err, &reqErr), "failures are always *transport.Error")
			assert.Equal(t, suite.Money, reqErr.App)
			assert.Equal(t, tt.wantKind, reqErr.Kind())
			assert.True(t, apperrors.Is(err, tt.wantKind))
			assert.Equal(t, tt.wantCode, reqErr.StatusCode)
			assert.Contains(t, err.Error(), "money")

			assert.Zero(t, tr.CacheStats().Size, "failures never populate the cache")
			assert.EqualValues(t, 1, atomic.LoadInt32(hits))
		})
	}
}

func TestRequest_RemoteMessage(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t, suite.Money, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{"success": false, "error": "quota exceeded"})
	})

	_, err := tr.Request(context.Background(), suite.Money, "/api/x", RequestOptions{})
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestRequest_NetworkError(t *testing.T) {
	t.Parallel()

	// travel은 아무도 듣고 있지 않은 포트를 가리킵니다.
	tr, _ := newTestTransport(t, suite.Money, func(http.ResponseWriter, *http.Request) {})

	_, err := tr.Request(context.Background(), suite.Travel, "/api/health", RequestOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.Network), "%v", err)
}

func TestRequest_CanceledContext(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t, suite.Money, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Request(ctx, suite.Money, "/api/x", RequestOptions{SkipCache: true})
	assert.True(t, apperrors.Is(err, apperrors.Network), "an aborted request is a network failure: %v", err)
}

func TestRequest_UnknownApplication(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTransport(t, suite.Money, func(http.ResponseWriter, *http.Request) {})

	_, err := tr.Request(context.Background(), "bank", "/api/x", RequestOptions{})
	assert.True(t, apperrors.Is(err, apperrors.NotFound))
}

// =============================================================================
// Decorators
// =============================================================================

func TestRequest_RateLimit(t *testing.T) {
	t.Parallel()

	tr, hits := newTestTransport(t, suite.Calendar, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true})
	}, WithRateLimit(suite.Calendar, 0.1, 1))

	opts := RequestOptions{SkipCache: true, Timeout: 50 * time.Millisecond}
	_, err := tr.Request(context.Background(), suite.Calendar, "/api/x", opts)
	require.NoError(t, err)

	_, err = tr.Request(context.Background(), suite.Calendar, "/api/x", opts)
	assert.True(t, apperrors.Is(err, apperrors.Timeout), "%v", err)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestRequest_Observer(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	tr, _ := newTestTransport(t, suite.Hub, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true})
	}, WithObserver(obs), WithCache(cache.New(time.Minute)))

	_, _ = tr.Request(context.Background(), suite.Hub, "/ok", RequestOptions{})
	_, _ = tr.Request(context.Background(), suite.Hub, "/ok", RequestOptions{})
	_, _ = tr.Request(context.Background(), suite.Hub, "/fail", RequestOptions{})

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []string{"success", "cached", "HTTP"}, obs.outcomes)
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 2, obs.misses)
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	u, err := url.Parse("http://user:pw@localhost:3001/api?token=abc&page=2")
	require.NoError(t, err)
	out := redactURL(u)

	assert.NotContains(t, out, "abc")
	assert.NotContains(t, out, "pw")
	assert.Contains(t, out, "page=2")
	assert.Equal(t, "", redactURL(nil))
}

// Package transport 독립적으로 배포된 suite 애플리케이션 사이의 JSON 요청을 담당합니다.
//
// 모든 요청은 대상 애플리케이션의 주소 규칙(suite.Registry)에 따라 보내지며,
// 요청마다 제한 시간이 적용되고, 성공한 GET 응답은 짧은 시간 동안 캐시됩니다.
// 실패는 원인과 관계없이 *Error 하나로 정규화됩니다.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/darkkaiser/pops-connect/internal/cache"
	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"github.com/darkkaiser/pops-connect/internal/pkg/version"
	"github.com/darkkaiser/pops-connect/internal/suite"
	applog "github.com/darkkaiser/pops-connect/pkg/log"
	"github.com/google/uuid"
)

// component 로깅용 컴포넌트 이름
const component = "transport"

// DefaultTimeout 요청 기본 제한 시간입니다.
const DefaultTimeout = 10 * time.Second

// 요청 결과 분류 (메트릭 레이블)
const (
	outcomeSuccess = "success"
	outcomeCached  = "cached"
)

// Observer 요청 결과를 관찰합니다. *metrics.Collectors가 이 인터페이스를 만족합니다.
type Observer interface {
	ObserveRequest(app, method, outcome string, elapsed time.Duration)
	CacheLookup(app string, hit bool)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, string, string, time.Duration) {}
func (noopObserver) CacheLookup(string, bool)                             {}

// Requester 교차 도메인 요청을 보냅니다. *Transport가 이 인터페이스를 만족하며,
// 상태 점검과 알림 수집처럼 Transport 위에서 동작하는 구성 요소는 이 인터페이스에 의존합니다.
type Requester interface {
	Request(ctx context.Context, app suite.ID, endpoint string, opts RequestOptions) (json.RawMessage, error)
}

var _ Requester = (*Transport)(nil)

// RequestOptions 요청별 옵션입니다. 모든 필드는 생략할 수 있습니다.
type RequestOptions struct {
	Method  string            // 기본값 GET
	Headers map[string]string // 기본 헤더를 덮어씁니다.
	Body    any               // nil이 아니면 JSON으로 인코딩합니다.
	Timeout time.Duration     // 0이면 Transport의 기본 제한 시간

	// WithCredentials 쿠키 저장소를 사용해 요청합니다.
	WithCredentials bool

	// SkipCache GET 요청이라도 캐시를 읽거나 쓰지 않습니다. 상태 점검처럼 항상 최신 값이 필요한 요청에 사용합니다.
	SkipCache bool
}

func (o RequestOptions) method() string {
	if o.Method == "" {
		return http.MethodGet
	}
	return o.Method
}

// Transport 교차 도메인 요청 클라이언트입니다. 여러 고루틴에서 동시에 사용해도 안전합니다.
type Transport struct {
	registry *suite.Registry
	cache    *cache.Cache
	timeout  time.Duration
	observer Observer

	httpFetcher *HTTPFetcher
	rateLimiter *RateLimitFetcher
	fetcher     Fetcher

	rateLimits []rateLimit

	tokenMu sync.RWMutex
	token   string
}

type rateLimit struct {
	app   suite.ID
	rps   float64
	burst int
}

// Option Transport 생성 옵션입니다.
type Option func(*Transport)

// WithTimeout 기본 제한 시간을 바꿉니다.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithCache 응답 캐시를 지정합니다.
func WithCache(c *cache.Cache) Option {
	return func(t *Transport) {
		t.cache = c
	}
}

// WithObserver 요청 결과 관찰자를 지정합니다.
func WithObserver(o Observer) Option {
	return func(t *Transport) {
		if o != nil {
			t.observer = o
		}
	}
}

// WithRoundTripper 네트워크 계층을 바꿉니다.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(t *Transport) {
		t.httpFetcher = NewHTTPFetcher(rt)
	}
}

// WithRateLimit 애플리케이션별 요청 속도 제한을 추가합니다.
func WithRateLimit(app suite.ID, rps float64, burst int) Option {
	return func(t *Transport) {
		t.rateLimits = append(t.rateLimits, rateLimit{app: app, rps: rps, burst: burst})
	}
}

// New Transport를 생성합니다.
func New(registry *suite.Registry, opts ...Option) *Transport {
	t := &Transport{
		registry: registry,
		timeout:  DefaultTimeout,
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.cache == nil {
		t.cache = cache.New(cache.DefaultTTL)
	}
	if t.httpFetcher == nil {
		t.httpFetcher = NewHTTPFetcher(nil)
	}

	t.rateLimiter = NewRateLimitFetcher(t.httpFetcher)
	for _, rl := range t.rateLimits {
		t.rateLimiter.SetLimit(rl.app, rl.rps, rl.burst)
	}
	t.fetcher = NewLoggingFetcher(t.rateLimiter)

	return t
}

// Registry 주소 규칙을 반환합니다.
func (t *Transport) Registry() *suite.Registry {
	return t.registry
}

// SetBearerToken 이후 요청에 붙일 인증 토큰을 설정합니다. 빈 문자열이면 헤더를 붙이지 않습니다.
func (t *Transport) SetBearerToken(token string) {
	t.tokenMu.Lock()
	defer t.tokenMu.Unlock()

	t.token = token
}

func (t *Transport) bearerToken() string {
	t.tokenMu.RLock()
	defer t.tokenMu.RUnlock()

	return t.token
}

// ClearCache 응답 캐시를 비웁니다.
func (t *Transport) ClearCache() {
	t.cache.Clear()
}

// CacheStats 응답 캐시 상태를 반환합니다.
func (t *Transport) CacheStats() cache.Stats {
	return t.cache.Stats()
}

// Request app의 endpoint로 요청을 보내고 응답 봉투의 data를 반환합니다.
//
// 캐시 대상(SkipCache가 아닌 GET)은 유효한 캐시가 있으면 네트워크 요청 없이 반환하고,
// 성공한 응답만 캐시에 저장합니다. 실패는 항상 *Error로 반환됩니다.
func (t *Transport) Request(ctx context.Context, app suite.ID, endpoint string, opts RequestOptions) (json.RawMessage, error) {
	method := opts.method()
	cacheable := method == http.MethodGet && !opts.SkipCache

	if cacheable {
		payload, ok := t.cache.Get(app, endpoint)
		t.observer.CacheLookup(string(app), ok)
		if ok {
			t.observer.ObserveRequest(string(app), method, outcomeCached, 0)
			return payload, nil
		}
	}

	start := time.Now()
	data, err := t.do(ctx, app, method, endpoint, opts)
	if err != nil {
		var reqErr *Error
		if errors.As(err, &reqErr) {
			t.observer.ObserveRequest(string(app), method, reqErr.Kind().String(), time.Since(start))
		}
		return nil, err
	}
	t.observer.ObserveRequest(string(app), method, outcomeSuccess, time.Since(start))

	if cacheable {
		t.cache.Set(app, endpoint, data)
	}
	return data, nil
}

// Decode Request 결과를 v에 디코딩합니다. 실패하면 Parsing 종류의 *Error를 반환합니다.
func (t *Transport) Decode(ctx context.Context, app suite.ID, endpoint string, opts RequestOptions, v any) error {
	data, err := t.Request(ctx, app, endpoint, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return newError(app, opts.method(), endpoint, newParsingError(app, err))
	}
	return nil
}

func (t *Transport) do(ctx context.Context, app suite.ID, method, endpoint string, opts RequestOptions) (json.RawMessage, error) {
	fail := func(cause error) error {
		return newError(app, method, endpoint, cause)
	}

	target, err := t.registry.URL(app, endpoint)
	if err != nil {
		return nil, fail(err)
	}

	var body io.Reader
	if opts.Body != nil {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fail(apperrors.Wrap(err, apperrors.InvalidInput, "요청 본문을 JSON으로 변환할 수 없습니다"))
		}
		body = bytes.NewReader(b)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = t.timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(withRequestContext(reqCtx, app, opts.WithCredentials), method, target, body)
	if err != nil {
		return nil, fail(apperrors.Wrap(err, apperrors.InvalidInput, "요청을 만들 수 없습니다"))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("User-Agent", version.Get().UserAgent())
	if token := t.bearerToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.fetcher.Do(req)
	if err != nil {
		return nil, fail(classify(reqCtx, app, timeout, err))
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := newError(app, method, endpoint, newHTTPError(app, resp, readSnippet(resp.Body)))
		e.StatusCode = resp.StatusCode
		e.Status = resp.Status
		return nil, e
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fail(classify(reqCtx, app, timeout, err))
	}

	data, remoteMsg, err := decodeEnvelope(raw)
	switch {
	case errors.Is(err, errEnvelopeRejected):
		return nil, fail(newRemoteError(app, remoteMsg))
	case err != nil:
		return nil, fail(newParsingError(app, err))
	}

	applog.WithComponentAndFields(component, applog.Fields{
		"app":      app,
		"endpoint": endpoint,
		"bytes":    len(raw),
	}).Trace("응답 봉투 해석 완료")

	return data, nil
}

// classify 전송 계층 에러를 Timeout 또는 Network로 분류합니다. 이미 분류된 AppError는 그대로 둡니다.
func classify(reqCtx context.Context, app suite.ID, timeout time.Duration, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return newTimeoutError(app, timeout, err)
	}
	return newNetworkError(app, err)
}

package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"github.com/darkkaiser/pops-connect/internal/suite"
	applog "github.com/darkkaiser/pops-connect/pkg/log"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// Fetcher HTTP 요청을 수행합니다. 데코레이터로 겹쳐서 로깅, 속도 제한 등을 덧붙입니다.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*RateLimitFetcher)(nil)
	_ Fetcher = (*LoggingFetcher)(nil)
)

type contextKey int

const (
	credentialsKey contextKey = iota
	appKey
)

func withRequestContext(ctx context.Context, app suite.ID, withCredentials bool) context.Context {
	ctx = context.WithValue(ctx, appKey, app)
	return context.WithValue(ctx, credentialsKey, withCredentials)
}

func appFromContext(ctx context.Context) suite.ID {
	app, _ := ctx.Value(appKey).(suite.ID)
	return app
}

func credentialsFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(credentialsKey).(bool)
	return v
}

// ============================================================================
// HTTPFetcher
// ============================================================================

// HTTPFetcher 실제 네트워크 요청을 수행합니다.
//
// 쿠키 저장소(jar)는 자격 증명 포함 요청에서만 사용합니다. 두 클라이언트는 같은 http.Transport를
// 공유하므로 커넥션 풀도 하나입니다.
type HTTPFetcher struct {
	plain       *http.Client
	credentials *http.Client
}

// NewHTTPFetcher HTTPFetcher를 생성합니다. rt가 nil이면 http.DefaultTransport를 복제해서 사용합니다.
func NewHTTPFetcher(rt http.RoundTripper) *HTTPFetcher {
	if rt == nil {
		rt = http.DefaultTransport.(*http.Transport).Clone()
	}

	// publicsuffix 목록을 쓰면 "pops.app" 같은 공용 접미사에는 쿠키가 설정되지 않습니다.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		panic("cookiejar 생성 실패: " + err.Error())
	}

	return &HTTPFetcher{
		plain:       &http.Client{Transport: rt},
		credentials: &http.Client{Transport: rt, Jar: jar},
	}
}

func (f *HTTPFetcher) Do(req *http.Request) (*http.Response, error) {
	if credentialsFromContext(req.Context()) {
		return f.credentials.Do(req)
	}
	return f.plain.Do(req)
}

// Cookies 자격 증명 포함 요청에서 수집된 쿠키를 반환합니다.
func (f *HTTPFetcher) Cookies(u *url.URL) []*http.Cookie {
	return f.credentials.Jar.Cookies(u)
}

// ============================================================================
// RateLimitFetcher
// ============================================================================

// RateLimitFetcher 애플리케이션별로 요청 속도를 제한합니다. 제한이 없는 애플리케이션은 그대로 통과합니다.
type RateLimitFetcher struct {
	delegate Fetcher

	mu       sync.RWMutex
	limiters map[suite.ID]*rate.Limiter
}

// NewRateLimitFetcher RateLimitFetcher를 생성합니다.
func NewRateLimitFetcher(delegate Fetcher) *RateLimitFetcher {
	return &RateLimitFetcher{
		delegate: delegate,
		limiters: make(map[suite.ID]*rate.Limiter),
	}
}

// SetLimit 애플리케이션의 초당 요청 수와 버스트를 설정합니다.
func (f *RateLimitFetcher) SetLimit(app suite.ID, rps float64, burst int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.limiters[app] = rate.NewLimiter(rate.Limit(rps), burst)
}

func (f *RateLimitFetcher) Do(req *http.Request) (*http.Response, error) {
	app := appFromContext(req.Context())

	f.mu.RLock()
	limiter := f.limiters[app]
	f.mu.RUnlock()

	if limiter != nil {
		// 대기 시간이 요청 마감 시간을 넘기면 Wait는 즉시 실패합니다.
		if err := limiter.Wait(req.Context()); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.Timeout, "%s 애플리케이션 요청 속도 제한 대기 중 시간이 초과되었습니다", app)
		}
	}
	return f.delegate.Do(req)
}

// ============================================================================
// LoggingFetcher
// ============================================================================

// LoggingFetcher 요청 메서드, 주소, 상태 코드, 소요 시간을 기록합니다.
type LoggingFetcher struct {
	delegate Fetcher
}

// NewLoggingFetcher LoggingFetcher를 생성합니다.
func NewLoggingFetcher(delegate Fetcher) *LoggingFetcher {
	return &LoggingFetcher{delegate: delegate}
}

func (f *LoggingFetcher) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := f.delegate.Do(req)

	fields := applog.Fields{
		"app":      appFromContext(req.Context()),
		"method":   req.Method,
		"url":      redactURL(req.URL),
		"duration": time.Since(start).String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		applog.WithComponentAndFields(component, fields).Warn("교차 도메인 요청 실패")
		return resp, err
	}

	fields["status_code"] = resp.StatusCode
	applog.WithComponentAndFields(component, fields).Debug("교차 도메인 요청 완료")
	return resp, nil
}

// ============================================================================
// body helpers
// ============================================================================

const (
	// maxBodyBytes 응답 본문 최대 크기
	maxBodyBytes = 4 * 1024 * 1024

	// maxSnippetBytes 에러 메시지에 담을 본문 최대 크기
	maxSnippetBytes = 512

	// maxDrainBytes 커넥션 재사용을 위해 버리며 읽는 최대 크기
	maxDrainBytes = 64 * 1024
)

var drainBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 32*1024)
		return &b
	},
}

// drainAndCloseBody 남은 본문을 일부 읽어 버린 뒤 닫습니다. 커넥션이 풀로 돌아갈 수 있게 합니다.
func drainAndCloseBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	defer body.Close()

	bufPtr := drainBufPool.Get().(*[]byte)
	defer drainBufPool.Put(bufPtr)

	_, _ = io.CopyBuffer(io.Discard, io.LimitReader(body, maxDrainBytes), *bufPtr)
}

func readSnippet(body io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(body, maxSnippetBytes))
	return string(b)
}

// redactURL 쿼리 문자열의 토큰류 값을 가립니다.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	ru := *u
	ru.User = nil
	if ru.RawQuery != "" {
		q := ru.Query()
		for key := range q {
			switch key {
			case "token", "access_token", "refresh_token", "password", "key":
				q.Set(key, "xxxxx")
			}
		}
		ru.RawQuery = q.Encode()
	}
	return ru.String()
}

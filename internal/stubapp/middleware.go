package stubapp

import (
	"fmt"
	"net/url"
	"runtime"
	"sync"
	"time"

	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"github.com/darkkaiser/pops-connect/internal/suite"
	applog "github.com/darkkaiser/pops-connect/pkg/log"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// stackBufferSize panic 발생 시 스택 트레이스를 저장할 버퍼 크기 (4KB)
const stackBufferSize = 4 << 10

// sensitiveQueryParams 요청 로그에서 값을 가려야 하는 쿼리 파라미터
var sensitiveQueryParams = []string{"token", "access_token", "password", "secret"}

// panicRecovery 핸들러의 panic을 복구해서 500 응답으로 바꾸고 스택과 함께 기록합니다.
func panicRecovery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				recovered, ok := r.(error)
				if !ok {
					recovered = apperrors.New(apperrors.Internal, fmt.Sprintf("%v", r))
				}

				stack := make([]byte, stackBufferSize)
				length := runtime.Stack(stack, false)

				applog.WithComponentAndFields(component, applog.Fields{
					"error":      recovered,
					"stack":      string(stack[:length]),
					"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
				}).Error("PANIC RECOVERED")

				err = recovered
			}()
			return next(c)
		}
	}
}

// httpLogger 요청마다 구조화된 로그 한 줄을 남깁니다. 민감한 쿼리 파라미터는 가립니다.
func httpLogger(app suite.ID) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			applog.WithComponentAndFields(component, applog.Fields{
				"app":        app,
				"method":     req.Method,
				"uri":        maskSensitiveQueryParams(req.RequestURI),
				"remote_ip":  c.RealIP(),
				"status":     res.Status,
				"bytes_out":  res.Size,
				"elapsed_ms": time.Since(start).Milliseconds(),
				"request_id": res.Header().Get(echo.HeaderXRequestID),
			}).Debug("HTTP 요청")

			return nil
		}
	}
}

func maskSensitiveQueryParams(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}

	q := u.Query()
	masked := false
	for _, param := range sensitiveQueryParams {
		if q.Has(param) {
			q.Set(param, applog.MaskSensitiveData(q.Get(param)))
			masked = true
		}
	}
	if !masked {
		return uri
	}

	u.RawQuery = q.Encode()
	return u.String()
}

// ipRateLimiter IP 주소별 토큰 버킷입니다. 한 번 본 IP는 서버가 끝날 때까지 유지됩니다.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newIPRateLimiter(requestsPerSecond float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (i *ipRateLimiter) get(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	l, ok := i.limiters[ip]
	if !ok {
		l = rate.NewLimiter(i.rate, i.burst)
		i.limiters[ip] = l
	}
	return l
}

// rateLimiting IP별 요청 빈도를 제한합니다. 한도를 넘으면 429와 Retry-After를 응답합니다.
// requestsPerSecond가 0 이하이면 제한하지 않습니다.
func rateLimiting(requestsPerSecond float64, burst int) echo.MiddlewareFunc {
	if requestsPerSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if burst <= 0 {
		burst = 1
	}

	limiter := newIPRateLimiter(requestsPerSecond, burst)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !limiter.get(ip).Allow() {
				applog.WithComponentAndFields(component, applog.Fields{
					"remote_ip": ip,
					"path":      c.Request().URL.Path,
					"method":    c.Request().Method,
				}).Warn("Rate limit 초과")

				c.Response().Header().Set("Retry-After", "1")
				return ErrRateLimitExceeded
			}
			return next(c)
		}
	}
}

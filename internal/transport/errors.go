package transport

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"github.com/darkkaiser/pops-connect/internal/suite"
)

// Error 교차 도메인 요청 실패를 나타냅니다.
//
// 어떤 원인으로 실패하든 호출자가 받는 에러는 항상 *Error이며, Cause는 실패 종류에 맞는
// apperrors.AppError(Timeout, HTTP, Network, Parsing, Remote 등)입니다.
// 따라서 apperrors.Is(err, apperrors.Timeout)처럼 종류를 바로 검사할 수 있습니다.
//
//	var reqErr *transport.Error
//	if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusUnauthorized {
//	    // 재로그인
//	}
type Error struct {
	App      suite.ID
	Method   string
	Endpoint string

	// StatusCode, Status HTTP 에러일 때만 채워집니다.
	StatusCode int
	Status     string

	Cause error
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s", e.App, e.Method, e.Endpoint)
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " (HTTP %d)", e.StatusCode)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Kind 실패 종류를 반환합니다.
func (e *Error) Kind() apperrors.ErrorType {
	return apperrors.UnderlyingType(e.Cause)
}

func newError(app suite.ID, method, endpoint string, cause error) *Error {
	return &Error{App: app, Method: method, Endpoint: endpoint, Cause: cause}
}

func newTimeoutError(app suite.ID, timeout fmt.Stringer, cause error) error {
	return apperrors.Wrapf(cause, apperrors.Timeout, "%s 애플리케이션 요청 시간(%s)이 초과되었습니다", app, timeout)
}

func newNetworkError(app suite.ID, cause error) error {
	return apperrors.Wrapf(cause, apperrors.Network, "%s 애플리케이션에 연결할 수 없습니다", app)
}

func newHTTPError(app suite.ID, resp *http.Response, snippet string) error {
	msg := fmt.Sprintf("%s 애플리케이션이 HTTP %d %s 상태로 응답했습니다", app, resp.StatusCode, http.StatusText(resp.StatusCode))
	if snippet != "" {
		msg += " (본문: " + snippet + ")"
	}
	return apperrors.New(apperrors.HTTP, msg)
}

func newParsingError(app suite.ID, cause error) error {
	return apperrors.Wrapf(cause, apperrors.Parsing, "%s 애플리케이션의 응답을 해석할 수 없습니다", app)
}

func newRemoteError(app suite.ID, message string) error {
	if message == "" {
		message = "알 수 없는 오류"
	}
	return apperrors.Newf(apperrors.Remote, "%s 애플리케이션이 요청을 거부했습니다: %s", app, message)
}

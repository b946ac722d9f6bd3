package stubapp

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	// ErrInvalidCredentials 이메일 또는 비밀번호가 일치하지 않습니다.
	ErrInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, "이메일 또는 비밀번호가 올바르지 않습니다")

	// ErrInvalidJSON 요청 본문이 올바른 JSON이 아닙니다.
	ErrInvalidJSON = echo.NewHTTPError(http.StatusBadRequest, "잘못된 JSON 형식입니다")

	// ErrTitleRequired 알림 제목이 비어 있습니다.
	ErrTitleRequired = echo.NewHTTPError(http.StatusBadRequest, "title은 필수입니다")

	// ErrRateLimitExceeded 허용된 요청 빈도를 넘었습니다.
	ErrRateLimitExceeded = echo.NewHTTPError(http.StatusTooManyRequests, "요청이 너무 많습니다. 잠시 후 다시 시도해주세요")

	// ErrUnavailable 애플리케이션이 offline 상태로 전환되어 있습니다.
	ErrUnavailable = echo.NewHTTPError(http.StatusServiceUnavailable, "서비스를 사용할 수 없습니다")
)

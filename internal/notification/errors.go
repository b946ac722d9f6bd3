package notification

import (
	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"github.com/darkkaiser/pops-connect/internal/suite"
)

// newErrInvalidPayload 알림 목록을 해석할 수 없을 때의 에러를 생성합니다.
func newErrInvalidPayload(app suite.ID, cause error) error {
	return apperrors.Wrapf(cause, apperrors.Parsing, "%s 애플리케이션의 알림 목록을 해석할 수 없습니다", app)
}

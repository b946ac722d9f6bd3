package scheduler

import (
	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
)

// ErrTargetNotInitialized 갱신 대상(Refresher)이 설정되지 않았을 때 반환하는 에러입니다.
var ErrTargetNotInitialized = apperrors.New(apperrors.Internal, "Refresher 객체가 초기화되지 않았습니다")

// NewErrInvalidCronSpec Cron 표현식이 올바르지 않아 스케줄 등록에 실패했을 때 반환하는 에러를 생성합니다.
func NewErrInvalidCronSpec(spec string, cause error) error {
	return apperrors.Wrapf(cause, apperrors.InvalidInput, "스케줄 등록 실패: 잘못된 Cron 표현식입니다 (Spec='%s')", spec)
}

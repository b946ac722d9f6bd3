package realtime

import (
	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
)

var (
	// ErrClosed Close()가 호출된 Manager에 구독을 요청했습니다.
	ErrClosed = apperrors.New(apperrors.Unavailable, "실시간 채널 관리자가 이미 종료되었습니다")

	// ErrNilListener 리스너가 nil입니다.
	ErrNilListener = apperrors.New(apperrors.InvalidInput, "리스너는 nil일 수 없습니다")
)

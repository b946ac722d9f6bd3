// Package service 백그라운드에서 도는 구성 요소의 공통 수명 주기를 정의합니다.
package service

import (
	"context"
	"sync"

	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
)

// Service serviceStopCtx가 취소될 때까지 동작하는 구성 요소입니다.
//
// Start를 호출하기 전에 serviceStopWG.Add(1)을 해야 하며, 구현체는 종료가 끝나면
// (또는 시작하지 못했으면) 반드시 Done을 호출해야 합니다.
type Service interface {
	Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error
}

// Named 로그와 에러 메시지에 쓸 이름을 붙인 서비스
type Named struct {
	Name string
	Service
}

// StartAll 서비스를 순서대로 시작합니다. 하나라도 실패하면 나머지는 시작하지 않고 에러를 반환합니다.
// 이미 시작된 서비스를 멈추는 것은 serviceStopCtx를 가진 호출자의 몫입니다.
func StartAll(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup, services ...Named) error {
	for _, s := range services {
		serviceStopWG.Add(1)
		if err := s.Start(serviceStopCtx, serviceStopWG); err != nil {
			return apperrors.Wrapf(err, apperrors.Internal, "서비스 시작 실패: %s", s.Name)
		}
	}
	return nil
}

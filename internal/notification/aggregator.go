// Package notification 여러 애플리케이션의 알림을 동시에 모아 하나의 목록으로 합칩니다.
package notification

import (
	"context"
	"encoding/json"

	"github.com/darkkaiser/pops-connect/internal/suite"
	"github.com/darkkaiser/pops-connect/internal/transport"
	applog "github.com/darkkaiser/pops-connect/pkg/log"
	"golang.org/x/sync/errgroup"
)

// component 로깅용 컴포넌트 이름
const component = "notification.aggregator"

// Endpoint 알림 목록 경로
const Endpoint = "/api/notifications"

// DefaultApps 기본 알림 수집 대상
var DefaultApps = []suite.ID{suite.Money, suite.Travel, suite.Events}

// Aggregator 알림 수집기입니다.
type Aggregator struct {
	requester transport.Requester
	apps      []suite.ID
}

// NewAggregator Aggregator를 생성합니다. apps가 비어 있으면 DefaultApps를 사용합니다.
func NewAggregator(r transport.Requester, apps []suite.ID) *Aggregator {
	if len(apps) == 0 {
		apps = DefaultApps
	}
	return &Aggregator{
		requester: r,
		apps:      append([]suite.ID(nil), apps...),
	}
}

// Apps 수집 대상 애플리케이션 목록
func (a *Aggregator) Apps() []suite.ID {
	return append([]suite.ID(nil), a.apps...)
}

// FetchAll 모든 대상 애플리케이션에서 알림을 동시에 가져와 최신순으로 정렬해서 반환합니다.
//
// 한 애플리케이션의 실패는 경고 로그만 남기고 결과에서 빠질 뿐, 전체 수집을 중단시키지 않습니다.
// 따라서 이 메서드는 에러를 반환하지 않습니다.
func (a *Aggregator) FetchAll(ctx context.Context, includeRead bool) []Notification {
	endpoint := Endpoint
	if includeRead {
		endpoint += "?include_read=true"
	}

	results := make([][]Notification, len(a.apps))

	// 작업은 항상 nil을 반환하므로 하나가 실패해도 나머지가 취소되지 않습니다.
	var g errgroup.Group
	for i, app := range a.apps {
		g.Go(func() error {
			list, err := a.fetch(ctx, app, endpoint)
			if err != nil {
				applog.WithComponentAndFields(component, applog.Fields{
					"app":   app,
					"error": err,
				}).Warn("알림 수집 실패: 해당 애플리케이션을 제외합니다")
				return nil
			}
			results[i] = list
			return nil
		})
	}
	_ = g.Wait()

	var merged []Notification
	for _, list := range results {
		merged = append(merged, list...)
	}
	SortByTimestampDesc(merged)

	applog.WithComponentAndFields(component, applog.Fields{
		"apps":          len(a.apps),
		"notifications": len(merged),
		"include_read":  includeRead,
	}).Debug("알림 수집 완료")

	return merged
}

func (a *Aggregator) fetch(ctx context.Context, app suite.ID, endpoint string) ([]Notification, error) {
	data, err := a.requester.Request(ctx, app, endpoint, transport.RequestOptions{SkipCache: true})
	if err != nil {
		return nil, err
	}

	var list []Notification
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, newErrInvalidPayload(app, err)
	}
	for i := range list {
		if list[i].App == "" {
			list[i].App = app
		}
		list[i].Type = list[i].Type.normalize()
	}
	return list, nil
}

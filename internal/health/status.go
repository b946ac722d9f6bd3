package health

import (
	"strings"
	"time"

	"github.com/darkkaiser/pops-connect/internal/suite"
)

// State 애플리케이션 상태입니다. 알 수 없는 값은 항상 Offline으로 취급합니다.
type State string

const (
	Online      State = "online"
	Degraded    State = "degraded"
	Offline     State = "offline"
	Maintenance State = "maintenance"
)

// ParseState 문자열을 State로 바꿉니다. 알 수 없는 값은 Offline입니다.
func ParseState(s string) State {
	switch State(strings.ToLower(strings.TrimSpace(s))) {
	case Online:
		return Online
	case Degraded:
		return Degraded
	case Maintenance:
		return Maintenance
	default:
		return Offline
	}
}

// Status 상태 점검 결과입니다. 가장 최근 값만 유지합니다.
type Status struct {
	App       suite.ID  `json:"app"`
	State     State     `json:"status"`
	LastCheck time.Time `json:"lastCheck"`

	// ResponseTime 점검이 성공했을 때만 채워집니다.
	ResponseTime time.Duration `json:"responseTime,omitempty"`
}

// Online 애플리케이션이 정상 상태인지 여부
func (s Status) Online() bool {
	return s.State == Online
}

// OfflineStatus 점검 전이거나 알 수 없는 애플리케이션의 상태입니다.
func OfflineStatus(app suite.ID) Status {
	return Status{App: app, State: Offline}
}

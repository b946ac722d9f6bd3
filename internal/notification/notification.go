package notification

import (
	"sort"
	"time"

	"github.com/darkkaiser/pops-connect/internal/suite"
)

// Type 알림의 심각도입니다.
type Type string

const (
	Info    Type = "info"
	Success Type = "success"
	Warning Type = "warning"
	Error   Type = "error"
)

// normalize 알 수 없는 종류는 info로 취급합니다.
func (t Type) normalize() Type {
	switch t {
	case Info, Success, Warning, Error:
		return t
	default:
		return Info
	}
}

// Notification 원격 애플리케이션이 만든 알림입니다. 클라이언트는 Read 플래그만 바꿉니다.
type Notification struct {
	ID        string    `json:"id"`
	App       suite.ID  `json:"app"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	ActionURL string    `json:"actionUrl,omitempty"`
}

// SortByTimestampDesc 최신 알림이 먼저 오도록 제자리 정렬합니다. 시각이 같으면 기존 순서를 유지합니다.
func SortByTimestampDesc(list []Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.After(list[j].Timestamp)
	})
}

// UnreadCount 읽지 않은 알림 수
func UnreadCount(list []Notification) int {
	n := 0
	for _, item := range list {
		if !item.Read {
			n++
		}
	}
	return n
}

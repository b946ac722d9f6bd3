// Package suite POps 제품군을 구성하는 애플리케이션의 식별자, 메타데이터, 주소 규칙을 정의합니다.
//
// 각 애플리케이션은 독립적으로 배포되며, 운영 환경에서는 자신의 서브도메인(https://{domain}),
// 개발 환경에서는 로컬 포트(http://localhost:{port})로 접근합니다.
// 실시간 이벤트 채널은 같은 호스트의 /ws 경로를 사용합니다.
package suite

import (
	"fmt"
	"slices"

	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ID 애플리케이션 식별자입니다. 불변 값이며 맵의 키로 사용됩니다.
type ID string

const (
	Hub      ID = "hub"
	Auth     ID = "auth"
	Travel   ID = "travel"
	Money    ID = "money"
	Events   ID = "events"
	Calendar ID = "calendar"
	Docs     ID = "docs"
)

var allIDs = []ID{Hub, Auth, Travel, Money, Events, Calendar, Docs}

// All 정의된 모든 애플리케이션 식별자를 선언 순서대로 반환합니다.
func All() []ID {
	return slices.Clone(allIDs)
}

// Valid 정의된 식별자인지 여부를 반환합니다.
func (id ID) Valid() bool {
	return slices.Contains(allIDs, id)
}

func (id ID) String() string {
	return string(id)
}

// Parse 문자열을 식별자로 변환합니다.
func Parse(s string) (ID, error) {
	id := ID(s)
	if !id.Valid() {
		return "", apperrors.Newf(apperrors.InvalidInput, "알 수 없는 애플리케이션 식별자입니다: '%s'", s)
	}
	return id, nil
}

// ParseList 문자열 목록을 식별자 목록으로 변환합니다. 하나라도 잘못되면 에러를 반환합니다.
func ParseList(values []string) ([]ID, error) {
	ids := make([]ID, 0, len(values))
	for _, v := range values {
		id, err := Parse(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Environment 주소 규칙을 결정하는 실행 환경입니다.
type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
)

// ParseEnvironment 문자열을 실행 환경으로 변환합니다.
func ParseEnvironment(s string) (Environment, error) {
	switch env := Environment(s); env {
	case Production, Development:
		return env, nil
	default:
		return "", apperrors.Newf(apperrors.InvalidInput, "알 수 없는 실행 환경입니다: '%s' (production 또는 development)", s)
	}
}

// Descriptor 애플리케이션의 표시 정보와 접속 정보입니다.
type Descriptor struct {
	ID          ID
	Name        string
	Description string
	Icon        string
	Color       string
	Domain      string // 운영 환경 호스트 (예: money.pops.app)
	Port        int    // 개발 환경 로컬 포트
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s(%s)", d.Name, d.ID)
}

// Defaults 기본 애플리케이션 메타데이터 표를 반환합니다.
// 표시 이름은 식별자를 제목 형식으로 바꾼 값입니다 (예: "money" → "POps Money").
func Defaults() []Descriptor {
	defaults := []Descriptor{
		{ID: Hub, Description: "모든 애플리케이션의 시작 화면", Icon: "home", Color: "#6366F1", Domain: "hub.pops.app", Port: 3000},
		{ID: Auth, Description: "통합 로그인", Icon: "lock", Color: "#0EA5E9", Domain: "auth.pops.app", Port: 3001},
		{ID: Travel, Description: "여행 일정과 예약", Icon: "plane", Color: "#10B981", Domain: "travel.pops.app", Port: 3002},
		{ID: Money, Description: "가계부와 예산", Icon: "wallet", Color: "#F59E0B", Domain: "money.pops.app", Port: 3003},
		{ID: Events, Description: "모임과 행사 관리", Icon: "ticket", Color: "#EF4444", Domain: "events.pops.app", Port: 3004},
		{ID: Calendar, Description: "공유 캘린더", Icon: "calendar", Color: "#8B5CF6", Domain: "calendar.pops.app", Port: 3005},
		{ID: Docs, Description: "문서와 메모", Icon: "file", Color: "#64748B", Domain: "docs.pops.app", Port: 3006},
	}
	for i := range defaults {
		defaults[i].Name = DisplayName(defaults[i].ID)
	}
	return defaults
}

// DisplayName 식별자로부터 기본 표시 이름을 만듭니다.
func DisplayName(id ID) string {
	return "POps " + cases.Title(language.Und).String(string(id))
}

// Package cronx 애플리케이션 전체가 공유하는 Cron 표현식 규칙을 제공합니다.
package cronx

import (
	"github.com/robfig/cron/v3"
)

// Parser 애플리케이션의 표준 Cron 표현식 파서를 반환합니다.
//
// 표준 5필드 형식과 Descriptor를 지원하며, 초 단위 필드는 지원하지 않습니다.
// 상태 점검처럼 수십 초 간격이 필요한 작업은 @every를 사용합니다.
//
// 예시:
//   - "*/5 * * * *" : 5분마다
//   - "@every 30s"  : 30초 간격
//   - "@hourly"     : 매시간 정각
func Parser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// Validate spec이 Parser로 해석 가능한지 검사합니다.
func Validate(spec string) error {
	_, err := Parser().Parse(spec)
	return err
}

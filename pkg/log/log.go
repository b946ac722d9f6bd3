// Package log logrus 기반의 전역 로깅 유틸리티를 제공합니다.
//
// 모든 패키지는 component 상수를 선언하고 WithComponent 또는 WithComponentAndFields로
// 로그 엔트리를 만들어 사용합니다. 출력 대상(파일 로테이션, 콘솔)은 Setup에서 한 번 구성합니다.
package log

import (
	"github.com/sirupsen/logrus"
)

// WithComponent component 필드가 설정된 로그 엔트리를 반환합니다.
func WithComponent(component string) *Entry {
	return logrus.WithField("component", component)
}

// WithComponentAndFields component 필드와 추가 필드가 설정된 로그 엔트리를 반환합니다.
// fields에 component 키가 있더라도 인자로 받은 component가 우선합니다.
func WithComponentAndFields(component string, fields Fields) *Entry {
	merged := make(Fields, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["component"] = component
	return logrus.WithFields(merged)
}

// StandardLogger 전역 logrus 로거를 반환합니다. 외부 라이브러리의 로거 어댑터에서 사용합니다.
func StandardLogger() *Logger {
	return logrus.StandardLogger()
}

// SetDebugMode 디버그 모드이면 TRACE, 아니면 INFO로 로그 레벨을 바꿉니다.
func SetDebugMode(debug bool) {
	if debug {
		logrus.SetLevel(TraceLevel)
	} else {
		logrus.SetLevel(InfoLevel)
	}
}

// MaskSensitiveData 토큰이나 비밀번호처럼 민감한 문자열을 로그에 남길 수 있도록 가립니다.
//
//	""                  → ""
//	"abc"               → "***"
//	"abcdefgh"          → "abcd***"
//	"eyJhbGciOiJIUzI1N" → "eyJh***zI1N" 처럼 앞 4자와 뒤 4자만 노출
func MaskSensitiveData(data string) string {
	switch {
	case data == "":
		return ""
	case len(data) <= 3:
		return "***"
	case len(data) <= 12:
		return data[:4] + "***"
	default:
		return data[:4] + "***" + data[len(data)-4:]
	}
}

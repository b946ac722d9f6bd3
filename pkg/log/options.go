package log

import (
	"fmt"
	"os"
)

// Options 로깅 시스템 초기화 옵션입니다.
type Options struct {
	Name  string // 로그 파일명에 사용할 애플리케이션 이름
	Dir   string // 로그 파일 디렉토리 (비어 있으면 "logs")
	Level Level  // 최소 로그 레벨 (0이면 InfoLevel)

	MaxAge     int // 보관 일수 (0: 삭제하지 않음)
	MaxSizeMB  int // 파일 하나의 최대 크기 (0: 100MB)
	MaxBackups int // 보관할 백업 파일 수 (0: 20개)

	EnableCriticalLog bool // ERROR 이상을 별도의 critical 파일에도 기록
	EnableVerboseLog  bool // DEBUG 이하를 메인 파일 대신 verbose 파일에 기록
	EnableConsoleLog  bool // 모든 레벨을 표준 출력에도 기록

	ReportCaller     bool   // 호출 위치(함수명, 줄 번호) 기록 여부
	CallerPathPrefix string // 호출 위치 출력 시 잘라낼 패키지 경로 접두사
}

// Validate 옵션 값이 올바른지 검사합니다.
func (opts *Options) Validate() error {
	if opts.Name == "" {
		return fmt.Errorf("애플리케이션 이름(Name)이 비어 있습니다")
	}
	if opts.Dir != "" {
		if info, err := os.Stat(opts.Dir); err == nil && !info.IsDir() {
			return fmt.Errorf("로그 디렉토리 경로(%s)가 파일입니다", opts.Dir)
		}
	}
	if opts.MaxAge < 0 || opts.MaxSizeMB < 0 || opts.MaxBackups < 0 {
		return fmt.Errorf("로그 로테이션 값은 음수일 수 없습니다 (MaxAge=%d, MaxSizeMB=%d, MaxBackups=%d)", opts.MaxAge, opts.MaxSizeMB, opts.MaxBackups)
	}
	return nil
}

// NewProductionOptions 운영 환경용 옵션을 반환합니다.
func NewProductionOptions(appName string) Options {
	return Options{
		Name:              appName,
		Level:             InfoLevel,
		MaxAge:            30,
		MaxSizeMB:         100,
		MaxBackups:        20,
		EnableCriticalLog: true,
		EnableVerboseLog:  true,
		ReportCaller:      true,
		CallerPathPrefix:  "github.com/darkkaiser/pops-connect",
	}
}

// NewDevelopmentOptions 개발 환경용 옵션을 반환합니다. 콘솔 출력이 켜지고 TRACE까지 기록합니다.
func NewDevelopmentOptions(appName string) Options {
	opts := NewProductionOptions(appName)
	opts.Level = TraceLevel
	opts.MaxAge = 1
	opts.EnableConsoleLog = true
	return opts
}

// Package errors 교차 도메인 통신 계층에서 사용하는 타입 기반 에러를 제공합니다.
//
// 표준 errors 패키지 위에 ErrorType 분류와 호출 스택 정보를 얹은 AppError를 정의합니다.
// 전송 계층, 실시간 채널, 세션 계층은 외부 라이브러리 에러(net.Error, json.SyntaxError,
// context.DeadlineExceeded 등)를 그대로 노출하지 않고 반드시 AppError로 감싸서 반환합니다.
//
// # 사용법
//
//	err := errors.Newf(errors.Timeout, "%s 애플리케이션 요청 시간이 초과되었습니다", app)
//
//	if errors.Is(err, errors.Timeout) {
//	    // 재시도 또는 오프라인 처리
//	}
//
// # 외부 에러 분류 기준
//
//   - context.DeadlineExceeded → Timeout
//   - net.Error, url.Error, 연결 거부 → Network
//   - 2xx 이외의 HTTP 상태 코드 → HTTP
//   - JSON 디코딩 실패 → Parsing
//   - 응답 봉투의 success=false → Remote
//   - 만료된 저장 세션 → AuthExpired
package errors

import (
	"errors"
	"fmt"
	"io"
)

// AppError 분류 타입, 메시지, 원인 에러, 생성 시점의 호출 스택을 함께 담는 에러입니다.
type AppError struct {
	errType ErrorType
	message string
	cause   error
	stack   pcs
}

// Type 에러의 분류 타입을 반환합니다.
func (e *AppError) Type() ErrorType {
	return e.errType
}

// Message 원인 에러를 제외한 메시지를 반환합니다.
func (e *AppError) Message() string {
	return e.message
}

// Stack 에러 생성 시점의 호출 스택을 반환합니다.
func (e *AppError) Stack() []StackFrame {
	return e.stack.frames()
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.errType, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.errType, e.message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Format %+v 동사로 출력하면 에러 체인과 호출 스택을 여러 줄로 출력합니다.
//
// 호출 스택은 체인의 끝(원인이 없는 AppError)이거나 외부 에러를 감싼 AppError에서만 출력하여
// 같은 스택이 중복으로 찍히지 않도록 합니다.
func (e *AppError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "[%s] %s", e.errType, e.message)

			var inner *AppError
			if e.cause == nil || !errors.As(e.cause, &inner) {
				if frames := e.stack.frames(); len(frames) > 0 {
					fmt.Fprint(s, "\nStack trace:")
					for _, frame := range frames {
						fmt.Fprintf(s, "\n\t%s", frame)
					}
				}
			}

			if e.cause != nil {
				fmt.Fprint(s, "\nCaused by:\n")
				if f, ok := e.cause.(fmt.Formatter); ok {
					f.Format(s, verb)
				} else {
					fmt.Fprintf(s, "\t%v", e.cause)
				}
			}
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// New 새로운 에러를 생성합니다.
func New(errType ErrorType, message string) error {
	return &AppError{errType: errType, message: message, stack: capture(callerSkip)}
}

// Newf 포맷 문자열로 메시지를 만들어 새로운 에러를 생성합니다.
func Newf(errType ErrorType, format string, args ...any) error {
	return &AppError{errType: errType, message: fmt.Sprintf(format, args...), stack: capture(callerSkip)}
}

// Wrap 원인 에러를 감싸서 새로운 에러를 생성합니다. err이 nil이면 nil을 반환합니다.
func Wrap(err error, errType ErrorType, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{errType: errType, message: message, cause: err, stack: capture(callerSkip)}
}

// Wrapf 포맷 문자열로 메시지를 만들어 원인 에러를 감쌉니다. err이 nil이면 nil을 반환합니다.
func Wrapf(err error, errType ErrorType, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &AppError{errType: errType, message: fmt.Sprintf(format, args...), cause: err, stack: capture(callerSkip)}
}

// Is 에러 체인 안에 주어진 타입의 AppError가 있는지 검사합니다.
func Is(err error, errType ErrorType) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.errType == errType {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// As 표준 errors.As의 별칭입니다.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// RootCause 에러 체인의 가장 안쪽 에러를 반환합니다.
func RootCause(err error) error {
	if err == nil {
		return nil
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// UnderlyingType 에러 체인에서 가장 안쪽에 있는 AppError의 타입을 반환합니다.
//
// 전송 계층 에러가 세션 계층에서 한 번 더 감싸지더라도 원래의 분류(Timeout, HTTP 등)를
// 알아낼 때 사용합니다. 체인에 AppError가 없으면 Unknown을 반환합니다.
func UnderlyingType(err error) ErrorType {
	last := Unknown
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			last = appErr.errType
		}
		err = errors.Unwrap(err)
	}
	return last
}

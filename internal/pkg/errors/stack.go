package errors

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// callerSkip runtime.Callers, capture, 공개 생성 함수(New, Wrap 등)를 건너뛰어
// 에러를 만든 위치가 첫 프레임이 되게 합니다.
const callerSkip = 3

// stackDepth 보관하는 최대 프레임 수
const stackDepth = 5

// StackFrame 호출 스택의 한 프레임
type StackFrame struct {
	File     string
	Line     int
	Function string
}

// String "file.go:42 pkg.Func" 형식. 함수 이름의 패키지 경로는 마지막 요소만 남깁니다.
func (f StackFrame) String() string {
	fn := f.Function
	if i := strings.LastIndex(fn, "/"); i != -1 {
		fn = fn[i+1:]
	}
	return fmt.Sprintf("%s:%d %s", f.File, f.Line, fn)
}

// pcs 프로그램 카운터만 보관하고, 프레임 정보는 필요할 때 해석합니다.
// 대부분의 에러는 스택을 출력하지 않고 버려지기 때문입니다.
type pcs []uintptr

func capture(skip int) pcs {
	var buf [stackDepth]uintptr
	n := runtime.Callers(skip, buf[:])
	if n == 0 {
		return nil
	}
	return append(pcs(nil), buf[:n]...)
}

func (p pcs) frames() []StackFrame {
	if len(p) == 0 {
		return nil
	}

	out := make([]StackFrame, 0, len(p))
	it := runtime.CallersFrames(p)
	for {
		f, more := it.Next()
		out = append(out, StackFrame{File: filepath.Base(f.File), Line: f.Line, Function: f.Function})
		if !more {
			return out
		}
	}
}

package log

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// hook 로그 엔트리를 레벨에 따라 여러 출력 대상으로 분배합니다.
//
//   - console: 모든 레벨
//   - critical: ERROR, FATAL, PANIC
//   - verbose: DEBUG, TRACE (verbose가 설정되면 이 레벨은 main에 기록하지 않음)
//   - main: 나머지 전부
type hook struct {
	mainWriter     io.Writer
	criticalWriter io.Writer
	verboseWriter  io.Writer
	consoleWriter  io.Writer

	formatter Formatter

	mu     sync.RWMutex
	closed bool
}

func (h *hook) Levels() []Level {
	return AllLevels
}

func (h *hook) Fire(entry *Entry) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil
	}

	msg, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	var firstErr error
	write := func(w io.Writer, name string) {
		if w == nil {
			return
		}
		if _, err := w.Write(msg); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			fmt.Fprintf(os.Stderr, "[LOG-SYSTEM] %s 로그 쓰기 실패: %v\n", name, err)
		}
	}

	write(h.consoleWriter, "console")

	if entry.Level <= ErrorLevel {
		write(h.criticalWriter, "critical")
	}

	if entry.Level >= DebugLevel && h.verboseWriter != nil {
		write(h.verboseWriter, "verbose")
		return firstErr
	}

	write(h.mainWriter, "main")

	return firstErr
}

// Close 이후의 Fire 호출을 모두 무시하도록 표시합니다.
func (h *hook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	return nil
}

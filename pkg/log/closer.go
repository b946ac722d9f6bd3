package log

import (
	"errors"
	"io"
	"sync/atomic"
)

// closer Setup이 연 로그 파일과 hook을 한 번에 정리합니다. 여러 번 호출해도 안전합니다.
type closer struct {
	closers []io.Closer
	hook    *hook

	closed atomic.Bool
}

func (c *closer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	// hook을 먼저 닫아야 파일이 닫힌 뒤 들어오는 쓰기가 없습니다.
	if c.hook != nil {
		_ = c.hook.Close()
	}

	var errs error
	for _, cl := range c.closers {
		if cl == nil {
			continue
		}
		if err := cl.Close(); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

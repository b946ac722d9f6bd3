package session

import (
	"time"

	"github.com/darkkaiser/pops-connect/internal/suite"
)

// DefaultHistorySize 이동 기록 최대 개수
const DefaultHistorySize = 10

// HistoryEntry 애플리케이션 이동 기록입니다.
type HistoryEntry struct {
	App  suite.ID  `json:"app"`
	Path string    `json:"path"`
	At   time.Time `json:"at"`
}

// history 고정 크기 링 버퍼입니다. 가득 차면 가장 오래된 기록을 덮어씁니다.
type history struct {
	buf   []HistoryEntry
	start int
	size  int
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &history{buf: make([]HistoryEntry, capacity)}
}

func (h *history) push(e HistoryEntry) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = e
		h.size++
		return
	}
	h.buf[h.start] = e
	h.start = (h.start + 1) % len(h.buf)
}

// entries 오래된 순서로 복사본을 반환합니다.
func (h *history) entries() []HistoryEntry {
	out := make([]HistoryEntry, h.size)
	for i := range h.size {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

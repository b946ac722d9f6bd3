// Package cache 교차 도메인 GET 응답을 짧은 시간 동안 보관하는 메모리 캐시를 제공합니다.
//
// 항목은 (애플리케이션, 엔드포인트) 쌍으로 식별됩니다. 만료는 조회 시점에만 판정하며(lazy expiry),
// 만료된 항목은 덮어쓰이거나 Clear가 호출될 때까지 남아 있지만 조회 결과로는 절대 반환되지 않습니다.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/darkkaiser/pops-connect/internal/suite"
)

// DefaultTTL 기본 유효 시간입니다.
const DefaultTTL = 5 * time.Minute

// Key 캐시 항목의 식별자입니다.
type Key struct {
	App      suite.ID
	Endpoint string
}

func (k Key) String() string {
	return string(k.App) + ":" + k.Endpoint
}

type entry struct {
	payload    []byte
	capturedAt time.Time
}

// EntryStat 진단용 항목 정보입니다.
type EntryStat struct {
	Key     Key
	Age     time.Duration
	Expired bool
}

// Stats 진단용 캐시 상태입니다. Size에는 만료되었지만 아직 남아 있는 항목도 포함됩니다.
type Stats struct {
	Size    int
	Entries []EntryStat
}

// Cache 동시 사용에 안전한 TTL 캐시입니다.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[Key]entry
}

// Option Cache 생성 옵션입니다.
type Option func(*Cache)

// WithClock 현재 시각 함수를 바꿉니다.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New 유효 시간이 ttl인 캐시를 생성합니다. ttl이 0 이하이면 DefaultTTL을 사용합니다.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[Key]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL 유효 시간을 반환합니다.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get 유효 시간 안에 저장된 항목이 있으면 그 사본을 반환합니다.
func (c *Cache) Get(app suite.ID, endpoint string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[Key{App: app, Endpoint: endpoint}]
	c.mu.RUnlock()

	if !ok || c.expired(e) {
		return nil, false
	}
	return clone(e.payload), true
}

// Set 항목을 저장하거나 덮어씁니다. 저장 시각은 현재 시각입니다.
func (c *Cache) Set(app suite.ID, endpoint string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[Key{App: app, Endpoint: endpoint}] = entry{
		payload:    clone(payload),
		capturedAt: c.now(),
	}
}

// Clear 모든 항목을 지웁니다.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]entry)
}

// Stats 현재 항목 수와 항목별 경과 시간을 반환합니다. 항목은 키 순서로 정렬됩니다.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	s := Stats{Size: len(c.entries), Entries: make([]EntryStat, 0, len(c.entries))}
	for k, e := range c.entries {
		age := now.Sub(e.capturedAt)
		s.Entries = append(s.Entries, EntryStat{Key: k, Age: age, Expired: age > c.ttl})
	}
	sort.Slice(s.Entries, func(i, j int) bool {
		return s.Entries[i].Key.String() < s.Entries[j].Key.String()
	})
	return s
}

// expired 경과 시간이 TTL을 넘으면 만료로 봅니다. 경과 시간이 정확히 TTL이면 아직 유효합니다.
func (c *Cache) expired(e entry) bool {
	return c.now().Sub(e.capturedAt) > c.ttl
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

package session

import (
	"sync"

	applog "github.com/darkkaiser/pops-connect/pkg/log"
	"github.com/pkg/browser"
)

// Navigator 다른 애플리케이션으로 이동합니다. UI 계층이 이 인터페이스를 구현합니다.
type Navigator interface {
	Navigate(url string, newTab bool) error
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var (
	_ Navigator = (*BrowserNavigator)(nil)
	_ Navigator = (*LogNavigator)(nil)
)

// BrowserNavigator 시스템 기본 브라우저로 주소를 엽니다. 브라우저는 탭을 직접 고르므로 newTab은 무시됩니다.
type BrowserNavigator struct {
	open func(url string) error
}

// NewBrowserNavigator BrowserNavigator를 생성합니다.
func NewBrowserNavigator() *BrowserNavigator {
	return &BrowserNavigator{open: browser.OpenURL}
}

func (n *BrowserNavigator) Navigate(url string, _ bool) error {
	return n.open(url)
}

// LogNavigator 이동하지 않고 기록만 남깁니다. 화면이 없는 환경에서 사용합니다.
type LogNavigator struct {
	mu   sync.Mutex
	last string
}

func (n *LogNavigator) Navigate(url string, newTab bool) error {
	n.mu.Lock()
	n.last = url
	n.mu.Unlock()

	applog.WithComponentAndFields(component, applog.Fields{
		"url":     url,
		"new_tab": newTab,
	}).Info("애플리케이션 이동")
	return nil
}

// Last 마지막으로 이동한 주소
func (n *LogNavigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

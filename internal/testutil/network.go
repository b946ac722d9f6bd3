// Package testutil 여러 패키지의 테스트에서 공통으로 사용하는 도우미를 제공합니다.
package testutil

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/darkkaiser/pops-connect/internal/suite"
)

// GetFreePort 테스트용으로 사용 가능한 임의의 포트를 반환합니다.
func GetFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// WaitForServer 서버가 해당 포트에서 연결을 받을 때까지 대기합니다.
func WaitForServer(port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("server did not start on port %d within %v", port, timeout)
}

// PortOf http://127.0.0.1:1234 형태의 주소에서 포트 번호를 꺼냅니다.
func PortOf(tb testing.TB, rawURL string) int {
	tb.Helper()

	u, err := url.Parse(rawURL)
	if err != nil {
		tb.Fatalf("invalid url %q: %v", rawURL, err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		tb.Fatalf("url %q has no port: %v", rawURL, err)
	}
	return port
}

// DevRegistry 개발 환경 Registry를 만들고, servers에 지정된 애플리케이션의 포트를 테스트 서버 포트로 바꿉니다.
// 지정되지 않은 애플리케이션은 아무도 듣고 있지 않은 포트를 가리킵니다.
func DevRegistry(tb testing.TB, servers map[suite.ID]string) *suite.Registry {
	tb.Helper()

	unused, err := GetFreePort()
	if err != nil {
		tb.Fatalf("GetFreePort: %v", err)
	}

	overrides := make([]suite.Descriptor, 0, len(suite.All()))
	for _, id := range suite.All() {
		port := unused
		if u, ok := servers[id]; ok {
			port = PortOf(tb, u)
		}
		overrides = append(overrides, suite.Descriptor{ID: id, Port: port})
	}

	r, err := suite.NewRegistry(suite.Development, overrides)
	if err != nil {
		tb.Fatalf("NewRegistry: %v", err)
	}
	return r
}

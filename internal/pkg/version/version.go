// Package version pops-connect 바이너리의 빌드 정보를 제공합니다.
//
// 릴리스 빌드는 링커 플래그로 값을 주입합니다.
//
//	go build -ldflags "-X github.com/darkkaiser/pops-connect/internal/pkg/version.release=v0.3.0 \
//	  -X github.com/darkkaiser/pops-connect/internal/pkg/version.revision=$(git rev-parse HEAD)"
//
// 주입되지 않은 값은 실행 파일에 기록된 VCS 메타데이터에서 채웁니다.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

// Product User-Agent 헤더 등에 쓰이는 제품 이름
const Product = "pops-connect"

const unknown = "unknown"

// 링커 플래그로 주입됩니다. 직접 읽지 말고 Get()을 사용하세요.
var (
	release   = ""
	revision  = ""
	builtAt   = ""
	treeState = ""
)

// readBuildInfo 테스트에서 교체합니다.
var readBuildInfo = debug.ReadBuildInfo

// Info 빌드 정보
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Modified  bool   `json:"modified"`
}

var current = sync.OnceValue(func() Info {
	return resolve(Info{
		Version:   strings.TrimSpace(release),
		Commit:    strings.TrimSpace(revision),
		BuildDate: strings.TrimSpace(builtAt),
		Modified:  strings.EqualFold(strings.TrimSpace(treeState), "dirty"),
	})
})

// Get 현재 바이너리의 빌드 정보를 반환합니다.
func Get() Info {
	return current()
}

// resolve 비어 있는 필드를 런타임 정보와 VCS 메타데이터로 채웁니다.
// 이미 주입된 값은 덮어쓰지 않습니다.
func resolve(bi Info) Info {
	bi.GoVersion = runtime.Version()
	bi.Platform = runtime.GOOS + "/" + runtime.GOARCH

	if b, ok := readBuildInfo(); ok {
		for _, s := range b.Settings {
			switch s.Key {
			case "vcs.revision":
				if bi.Commit == "" {
					bi.Commit = s.Value
				}
			case "vcs.time":
				if bi.BuildDate == "" {
					bi.BuildDate = s.Value
				}
			case "vcs.modified":
				bi.Modified = bi.Modified || s.Value == "true"
			}
		}
		if bi.Version == "" && b.Main.Version != "" && b.Main.Version != "(devel)" {
			bi.Version = b.Main.Version
		}
	}

	if bi.Version == "" {
		bi.Version = "dev"
	}
	if bi.Commit == "" {
		bi.Commit = unknown
	}
	return bi
}

// ShortCommit 커밋 해시 앞 7자리
func (i Info) ShortCommit() string {
	if len(i.Commit) > 7 {
		return i.Commit[:7]
	}
	return i.Commit
}

// UserAgent suite 애플리케이션에 보내는 요청의 User-Agent 값입니다. 예: "pops-connect/v0.3.0 (linux/amd64)"
func (i Info) UserAgent() string {
	return fmt.Sprintf("%s/%s (%s)", Product, i.Version, i.Platform)
}

// Fields 구조적 로깅용 필드
func (i Info) Fields() map[string]any {
	return map[string]any{
		"version":    i.Version,
		"commit":     i.ShortCommit(),
		"build_date": i.BuildDate,
		"go_version": i.GoVersion,
		"platform":   i.Platform,
		"modified":   i.Modified,
	}
}

func (i Info) String() string {
	v := i.Version
	if i.Modified {
		v += "+dirty"
	}

	parts := []string{i.Platform, i.GoVersion}
	if i.Commit != unknown {
		parts = append([]string{i.ShortCommit()}, parts...)
	}
	return fmt.Sprintf("%s (%s)", v, strings.Join(parts, ", "))
}

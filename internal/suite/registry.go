package suite

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
)

// realtimePath 실시간 이벤트 채널의 경로
const realtimePath = "/ws"

// Registry 실행 환경과 애플리케이션 메타데이터를 보관하고 주소를 계산합니다.
//
// 생성 이후에는 변경되지 않으므로 여러 고루틴에서 동시에 사용해도 안전합니다.
type Registry struct {
	env   Environment
	byID  map[ID]Descriptor
	order []ID
}

// NewRegistry 기본 메타데이터 표 위에 overrides를 덮어써서 Registry를 생성합니다.
//
// overrides의 비어 있지 않은 필드만 기본값을 대체합니다.
func NewRegistry(env Environment, overrides []Descriptor) (*Registry, error) {
	if _, err := ParseEnvironment(string(env)); err != nil {
		return nil, err
	}

	r := &Registry{
		env:  env,
		byID: make(map[ID]Descriptor, len(allIDs)),
	}
	for _, d := range Defaults() {
		r.byID[d.ID] = d
		r.order = append(r.order, d.ID)
	}

	seen := make(map[ID]struct{}, len(overrides))
	for _, o := range overrides {
		if !o.ID.Valid() {
			return nil, apperrors.Newf(apperrors.InvalidInput, "알 수 없는 애플리케이션 식별자입니다: '%s'", o.ID)
		}
		if _, dup := seen[o.ID]; dup {
			return nil, apperrors.Newf(apperrors.InvalidInput, "애플리케이션('%s') 설정이 중복되었습니다", o.ID)
		}
		seen[o.ID] = struct{}{}

		r.byID[o.ID] = merge(r.byID[o.ID], o)
	}

	for id, d := range r.byID {
		if d.Port < 0 || d.Port > 65535 {
			return nil, apperrors.Newf(apperrors.InvalidInput, "애플리케이션('%s')의 포트(%d)가 올바르지 않습니다", id, d.Port)
		}
	}

	return r, nil
}

func merge(base, o Descriptor) Descriptor {
	if strings.TrimSpace(o.Name) != "" {
		base.Name = o.Name
	}
	if o.Description != "" {
		base.Description = o.Description
	}
	if o.Icon != "" {
		base.Icon = o.Icon
	}
	if o.Color != "" {
		base.Color = o.Color
	}
	if o.Domain != "" {
		base.Domain = o.Domain
	}
	if o.Port != 0 {
		base.Port = o.Port
	}
	return base
}

// Environment 실행 환경을 반환합니다.
func (r *Registry) Environment() Environment {
	return r.env
}

// Lookup 식별자에 해당하는 메타데이터를 반환합니다.
func (r *Registry) Lookup(id ID) (Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, apperrors.Newf(apperrors.NotFound, "등록되지 않은 애플리케이션입니다: '%s'", id)
	}
	return d, nil
}

// Descriptors 모든 애플리케이션 메타데이터를 식별자 선언 순서대로 반환합니다.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// BaseURL 애플리케이션의 기준 주소를 반환합니다.
//
//	production:  https://{domain}
//	development: http://localhost:{port}
func (r *Registry) BaseURL(id ID) (string, error) {
	d, err := r.Lookup(id)
	if err != nil {
		return "", err
	}

	if r.env == Development {
		if d.Port == 0 {
			return "", apperrors.Newf(apperrors.InvalidInput, "애플리케이션('%s')의 개발 환경 포트가 설정되지 않았습니다", id)
		}
		return fmt.Sprintf("http://localhost:%d", d.Port), nil
	}

	if d.Domain == "" {
		return "", apperrors.Newf(apperrors.InvalidInput, "애플리케이션('%s')의 도메인이 설정되지 않았습니다", id)
	}
	return "https://" + d.Domain, nil
}

// URL 기준 주소에 path를 이어 붙인 주소를 반환합니다. path에는 쿼리 문자열이 포함될 수 있습니다.
func (r *Registry) URL(id ID, path string) (string, error) {
	base, err := r.BaseURL(id)
	if err != nil {
		return "", err
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path, nil
}

// RealtimeURL 실시간 이벤트 채널 주소를 반환합니다. 스킴만 http→ws, https→wss로 바꿉니다.
func (r *Registry) RealtimeURL(id ID) (string, error) {
	base, err := r.BaseURL(id)
	if err != nil {
		return "", err
	}
	return ToWebSocketURL(base + realtimePath)
}

// ToWebSocketURL http(s) 주소의 스킴을 ws(s)로 바꿉니다.
func ToWebSocketURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.InvalidInput, "주소를 해석할 수 없습니다: '%s'", rawURL)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", apperrors.Newf(apperrors.InvalidInput, "지원하지 않는 스킴입니다: '%s'", u.Scheme)
	}
	return u.String(), nil
}

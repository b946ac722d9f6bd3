package config

import (
	"fmt"
	"time"

	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"github.com/darkkaiser/pops-connect/internal/suite"
	"github.com/darkkaiser/pops-connect/pkg/cronx"
	"github.com/go-playground/validator/v10"
)

// AppConfig 최상위 설정 구조체입니다.
type AppConfig struct {
	Debug         bool                `json:"debug"`
	Environment   string              `json:"environment"`
	Applications  []ApplicationConfig `json:"applications"`
	Transport     TransportConfig     `json:"transport"`
	Realtime      RealtimeConfig      `json:"realtime"`
	Health        HealthConfig        `json:"health"`
	Notifications NotificationConfig  `json:"notifications"`
	Updates       UpdatesConfig       `json:"updates"`
	Session       SessionConfig       `json:"session"`
	Metrics       MetricsConfig       `json:"metrics"`
}

func (c *AppConfig) validate(v *validator.Validate) error {
	if err := v.Var(c.Environment, "oneof=production development"); err != nil {
		return apperrors.Newf(apperrors.InvalidInput, "실행 환경(environment)은 production 또는 development 중 하나여야 합니다: '%s'", c.Environment)
	}

	if err := checkUniqueField(v, c.Applications, "ID", "애플리케이션"); err != nil {
		return err
	}
	for _, app := range c.Applications {
		if err := checkStruct(v, app, fmt.Sprintf("Application['%s']", app.ID)); err != nil {
			return err
		}
	}

	if err := c.Transport.validate(v); err != nil {
		return err
	}
	if err := checkStruct(v, c.Realtime, "실시간 채널(realtime)"); err != nil {
		return err
	}
	if err := c.Health.validate(v); err != nil {
		return err
	}
	if err := checkStruct(v, c.Notifications, "알림(notifications)"); err != nil {
		return err
	}
	if err := checkStruct(v, c.Updates, "실시간 갱신(updates)"); err != nil {
		return err
	}
	if err := checkStruct(v, c.Session, "세션(session)"); err != nil {
		return err
	}
	return checkStruct(v, c.Metrics, "메트릭(metrics)")
}

// SuiteEnvironment 실행 환경을 반환합니다.
func (c *AppConfig) SuiteEnvironment() suite.Environment {
	return suite.Environment(c.Environment)
}

// Descriptors 설정 파일의 애플리케이션 항목을 suite.Descriptor로 변환합니다.
// 검증을 통과한 설정에서만 호출해야 합니다.
func (c *AppConfig) Descriptors() []suite.Descriptor {
	out := make([]suite.Descriptor, 0, len(c.Applications))
	for _, a := range c.Applications {
		out = append(out, suite.Descriptor{
			ID:          suite.ID(a.ID),
			Name:        a.Name,
			Description: a.Description,
			Icon:        a.Icon,
			Color:       a.Color,
			Domain:      a.Domain,
			Port:        a.Port,
		})
	}
	return out
}

// ApplicationConfig 애플리케이션 메타데이터 덮어쓰기 항목입니다. 비어 있는 필드는 기본값을 유지합니다.
type ApplicationConfig struct {
	ID          string `json:"id" validate:"required,app_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
	Domain      string `json:"domain" validate:"omitempty,hostname_rfc1123"`
	Port        int    `json:"port" validate:"min=0,max=65535"`
}

// TransportConfig 교차 도메인 요청 설정입니다.
type TransportConfig struct {
	Timeout    time.Duration     `json:"timeout" validate:"gt=0"`
	CacheTTL   time.Duration     `json:"cache_ttl" validate:"gt=0"`
	RateLimits []RateLimitConfig `json:"rate_limits"`
}

func (c *TransportConfig) validate(v *validator.Validate) error {
	if err := checkStruct(v, c, "전송(transport)"); err != nil {
		return err
	}
	if err := checkUniqueField(v, c.RateLimits, "App", "요청 속도 제한"); err != nil {
		return err
	}
	for _, rl := range c.RateLimits {
		if err := checkStruct(v, rl, fmt.Sprintf("RateLimit['%s']", rl.App)); err != nil {
			return err
		}
	}
	return nil
}

// RateLimitConfig 애플리케이션별 클라이언트 측 요청 속도 제한입니다.
type RateLimitConfig struct {
	App               string  `json:"app" validate:"required,app_id"`
	RequestsPerSecond float64 `json:"requests_per_second" validate:"gt=0"`
	Burst             int     `json:"burst" validate:"min=1"`
}

// RealtimeConfig 실시간 이벤트 채널 설정입니다.
type RealtimeConfig struct {
	HeartbeatInterval    time.Duration `json:"heartbeat_interval" validate:"gt=0"`
	MaxReconnectAttempts int           `json:"max_reconnect_attempts" validate:"min=0"`
	ReconnectDelay       time.Duration `json:"reconnect_delay" validate:"gt=0"`
}

// HealthConfig 상태 점검 설정입니다. Apps가 비어 있으면 모든 애플리케이션을 점검합니다.
type HealthConfig struct {
	Timeout     time.Duration `json:"timeout" validate:"gt=0"`
	Apps        []string      `json:"apps" validate:"unique,dive,app_id"`
	RefreshSpec string        `json:"refresh_spec" validate:"required"`
}

func (c *HealthConfig) validate(v *validator.Validate) error {
	if err := checkStruct(v, c, "상태 점검(health)"); err != nil {
		return err
	}
	if err := cronx.Validate(c.RefreshSpec); err != nil {
		return apperrors.Wrapf(err, apperrors.InvalidInput, "상태 점검 주기(refresh_spec) 형식이 올바르지 않습니다: '%s' (예: @every 30s)", c.RefreshSpec)
	}
	return nil
}

// StatusApps 상태를 점검할 애플리케이션 목록을 반환합니다.
func (c *HealthConfig) StatusApps() []suite.ID {
	if len(c.Apps) == 0 {
		return suite.All()
	}
	return toIDs(c.Apps)
}

// NotificationConfig 알림 수집 설정입니다.
type NotificationConfig struct {
	Apps []string `json:"apps" validate:"min=1,unique,dive,app_id"`
}

// AppIDs 알림을 수집할 애플리케이션 목록을 반환합니다.
func (c *NotificationConfig) AppIDs() []suite.ID {
	return toIDs(c.Apps)
}

// UpdatesConfig 실시간 갱신을 구독할 애플리케이션 설정입니다.
type UpdatesConfig struct {
	Apps []string `json:"apps" validate:"unique,dive,app_id"`
}

// AppIDs 실시간 갱신을 구독할 애플리케이션 목록을 반환합니다.
func (c *UpdatesConfig) AppIDs() []suite.ID {
	return toIDs(c.Apps)
}

// SessionConfig 세션 저장소와 로그인 화면 설정입니다.
type SessionConfig struct {
	StoragePath string `json:"storage_path" validate:"required"`
	AuthApp     string `json:"auth_app" validate:"required,app_id"`
	LoginPath   string `json:"login_path" validate:"required,startswith=/"`
	HistorySize int    `json:"history_size" validate:"min=1,max=100"`
	OpenBrowser bool   `json:"open_browser"`
}

// MetricsConfig 프로메테우스 메트릭 노출 설정입니다. ListenAddr이 비어 있으면 노출하지 않습니다.
type MetricsConfig struct {
	ListenAddr string `json:"listen_addr" validate:"omitempty,hostname_port"`
}

func toIDs(values []string) []suite.ID {
	ids := make([]suite.ID, 0, len(values))
	for _, v := range values {
		ids = append(ids, suite.ID(v))
	}
	return ids
}

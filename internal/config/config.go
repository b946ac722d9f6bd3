package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"github.com/go-viper/mapstructure/v2"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// AppName 애플리케이션 이름입니다. 로그 파일명과 설정 파일명에 사용됩니다.
	AppName = "pops-connect"

	// DefaultFilename 기본 설정 파일명입니다.
	DefaultFilename = AppName + ".json"

	// envPrefix 환경 변수 접두사입니다.
	// 예: POPS_TRANSPORT__TIMEOUT=5s → transport.timeout
	envPrefix = "POPS_"
)

// 기본값
const (
	DefaultEnvironment          = "production"
	DefaultRequestTimeout       = 10 * time.Second
	DefaultCacheTTL             = 5 * time.Minute
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = time.Second
	DefaultHealthTimeout        = 5 * time.Second
	DefaultRefreshSpec          = "@every 30s"
	DefaultStoragePath          = "pops-session.json"
	DefaultAuthApp              = "auth"
	DefaultLoginPath            = "/login"
	DefaultHistorySize          = 10
)

// DefaultNotificationApps 알림을 모아 올 기본 애플리케이션 목록입니다.
var DefaultNotificationApps = []string{"money", "travel", "events"}

// newDefaultConfig 모든 설정 항목의 기본값을 담은 AppConfig를 반환합니다.
func newDefaultConfig() AppConfig {
	return AppConfig{
		Environment: DefaultEnvironment,
		Transport: TransportConfig{
			Timeout:  DefaultRequestTimeout,
			CacheTTL: DefaultCacheTTL,
		},
		Realtime: RealtimeConfig{
			HeartbeatInterval:    DefaultHeartbeatInterval,
			MaxReconnectAttempts: DefaultMaxReconnectAttempts,
			ReconnectDelay:       DefaultReconnectDelay,
		},
		Health: HealthConfig{
			Timeout:     DefaultHealthTimeout,
			RefreshSpec: DefaultRefreshSpec,
		},
		Notifications: NotificationConfig{
			Apps: append([]string(nil), DefaultNotificationApps...),
		},
		Updates: UpdatesConfig{
			Apps: append([]string(nil), DefaultNotificationApps...),
		},
		Session: SessionConfig{
			StoragePath: DefaultStoragePath,
			AuthApp:     DefaultAuthApp,
			LoginPath:   DefaultLoginPath,
			HistorySize: DefaultHistorySize,
		},
	}
}

// Load 기본 설정 파일을 읽어 설정을 로드합니다. 기본 설정 파일이 없으면 기본값과 환경 변수만 사용합니다.
func Load() (*AppConfig, error) {
	if _, err := os.Stat(DefaultFilename); os.IsNotExist(err) {
		return load("")
	}
	return load(DefaultFilename)
}

// LoadWithFile 지정한 설정 파일을 읽어 설정을 로드합니다. 파일이 없으면 에러를 반환합니다.
func LoadWithFile(filename string) (*AppConfig, error) {
	return load(filename)
}

// load 기본값 → JSON 파일 → 환경 변수 순서로 덮어쓴 뒤 구조체로 변환하고 검증합니다.
func load(filename string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(newDefaultConfig(), "json"), nil); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "기본 설정을 불러오지 못했습니다")
	}

	if filename != "" {
		if err := k.Load(file.Provider(filename), json.Parser()); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, apperrors.Wrapf(err, apperrors.NotFound, "설정 파일을 찾을 수 없습니다: '%s'", filename)
			}
			return nil, apperrors.Wrapf(err, apperrors.InvalidInput, "설정 파일을 읽는 중 오류가 발생했습니다: '%s'", filename)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", normalizeEnvKey), nil); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "환경 변수를 불러오지 못했습니다")
	}

	var cfg AppConfig
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			ErrorUnused:      true, // 구조체에 없는 키가 있으면 오타로 간주합니다.
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidInput, "설정 값을 구조체로 변환하지 못했습니다")
	}

	if err := cfg.validate(newValidator()); err != nil {
		source := filename
		if source == "" {
			source = "기본값/환경 변수"
		}
		return nil, apperrors.Wrapf(err, apperrors.InvalidInput, "설정('%s') 검증에 실패했습니다", source)
	}

	return &cfg, nil
}

// normalizeEnvKey 환경 변수 이름을 koanf 키 경로로 바꿉니다.
//
// 이중 밑줄(__)은 계층 구분자이며, 각 단계는 snake_case로 정규화됩니다.
//
//	POPS_DEBUG                            → debug
//	POPS_REALTIME__MAX_RECONNECT_ATTEMPTS → realtime.max_reconnect_attempts
func normalizeEnvKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	parts := strings.Split(s, "__")
	for i, p := range parts {
		parts[i] = strcase.ToSnake(p)
	}
	return strings.Join(parts, ".")
}

// String 설정 요약을 반환합니다. 기동 로그에 사용합니다.
func (c *AppConfig) String() string {
	return fmt.Sprintf("environment=%s, apps=%d, timeout=%s, cache_ttl=%s, heartbeat=%s, max_reconnect=%d, refresh=%q",
		c.Environment, len(c.Applications), c.Transport.Timeout, c.Transport.CacheTTL,
		c.Realtime.HeartbeatInterval, c.Realtime.MaxReconnectAttempts, c.Health.RefreshSpec)
}

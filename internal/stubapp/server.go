// Package stubapp suite 애플리케이션 하나를 흉내 내는 개발·테스트용 HTTP 서버입니다.
//
// 실제 애플리케이션과 같은 응답 봉투와 경로를 제공하므로, 클라이언트 라이브러리 전체를
// 외부 서비스 없이 끝에서 끝까지 실행해 볼 수 있습니다.
//
//	GET  /api/health                   상태 (SetHealth로 전환)
//	GET  /api/notifications            알림 목록 (include_read=true면 읽은 알림 포함)
//	POST /api/notifications            알림 추가 후 /ws로 notification 이벤트 전송
//	POST /api/auth/login               HS256 JWT 발급
//	GET  /ws                           실시간 이벤트 채널 (ping에 pong으로 응답)
package stubapp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/darkkaiser/pops-connect/internal/health"
	"github.com/darkkaiser/pops-connect/internal/notification"
	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"github.com/darkkaiser/pops-connect/internal/suite"
	applog "github.com/darkkaiser/pops-connect/pkg/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// component 로깅용 컴포넌트 이름
const component = "stubapp"

const (
	defaultTokenLifetime = 24 * time.Hour
	defaultMaxBodySize   = "1M"
	shutdownTimeout      = 5 * time.Second
)

// Account 로그인 가능한 계정입니다.
type Account struct {
	ID       string
	Name     string
	Password string
}

// Config 서버 설정입니다.
type Config struct {
	// App 흉내 낼 애플리케이션. 응답과 알림의 app 필드와 토큰 발급자에 쓰입니다.
	App suite.ID

	Debug        bool
	AllowOrigins []string

	// RateLimitPerSecond IP별 초당 허용 요청 수. 0이면 제한하지 않습니다.
	RateLimitPerSecond float64
	RateLimitBurst     int

	// Accounts 이메일별 계정. 비어 있으면 demo@pops.app / demo 계정 하나를 만듭니다.
	Accounts map[string]Account

	JWTSecret     []byte
	TokenLifetime time.Duration

	Now func() time.Time
}

// Server 스텁 애플리케이션 서버입니다.
type Server struct {
	cfg  Config
	echo *echo.Echo
	hub  *hub

	mu            sync.RWMutex
	state         health.State
	notifications []notification.Notification

	runningMu sync.Mutex
	running   bool
}

// New 서버를 생성하고 라우트를 등록합니다.
func New(cfg Config) (*Server, error) {
	if !cfg.App.Valid() {
		return nil, apperrors.Newf(apperrors.InvalidInput, "알 수 없는 애플리케이션입니다: '%s'", cfg.App)
	}
	if len(cfg.Accounts) == 0 {
		cfg.Accounts = map[string]Account{
			"demo@pops.app": {ID: "demo", Name: "Demo User", Password: "demo"},
		}
	}
	if len(cfg.JWTSecret) == 0 {
		cfg.JWTSecret = []byte("pops-stubapp-" + string(cfg.App))
	}
	if cfg.TokenLifetime <= 0 {
		cfg.TokenLifetime = defaultTokenLifetime
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{
		cfg:   cfg,
		hub:   newHub(),
		state: health.Online,
	}
	s.echo = s.newEcho()
	return s, nil
}

// newEcho 미들웨어와 라우트를 설정한 Echo 인스턴스를 만듭니다.
//
// 미들웨어 순서: 패닉 복구 → Request ID → 요청 로그 → 요청 빈도 제한 → 본문 크기 제한 → CORS.
// /ws가 연결을 가로채야 하므로 응답을 감싸는 Timeout 미들웨어는 사용하지 않습니다.
func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.Debug = s.cfg.Debug
	e.HideBanner = true
	e.HidePort = true
	e.Logger = newEchoLogger()
	e.HTTPErrorHandler = errorHandler

	e.Use(panicRecovery())
	e.Use(middleware.RequestID())
	e.Use(httpLogger(s.cfg.App))
	e.Use(rateLimiting(s.cfg.RateLimitPerSecond, s.cfg.RateLimitBurst))
	e.Use(middleware.BodyLimit(defaultMaxBodySize))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.cfg.AllowOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-Requested-With", echo.HeaderXRequestID},
		AllowCredentials: true,
	}))

	e.GET("/api/health", s.handleHealth)
	e.GET("/api/notifications", s.handleListNotifications)
	e.POST("/api/notifications", s.handleCreateNotification)
	e.POST("/api/auth/login", s.handleLogin)
	e.GET("/ws", s.handleWebSocket)

	return e
}

// Handler 서버의 http.Handler. httptest.Server에 물릴 때 사용합니다.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// App 흉내 내는 애플리케이션
func (s *Server) App() suite.ID {
	return s.cfg.App
}

// SetHealth /api/health가 보고할 상태를 바꿉니다. Offline이면 503으로 응답합니다.
func (s *Server) SetHealth(state health.State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	applog.WithComponentAndFields(component, applog.Fields{
		"app":   s.cfg.App,
		"state": state,
	}).Info("상태 전환")
}

func (s *Server) health() health.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Publish 알림을 저장하고 연결된 실시간 채널 클라이언트 모두에게 보냅니다. 저장된 알림을 반환합니다.
func (s *Server) Publish(n notification.Notification) notification.Notification {
	n = s.store(n)
	s.broadcastNotification(n)
	return n
}

// BroadcastStatus status_change 이벤트를 보냅니다.
func (s *Server) BroadcastStatus(app suite.ID, state health.State) int {
	return s.broadcast(statusEvent{Type: "status_change", App: app, Status: string(state)})
}

// Clients 연결된 실시간 채널 클라이언트 수
func (s *Server) Clients() int {
	return s.hub.count()
}

// DropClients 모든 실시간 채널 연결을 끊습니다. 재연결 동작을 시험할 때 사용합니다.
func (s *Server) DropClients() {
	s.hub.dropAll()
}

// Start addr에서 서버를 시작하고, serviceStopCtx가 취소되면 정상 종료합니다.
func (s *Server) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup, addr string) error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	if s.running {
		serviceStopWG.Done()
		applog.WithComponent(component).Warn("스텁 서버가 이미 실행 중입니다 (중복 호출)")
		return nil
	}
	s.running = true

	applog.WithComponentAndFields(component, applog.Fields{
		"app":  s.cfg.App,
		"addr": addr,
	}).Info("스텁 서버 시작")

	serverErr := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.WithComponentAndFields(component, applog.Fields{
				"addr":  addr,
				"error": err,
			}).Error("스텁 서버 실행 중 오류가 발생했습니다")
			serverErr <- err
		}
		close(serverErr)
	}()

	go func() {
		defer serviceStopWG.Done()

		select {
		case <-serviceStopCtx.Done():
		case <-serverErr:
		}
		s.Close()
	}()

	return nil
}

// Close 실시간 채널 연결을 모두 끊고 HTTP 서버를 종료합니다. 여러 번 호출해도 안전합니다.
func (s *Server) Close() {
	s.hub.close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Warn("스텁 서버 종료 중 오류가 발생했습니다")
	}
}

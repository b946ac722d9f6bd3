package stubapp

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/darkkaiser/pops-connect/internal/health"
	"github.com/darkkaiser/pops-connect/internal/notification"
	"github.com/darkkaiser/pops-connect/internal/pkg/version"
	"github.com/darkkaiser/pops-connect/internal/suite"
	"github.com/darkkaiser/pops-connect/internal/transport"
	applog "github.com/darkkaiser/pops-connect/pkg/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ============================================================================
// 응답 봉투
// ============================================================================

func respond(c echo.Context, status int, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.JSON(status, transport.Envelope{Success: true, Data: raw})
}

// errorHandler 모든 에러를 {"success": false, "error": "..."} 봉투로 응답합니다.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	entry := applog.WithComponentAndFields(component, applog.Fields{
		"path":        c.Request().URL.Path,
		"method":      c.Request().Method,
		"status_code": code,
		"error":       err,
		"request_id":  c.Response().Header().Get(echo.HeaderXRequestID),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("요청 처리 실패")
	} else {
		entry.Debug("요청 거부")
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, transport.Envelope{Success: false, Error: message})
}

// ============================================================================
// Health
// ============================================================================

type healthResponse struct {
	App     suite.ID `json:"app"`
	Status  string   `json:"status"`
	Version string   `json:"version"`
}

func (s *Server) handleHealth(c echo.Context) error {
	state := s.health()
	if state == health.Offline {
		return ErrUnavailable
	}

	status := "healthy"
	if state != health.Online {
		status = string(state)
	}
	return respond(c, http.StatusOK, healthResponse{
		App:     s.cfg.App,
		Status:  status,
		Version: version.Get().Version,
	})
}

// ============================================================================
// Notifications
// ============================================================================

type createNotificationRequest struct {
	Type      notification.Type `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	ActionURL string            `json:"actionUrl"`
}

func (s *Server) handleListNotifications(c echo.Context) error {
	includeRead, _ := strconv.ParseBool(c.QueryParam("include_read"))

	s.mu.RLock()
	out := make([]notification.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if includeRead || !n.Read {
			out = append(out, n)
		}
	}
	s.mu.RUnlock()

	return respond(c, http.StatusOK, out)
}

func (s *Server) handleCreateNotification(c echo.Context) error {
	var req createNotificationRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return ErrInvalidJSON
	}
	if req.Title == "" {
		return ErrTitleRequired
	}

	n := s.Publish(notification.Notification{
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		ActionURL: req.ActionURL,
	})
	return respond(c, http.StatusCreated, n)
}

// store 빈 필드를 채워 알림을 저장합니다. 최신 알림이 앞에 옵니다.
func (s *Server) store(n notification.Notification) notification.Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.App = s.cfg.App
	if n.Type == "" {
		n.Type = notification.Info
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = s.cfg.Now().UTC()
	}

	s.mu.Lock()
	s.notifications = append([]notification.Notification{n}, s.notifications...)
	s.mu.Unlock()

	return n
}

// ============================================================================
// Realtime events
// ============================================================================

type notificationEvent struct {
	Type string                    `json:"type"`
	Data notification.Notification `json:"data"`
}

type statusEvent struct {
	Type   string   `json:"type"`
	App    suite.ID `json:"app"`
	Status string   `json:"status"`
}

func (s *Server) broadcastNotification(n notification.Notification) int {
	return s.broadcast(notificationEvent{Type: "notification", Data: n})
}

func (s *Server) broadcast(event any) int {
	data, err := json.Marshal(event)
	if err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Error("이벤트를 JSON으로 변환할 수 없습니다")
		return 0
	}

	sent := s.hub.broadcast(data)
	applog.WithComponentAndFields(component, applog.Fields{
		"app":     s.cfg.App,
		"clients": sent,
	}).Debug("이벤트 전송")
	return sent
}

func (s *Server) handleWebSocket(c echo.Context) error {
	return s.hub.serve(c.Response(), c.Request())
}

// ============================================================================
// Auth
// ============================================================================

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type loginResponse struct {
	User      loginUser `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt string    `json:"expiresAt"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return ErrInvalidJSON
	}

	account, found := s.cfg.Accounts[req.Email]
	if !found || account.Password != req.Password {
		applog.WithComponentAndFields(component, applog.Fields{
			"email":     req.Email,
			"remote_ip": c.RealIP(),
		}).Warn("로그인 거부")
		return ErrInvalidCredentials
	}

	now := s.cfg.Now()
	expiresAt := now.Add(s.cfg.TokenLifetime).UTC().Truncate(time.Second)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    string(s.cfg.App),
		Subject:   account.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}).SignedString(s.cfg.JWTSecret)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, loginResponse{
		User:      loginUser{ID: account.ID, Email: req.Email, Name: account.Name},
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

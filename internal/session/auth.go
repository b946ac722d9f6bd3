package session

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StorageKey 인증 정보를 저장하는 고정 키
const StorageKey = "pops.auth"

// defaultSessionLifetime 로그인 응답과 토큰 어디에도 만료 시각이 없을 때 사용하는 유효 기간
const defaultSessionLifetime = 24 * time.Hour

// User 로그인한 사용자입니다.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// AuthState 인증 상태입니다.
type AuthState struct {
	Authenticated bool
	User          *User
	Token         string
	ExpiresAt     time.Time
	RefreshToken  string
}

func (a AuthState) clone() AuthState {
	if a.User != nil {
		u := *a.User
		a.User = &u
	}
	return a
}

// persistedAuth 저장소에 남기는 기록입니다. 리프레시 토큰은 저장하지 않습니다.
type persistedAuth struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// loginRequest POST /api/auth/login 요청 본문
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// identity 캐시를 함께 써도 되는 사용자인지 가리는 값. 익명이면 빈 문자열입니다.
func identity(a AuthState) string {
	switch {
	case !a.Authenticated:
		return ""
	case a.User != nil && a.User.ID != "":
		return "id:" + a.User.ID
	case a.User != nil && a.User.Email != "":
		return "email:" + a.User.Email
	default:
		return "token:" + a.Token
	}
}

// loginResponse 로그인 응답 봉투의 data
type loginResponse struct {
	User         *User      `json:"user"`
	Token        string     `json:"token"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	RefreshToken string     `json:"refreshToken"`
}

// tokenExpiry 토큰의 exp 클레임을 읽습니다. 서명은 인증 애플리케이션이 검증하므로 여기서는 확인하지 않습니다.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func encodePersisted(a AuthState) ([]byte, error) {
	return json.Marshal(persistedAuth{User: a.User, Token: a.Token, ExpiresAt: a.ExpiresAt})
}

package session

import (
	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
)

var (
	// ErrKeyNotFound 저장소에 해당 키가 없습니다.
	ErrKeyNotFound = apperrors.New(apperrors.NotFound, "저장소에 해당 키가 없습니다")

	// ErrInvalidKey 저장소 키가 비어 있습니다.
	ErrInvalidKey = apperrors.New(apperrors.InvalidInput, "저장소 키는 비어 있을 수 없습니다")

	// ErrMissingCredentials 이메일 또는 비밀번호가 비어 있습니다.
	ErrMissingCredentials = apperrors.New(apperrors.InvalidInput, "이메일과 비밀번호를 모두 입력해야 합니다")

	// ErrMissingToken 로그인 응답에 토큰이 없습니다.
	ErrMissingToken = apperrors.New(apperrors.Parsing, "로그인 응답에 토큰이 없습니다")
)

// NewErrLoginFailed 로그인 요청 실패 에러를 생성합니다. 원인의 종류(Timeout, HTTP 등)는 그대로 유지됩니다.
func NewErrLoginFailed(cause error) error {
	return apperrors.Wrap(cause, apperrors.Unauthorized, "로그인에 실패했습니다")
}

// NewErrSessionExpired 저장된 세션이 만료되었을 때의 에러를 생성합니다.
func NewErrSessionExpired(expiresAt string) error {
	return apperrors.Newf(apperrors.AuthExpired, "저장된 세션이 만료되었습니다 (만료 시각: %s)", expiresAt)
}

func newErrStorageReadFailed(err error) error {
	return apperrors.Wrap(err, apperrors.Internal, "세션 저장소를 읽을 수 없습니다")
}

func newErrStorageWriteFailed(err error) error {
	return apperrors.Wrap(err, apperrors.Internal, "세션 저장소에 쓸 수 없습니다")
}

func newErrStorageCorrupted(err error) error {
	return apperrors.Wrap(err, apperrors.Parsing, "세션 저장소 파일이 손상되었습니다")
}

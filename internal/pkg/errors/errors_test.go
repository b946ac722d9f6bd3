package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStd = errors.New("standard error")

// =============================================================================
// Creation
// =============================================================================

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		errType ErrorType
		message string
	}{
		{"Timeout", Timeout, "money 애플리케이션 요청 시간 초과"},
		{"HTTP", HTTP, "HTTP 503 Service Unavailable"},
		{"Empty Message", Network, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.errType, tt.message)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
			assert.True(t, Is(err, tt.errType))
		})
	}
}

func TestNewf(t *testing.T) {
	t.Parallel()

	err := Newf(HTTP, "status code: %d", 404)
	assert.Equal(t, "[HTTP] status code: 404", err.Error())
}

// =============================================================================
// Wrapping
// =============================================================================

func TestWrap(t *testing.T) {
	t.Parallel()

	t.Run("Std Error", func(t *testing.T) {
		wrapped := Wrap(errStd, Network, "연결 실패")

		assert.Equal(t, "[Network] 연결 실패: standard error", wrapped.Error())
		assert.True(t, Is(wrapped, Network))
		assert.ErrorIs(t, wrapped, errStd)
	})

	t.Run("Nil Error", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, Internal, "무시"))
		assert.Nil(t, Wrapf(nil, Internal, "무시 %d", 1))
	})

	t.Run("Context Deadline", func(t *testing.T) {
		wrapped := Wrapf(context.DeadlineExceeded, Timeout, "%s 요청 시간 초과", "travel")

		assert.True(t, Is(wrapped, Timeout))
		assert.ErrorIs(t, wrapped, context.DeadlineExceeded)
	})

	t.Run("Nested", func(t *testing.T) {
		err := Wrap(Wrap(New(Timeout, "timeout"), Internal, "fetch"), Unavailable, "session")

		assert.True(t, Is(err, Unavailable))
		assert.True(t, Is(err, Internal))
		assert.True(t, Is(err, Timeout))
		assert.False(t, Is(err, HTTP))
	})
}

// =============================================================================
// Chain inspection
// =============================================================================

func TestAs(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("outer: %w", New(Parsing, "bad json"))

	var appErr *AppError
	require.True(t, As(err, &appErr))
	assert.Equal(t, Parsing, appErr.Type())
	assert.Equal(t, "bad json", appErr.Message())
	assert.NotEmpty(t, appErr.Stack())
}

func TestRootCause(t *testing.T) {
	t.Parallel()

	root := New(NotFound, "not found")
	err := Wrap(Wrap(root, Internal, "a"), Network, "b")

	assert.Equal(t, root, RootCause(err))
	assert.Nil(t, RootCause(nil))
	assert.Equal(t, errStd, RootCause(errStd))
}

func TestUnderlyingType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"Nil", nil, Unknown},
		{"Std Error", errStd, Unknown},
		{"Single", New(HTTP, "x"), HTTP},
		{"Innermost Wins", Wrap(New(Timeout, "x"), Internal, "y"), Timeout},
		{"Wrapped External", Wrap(errStd, Network, "x"), Network},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UnderlyingType(tt.err))
		})
	}
}

func TestDeepChain(t *testing.T) {
	t.Parallel()

	err := New(Internal, "base")
	for i := 0; i < 1000; i++ {
		err = Wrap(err, Internal, "wrap")
	}
	assert.NotNil(t, RootCause(err))
}

// =============================================================================
// Formatting
// =============================================================================

func TestAppError_Format(t *testing.T) {
	t.Parallel()

	t.Run("Plain Verbs", func(t *testing.T) {
		err := New(Remote, "rejected")

		assert.Equal(t, "[Remote] rejected", fmt.Sprintf("%s", err))
		assert.Equal(t, "[Remote] rejected", fmt.Sprintf("%v", err))
		assert.Equal(t, "\"[Remote] rejected\"", fmt.Sprintf("%q", err))
	})

	t.Run("Detailed", func(t *testing.T) {
		err := Wrap(Wrap(errStd, Network, "dial"), Timeout, "request")
		out := fmt.Sprintf("%+v", err)

		assert.Contains(t, out, "[Timeout] request")
		assert.Contains(t, out, "Caused by:")
		assert.Contains(t, out, "[Network] dial")
		assert.Contains(t, out, "standard error")
		// 중간 단계의 스택은 생략하고 외부 에러 경계에서만 한 번 출력합니다.
		assert.Equal(t, 1, strings.Count(out, "Stack trace:"))
	})
}

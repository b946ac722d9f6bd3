// Package mocks transport 패키지에 의존하는 구성 요소의 테스트를 위한 Mock 구현체를 제공합니다.
//
//	requester := mocks.NewMockRequester()
//	requester.On("Request", mock.Anything, suite.Money, "/api/health", mock.Anything).
//	    Return(json.RawMessage(`{"status":"ok"}`), nil)
package mocks

import (
	"context"
	"encoding/json"

	"github.com/darkkaiser/pops-connect/internal/suite"
	"github.com/darkkaiser/pops-connect/internal/transport"
	"github.com/stretchr/testify/mock"
)

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ transport.Requester = (*MockRequester)(nil)

// MockRequester transport.Requester의 Mock 구현체 (Testify 사용)
type MockRequester struct {
	mock.Mock
}

// NewMockRequester 새로운 MockRequester 인스턴스를 생성합니다.
func NewMockRequester() *MockRequester {
	return &MockRequester{}
}

// Request Mock 요청을 수행합니다.
func (m *MockRequester) Request(ctx context.Context, app suite.ID, endpoint string, opts transport.RequestOptions) (json.RawMessage, error) {
	args := m.Called(ctx, app, endpoint, opts)

	var data json.RawMessage
	if v := args.Get(0); v != nil {
		switch d := v.(type) {
		case json.RawMessage:
			data = d
		case string:
			data = json.RawMessage(d)
		case []byte:
			data = d
		}
	}
	return data, args.Error(1)
}

// ReturnData app/endpoint 요청이 data를 반환하도록 설정합니다.
func (m *MockRequester) ReturnData(app suite.ID, endpoint string, data string) *mock.Call {
	return m.On("Request", mock.Anything, app, endpoint, mock.Anything).Return(json.RawMessage(data), nil)
}

// ReturnError app/endpoint 요청이 err를 반환하도록 설정합니다.
func (m *MockRequester) ReturnError(app suite.ID, endpoint string, err error) *mock.Call {
	return m.On("Request", mock.Anything, app, endpoint, mock.Anything).Return(nil, err)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"planextract/internal/port"
)

// MockChatClient is a mock implementation of port.ChatClient.
type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) Chat(ctx context.Context, req port.ChatRequest) (*port.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.ChatResponse), args.Error(1)
}

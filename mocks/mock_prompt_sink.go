package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockPromptSink is a mock implementation of port.PromptSink.
type MockPromptSink struct {
	mock.Mock
}

func (m *MockPromptSink) Save(ctx context.Context, name string, payload []byte) error {
	args := m.Called(ctx, name, payload)
	return args.Error(0)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"planextract/internal/domain"
)

// MockPipelineRunner is a mock implementation of port.PipelineRunner.
type MockPipelineRunner struct {
	mock.Mock
}

func (m *MockPipelineRunner) Run(ctx context.Context, job *domain.Job, documentPath string) (*domain.Result, error) {
	args := m.Called(ctx, job, documentPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Result), args.Error(1)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTemplateStore is a mock implementation of port.TemplateStore.
type MockTemplateStore struct {
	mock.Mock
}

func (m *MockTemplateStore) Get(ctx context.Context, key, version string) (string, error) {
	args := m.Called(ctx, key, version)
	return args.String(0), args.Error(1)
}

// MockTemplateFetcher is a mock implementation of port.TemplateFetcher.
type MockTemplateFetcher struct {
	mock.Mock
}

func (m *MockTemplateFetcher) Fetch(ctx context.Context, key, version string) (string, error) {
	args := m.Called(ctx, key, version)
	return args.String(0), args.Error(1)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"planextract/internal/port"
)

// MockDocumentConverter is a mock implementation of port.DocumentConverter.
type MockDocumentConverter struct {
	mock.Mock
}

func (m *MockDocumentConverter) ConvertToPDF(ctx context.Context, inputPath string) (string, error) {
	args := m.Called(ctx, inputPath)
	return args.String(0), args.Error(1)
}

// MockDocumentOCR is a mock implementation of port.DocumentOCR.
type MockDocumentOCR struct {
	mock.Mock
}

func (m *MockDocumentOCR) Parse(ctx context.Context, pdfPath string) (*port.OCRResult, error) {
	args := m.Called(ctx, pdfPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.OCRResult), args.Error(1)
}

// MockDocumentNormalizer is a mock implementation of port.DocumentNormalizer.
type MockDocumentNormalizer struct {
	mock.Mock
}

func (m *MockDocumentNormalizer) Normalize(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

// MockTokenCounter is a mock implementation of port.TokenCounter.
type MockTokenCounter struct {
	mock.Mock
}

func (m *MockTokenCounter) CountTokens(ctx context.Context, text string) (int, error) {
	args := m.Called(ctx, text)
	return args.Int(0), args.Error(1)
}

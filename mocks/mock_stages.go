package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"planextract/internal/extraction"
)

// MockStages is a mock implementation of pipeline.Stages.
type MockStages struct {
	mock.Mock
}

func (m *MockStages) Classify(ctx context.Context, doc string, cache bool) (string, error) {
	args := m.Called(ctx, doc, cache)
	return args.String(0), args.Error(1)
}

func (m *MockStages) KeyParams(ctx context.Context, doc, loc string, planNames []string, cache bool) (string, error) {
	args := m.Called(ctx, doc, loc, planNames, cache)
	return args.String(0), args.Error(1)
}

func (m *MockStages) IdentifyPlans(ctx context.Context, doc string, in extraction.PlanIdentificationInput, cache bool) (string, error) {
	args := m.Called(ctx, doc, in, cache)
	return args.String(0), args.Error(1)
}

func (m *MockStages) ExtractPlan(ctx context.Context, doc, loc, planName string, cache bool) (string, error) {
	args := m.Called(ctx, doc, loc, planName, cache)
	return args.String(0), args.Error(1)
}

func (m *MockStages) MatchPlan(ctx context.Context, candidates []string, query string, cache bool) (string, error) {
	args := m.Called(ctx, candidates, query, cache)
	return args.String(0), args.Error(1)
}

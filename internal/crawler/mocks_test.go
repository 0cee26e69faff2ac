package crawler

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of the Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(Page), args.Error(1)
}

// MockRenderer is a mock implementation of the Renderer interface.
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, rawURL string) (Page, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(Page), args.Error(1)
}

func (m *MockRenderer) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockDetector is a mock implementation of the Detector interface.
type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) NeedsRender(ctx context.Context, page Page) bool {
	args := m.Called(ctx, page)
	return args.Bool(0)
}

// MockHeadProber is a mock implementation of the HeadProber interface.
type MockHeadProber struct {
	mock.Mock
}

func (m *MockHeadProber) ContentType(ctx context.Context, rawURL string) (string, error) {
	args := m.Called(ctx, rawURL)
	return args.String(0), args.Error(1)
}

// MockDomainLimiter is a mock implementation of the DomainLimiter interface.
type MockDomainLimiter struct {
	mock.Mock
}

func (m *MockDomainLimiter) Wait(ctx context.Context, domain string) error {
	args := m.Called(ctx, domain)
	return args.Error(0)
}

// nopLimiter never delays; used where dispatch timing is irrelevant.
type nopLimiter struct{}

func (nopLimiter) Wait(_ context.Context, _ string) error { return nil }

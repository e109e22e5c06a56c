// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/oar-cd/hound/docker"
)

// MockComposeRunner implements docker.ComposeRunner for testing
type MockComposeRunner struct {
	mock.Mock
}

var _ docker.ComposeRunner = (*MockComposeRunner)(nil)

func (m *MockComposeRunner) Up(ctx context.Context, logPath string) error {
	args := m.Called(ctx, logPath)
	return args.Error(0)
}

func (m *MockComposeRunner) Down(ctx context.Context, removeVolumes bool) (string, error) {
	args := m.Called(ctx, removeVolumes)
	return args.String(0), args.Error(1)
}

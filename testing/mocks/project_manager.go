package mocks

import (
	"context"

	"github.com/oar-cd/hound/domain"
	"github.com/oar-cd/hound/ingest"
	"github.com/oar-cd/hound/project"
)

// MockProjectManager implements the ProjectManager interface for testing
type MockProjectManager struct {
	ListFunc   func(ctx context.Context) ([]*project.ProjectInfo, error)
	ShowFunc   func(ctx context.Context, name string) (*project.ProjectInfo, error)
	StartFunc  func(ctx context.Context, opts project.StartOptions) (*project.StartResult, error)
	DataFunc   func(ctx context.Context, opts project.DataOptions) (*ingest.Result, error)
	ClearFunc  func(ctx context.Context, name string) error
	StopFunc   func(ctx context.Context, name string) error
	DeleteFunc func(ctx context.Context, name string) error
}

var _ project.ProjectManager = (*MockProjectManager)(nil)

func (m *MockProjectManager) List(ctx context.Context) ([]*project.ProjectInfo, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*project.ProjectInfo{}, nil
}

func (m *MockProjectManager) Show(ctx context.Context, name string) (*project.ProjectInfo, error) {
	if m.ShowFunc != nil {
		return m.ShowFunc(ctx, name)
	}
	return &project.ProjectInfo{Project: &domain.Project{Name: name}}, nil
}

func (m *MockProjectManager) Start(ctx context.Context, opts project.StartOptions) (*project.StartResult, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, opts)
	}
	p := domain.NewProject(opts.Name, "/tmp/hound/projects", opts.Ports, opts.Password, opts.Timeout, opts.NoGDS)
	p.State = domain.StateReady
	return &project.StartResult{Project: p}, nil
}

func (m *MockProjectManager) Data(ctx context.Context, opts project.DataOptions) (*ingest.Result, error) {
	if m.DataFunc != nil {
		return m.DataFunc(ctx, opts)
	}
	return &ingest.Result{}, nil
}

func (m *MockProjectManager) Clear(ctx context.Context, name string) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, name)
	}
	return nil
}

func (m *MockProjectManager) Stop(ctx context.Context, name string) error {
	if m.StopFunc != nil {
		return m.StopFunc(ctx, name)
	}
	return nil
}

func (m *MockProjectManager) Delete(ctx context.Context, name string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, name)
	}
	return nil
}

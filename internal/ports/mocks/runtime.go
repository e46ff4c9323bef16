package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/eleven-am/poanet/internal/ports"
)

type MockContainerRuntime struct {
	mock.Mock
}

// NewMockContainerRuntime registers an expectation check on t's cleanup.
func NewMockContainerRuntime(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockContainerRuntime {
	m := &MockContainerRuntime{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockContainerRuntime) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockContainerRuntime) Version(ctx context.Context) (ports.RuntimeVersion, error) {
	args := m.Called(ctx)
	return args.Get(0).(ports.RuntimeVersion), args.Error(1)
}

func (m *MockContainerRuntime) Resources(ctx context.Context) (ports.RuntimeResources, error) {
	args := m.Called(ctx)
	return args.Get(0).(ports.RuntimeResources), args.Error(1)
}

func (m *MockContainerRuntime) CreateNetwork(ctx context.Context, spec ports.NetworkSpec) (string, error) {
	args := m.Called(ctx, spec)
	return args.String(0), args.Error(1)
}

func (m *MockContainerRuntime) RemoveNetwork(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockContainerRuntime) NetworkExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockContainerRuntime) InspectNetwork(ctx context.Context, name string) (ports.NetworkInfo, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(ports.NetworkInfo), args.Error(1)
}

func (m *MockContainerRuntime) ListNetworks(ctx context.Context) ([]ports.NetworkInfo, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]ports.NetworkInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockContainerRuntime) EnsureImage(ctx context.Context, image string) error {
	return m.Called(ctx, image).Error(0)
}

func (m *MockContainerRuntime) CreateContainer(ctx context.Context, spec ports.ContainerSpec) (string, error) {
	args := m.Called(ctx, spec)
	return args.String(0), args.Error(1)
}

func (m *MockContainerRuntime) StartContainer(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockContainerRuntime) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	return m.Called(ctx, id, timeout).Error(0)
}

func (m *MockContainerRuntime) RemoveContainer(ctx context.Context, id string, force bool) error {
	return m.Called(ctx, id, force).Error(0)
}

func (m *MockContainerRuntime) InspectContainer(ctx context.Context, id string) (ports.ContainerState, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(ports.ContainerState), args.Error(1)
}

func (m *MockContainerRuntime) ListContainers(ctx context.Context, labels map[string]string) ([]ports.ContainerInfo, error) {
	args := m.Called(ctx, labels)
	if v := args.Get(0); v != nil {
		return v.([]ports.ContainerInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockContainerRuntime) ContainerLogs(ctx context.Context, id string, tail int) (string, error) {
	args := m.Called(ctx, id, tail)
	return args.String(0), args.Error(1)
}

func (m *MockContainerRuntime) Exec(ctx context.Context, id string, cmd []string) (string, error) {
	args := m.Called(ctx, id, cmd)
	return args.String(0), args.Error(1)
}

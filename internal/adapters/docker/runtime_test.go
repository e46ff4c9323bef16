package docker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/poanet/internal/domain"
)

// fakeAPI overrides the calls under test; anything else panics on the nil
// embedded client.
type fakeAPI struct {
	dockerclient.APIClient

	removeNetworkErr error
	stopErr          error
	removeErr        error
	startErr         error

	stopOpts   container.StopOptions
	removeOpts container.RemoveOptions
	logsOpts   container.LogsOptions
	logs       []byte
}

func (f *fakeAPI) NetworkRemove(ctx context.Context, id string) error {
	return f.removeNetworkErr
}

func (f *fakeAPI) ContainerStop(ctx context.Context, id string, opts container.StopOptions) error {
	f.stopOpts = opts
	return f.stopErr
}

func (f *fakeAPI) ContainerRemove(ctx context.Context, id string, opts container.RemoveOptions) error {
	f.removeOpts = opts
	return f.removeErr
}

func (f *fakeAPI) ContainerStart(ctx context.Context, id string, opts container.StartOptions) error {
	return f.startErr
}

func (f *fakeAPI) ContainerLogs(ctx context.Context, id string, opts container.LogsOptions) (io.ReadCloser, error) {
	f.logsOpts = opts
	return io.NopCloser(bytes.NewReader(f.logs)), nil
}

func notFound() error {
	return errdefs.NotFound(errors.New("no such object"))
}

func TestRemoveNetwork_AlreadyGone(t *testing.T) {
	r := NewWithClient(&fakeAPI{removeNetworkErr: notFound()}, nil)
	assert.NoError(t, r.RemoveNetwork(context.Background(), "devnet"))
}

func TestRemoveNetwork_Failure(t *testing.T) {
	r := NewWithClient(&fakeAPI{removeNetworkErr: errors.New("network has active endpoints")}, nil)
	err := r.RemoveNetwork(context.Background(), "devnet")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRuntime)
	assert.Contains(t, err.Error(), "active endpoints")
}

func TestStopContainer(t *testing.T) {
	api := &fakeAPI{}
	r := NewWithClient(api, nil)

	require.NoError(t, r.StopContainer(context.Background(), "abc", 1500*time.Millisecond))
	require.NotNil(t, api.stopOpts.Timeout)
	assert.Equal(t, 2, *api.stopOpts.Timeout)

	api.stopErr = notFound()
	assert.NoError(t, r.StopContainer(context.Background(), "abc", time.Second))

	api.stopErr = errors.New("daemon busy")
	assert.ErrorIs(t, r.StopContainer(context.Background(), "abc", time.Second), domain.ErrRuntime)
}

func TestRemoveContainer(t *testing.T) {
	api := &fakeAPI{}
	r := NewWithClient(api, nil)

	require.NoError(t, r.RemoveContainer(context.Background(), "abc", true))
	assert.True(t, api.removeOpts.Force)
	assert.True(t, api.removeOpts.RemoveVolumes)

	api.removeErr = notFound()
	assert.NoError(t, r.RemoveContainer(context.Background(), "abc", false))
}

func TestStartContainer_WrapsError(t *testing.T) {
	r := NewWithClient(&fakeAPI{startErr: errors.New("port is already allocated")}, nil)
	err := r.StartContainer(context.Background(), "0123456789abcdef")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRuntime)
	assert.Contains(t, err.Error(), "0123456789ab")
}

func TestContainerLogs_Demultiplexes(t *testing.T) {
	var stream bytes.Buffer
	_, err := stdcopy.NewStdWriter(&stream, stdcopy.Stdout).Write([]byte("imported block 1\n"))
	require.NoError(t, err)
	_, err = stdcopy.NewStdWriter(&stream, stdcopy.Stderr).Write([]byte("peer dropped\n"))
	require.NoError(t, err)

	api := &fakeAPI{logs: stream.Bytes()}
	r := NewWithClient(api, nil)

	out, err := r.ContainerLogs(context.Background(), "abc", 50)
	require.NoError(t, err)
	assert.Equal(t, "imported block 1\npeer dropped\n", out)
	assert.Equal(t, "50", api.logsOpts.Tail)

	_, err = r.ContainerLogs(context.Background(), "abc", 0)
	require.NoError(t, err)
	assert.Equal(t, "all", api.logsOpts.Tail)
}

package builder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/ports"
	"github.com/eleven-am/poanet/internal/testutil/fakes"
)

func newTestChecker(rt *fakes.Runtime, free uint64) *EnvironmentChecker {
	defaults := domain.DefaultDefaults()
	defaults.PrerequisiteWait = 50 * time.Millisecond
	c := NewEnvironmentChecker(rt, defaults, nil)
	c.diskFree = func(string) (uint64, error) { return free, nil }
	return c
}

func request(t *testing.T, nodes int) ports.PrerequisiteRequest {
	return ports.PrerequisiteRequest{Image: domain.DefaultImage, NodeCount: nodes, DataDir: filepath.Join(t.TempDir(), "missing", "dir")}
}

func TestEnvironmentChecker_Passes(t *testing.T) {
	rt := fakes.NewRuntime()
	c := newTestChecker(rt, 100<<30)

	require.NoError(t, c.Check(context.Background(), request(t, 4)))
	assert.Equal(t, []string{domain.DefaultImage}, rt.Pulled())
}

func TestEnvironmentChecker_Failures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(rt *fakes.Runtime)
		free   uint64
		nodes  int
		check  string
		reason string
	}{
		{
			name:   "unreachable runtime",
			setup:  func(rt *fakes.Runtime) { rt.PingErr = errors.New("connection refused") },
			free:   100 << 30,
			nodes:  1,
			check:  "runtime",
			reason: "unreachable",
		},
		{
			name:   "old runtime",
			setup:  func(rt *fakes.Runtime) { rt.VersionStr = "19.03.12" },
			free:   100 << 30,
			nodes:  1,
			check:  "runtime version",
			reason: "older than the required 20.10.0",
		},
		{
			name:   "insufficient memory",
			setup:  func(rt *fakes.Runtime) { rt.Memory = 1 << 30 },
			free:   100 << 30,
			nodes:  4,
			check:  "memory",
			reason: "4 nodes need 2048 MiB",
		},
		{
			name:   "insufficient disk",
			setup:  func(rt *fakes.Runtime) {},
			free:   1 << 30,
			nodes:  3,
			check:  "disk",
			reason: "3 nodes need 3072 MiB",
		},
		{
			name:   "image unavailable",
			setup:  func(rt *fakes.Runtime) { rt.ImageErr = errors.New("pull access denied") },
			free:   100 << 30,
			nodes:  1,
			check:  "image",
			reason: "could not be pulled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := fakes.NewRuntime()
			tt.setup(rt)
			c := newTestChecker(rt, tt.free)

			err := c.Check(context.Background(), request(t, tt.nodes))
			require.Error(t, err)
			assert.True(t, domain.IsPrerequisite(err))

			var prereq *domain.PrerequisiteError
			require.ErrorAs(t, err, &prereq)
			assert.Equal(t, tt.check, prereq.Check)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestEnvironmentChecker_CollectsResourceFailures(t *testing.T) {
	rt := fakes.NewRuntime()
	rt.VersionStr = "19.03.12"
	rt.Memory = 1 << 20
	c := newTestChecker(rt, 0)

	err := c.Check(context.Background(), request(t, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime version")
	assert.Contains(t, err.Error(), "memory")
	assert.Contains(t, err.Error(), "disk")
	assert.Empty(t, rt.Pulled())
}

func TestEnvironmentChecker_SkipsUnknownValues(t *testing.T) {
	rt := fakes.NewRuntime()
	rt.VersionStr = "dev"
	rt.Memory = 0
	c := newTestChecker(rt, 0)
	c.diskFree = func(string) (uint64, error) { return 0, errors.New("unsupported") }

	assert.NoError(t, c.Check(context.Background(), request(t, 2)))
}

func TestExistingAncestor(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, existingAncestor(filepath.Join(dir, "a", "b")))
	assert.Equal(t, dir, existingAncestor(dir))
}

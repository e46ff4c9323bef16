package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-version"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/ports"
	"github.com/eleven-am/poanet/internal/readiness"
)

const pingInterval = 500 * time.Millisecond

// EnvironmentChecker verifies the host can run a cluster: the runtime is
// reachable and recent enough, memory and disk cover the node count, and the
// image is present or pullable.
type EnvironmentChecker struct {
	runtime  ports.ContainerRuntime
	defaults domain.Defaults
	logger   hclog.Logger
	diskFree func(path string) (uint64, error)
}

var _ ports.PrerequisiteChecker = (*EnvironmentChecker)(nil)

func NewEnvironmentChecker(runtime ports.ContainerRuntime, defaults domain.Defaults, logger hclog.Logger) *EnvironmentChecker {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if defaults.PrerequisiteWait <= 0 {
		defaults.PrerequisiteWait = domain.DefaultDefaults().PrerequisiteWait
	}
	return &EnvironmentChecker{
		runtime:  runtime,
		defaults: defaults,
		logger:   logger.Named("prerequisites"),
		diskFree: freeDiskBytes,
	}
}

func (c *EnvironmentChecker) Check(ctx context.Context, req ports.PrerequisiteRequest) error {
	if err := c.checkReachable(ctx); err != nil {
		return err
	}

	var result *multierror.Error
	if err := c.checkVersion(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.checkMemory(ctx, req.NodeCount); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.checkDisk(req.DataDir, req.NodeCount); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}

	if err := c.runtime.EnsureImage(ctx, req.Image); err != nil {
		return &domain.PrerequisiteError{Check: "image", Reason: req.Image + " is not present and could not be pulled", Err: err}
	}
	c.logger.Debug("environment prerequisites satisfied", "nodes", req.NodeCount, "image", req.Image)
	return nil
}

func (c *EnvironmentChecker) checkReachable(ctx context.Context) error {
	poller := readiness.NewPoller(pingInterval, c.defaults.PrerequisiteWait)
	err := poller.Run(ctx, func(ctx context.Context) (bool, error) {
		if err := c.runtime.Ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	})
	if err == nil {
		return nil
	}
	var deadline *readiness.DeadlineError
	if errors.As(err, &deadline) {
		return &domain.PrerequisiteError{
			Check:  "runtime",
			Reason: fmt.Sprintf("container runtime unreachable after %s", c.defaults.PrerequisiteWait),
			Err:    deadline.LastErr,
		}
	}
	return err
}

func (c *EnvironmentChecker) checkVersion(ctx context.Context) error {
	v, err := c.runtime.Version(ctx)
	if err != nil {
		return &domain.PrerequisiteError{Check: "runtime version", Reason: "version query failed", Err: err}
	}
	have, err := version.NewVersion(v.Version)
	if err != nil {
		c.logger.Warn("unrecognised runtime version, skipping floor check", "version", v.Version)
		return nil
	}
	floor, err := version.NewVersion(c.defaults.MinRuntimeVersion)
	if err != nil {
		return fmt.Errorf("minimum runtime version %q: %w", c.defaults.MinRuntimeVersion, err)
	}
	if have.LessThan(floor) {
		return &domain.PrerequisiteError{
			Check:  "runtime version",
			Reason: fmt.Sprintf("%s is older than the required %s", v.Version, c.defaults.MinRuntimeVersion),
		}
	}
	return nil
}

func (c *EnvironmentChecker) checkMemory(ctx context.Context, nodes int) error {
	res, err := c.runtime.Resources(ctx)
	if err != nil {
		return &domain.PrerequisiteError{Check: "memory", Reason: "resource query failed", Err: err}
	}
	need := c.defaults.MemoryPerNode * uint64(nodes)
	if res.MemoryBytes == 0 {
		c.logger.Warn("runtime did not report total memory, skipping memory check")
		return nil
	}
	if res.MemoryBytes < need {
		return &domain.PrerequisiteError{
			Check:  "memory",
			Reason: fmt.Sprintf("%d nodes need %d MiB, runtime has %d MiB", nodes, need>>20, res.MemoryBytes>>20),
		}
	}
	return nil
}

func (c *EnvironmentChecker) checkDisk(dataDir string, nodes int) error {
	path := existingAncestor(dataDir)
	free, err := c.diskFree(path)
	if err != nil {
		c.logger.Warn("free disk space unavailable, skipping disk check", "path", path, "error", err)
		return nil
	}
	need := c.defaults.DiskPerNode * uint64(nodes)
	if free < need {
		return &domain.PrerequisiteError{
			Check:  "disk",
			Reason: fmt.Sprintf("%d nodes need %d MiB under %s, %d MiB free", nodes, need>>20, path, free>>20),
		}
	}
	return nil
}

// existingAncestor walks up from path to the nearest directory that exists.
func existingAncestor(path string) string {
	current := filepath.Clean(path)
	for {
		if _, err := os.Stat(current); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current
		}
		current = parent
	}
}

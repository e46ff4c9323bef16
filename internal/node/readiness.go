package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/readiness"
)

// awaitReady polls until the node answers a chain query (RPC nodes) or its
// container settles in a running state (all others).
func (n *Node) awaitReady(ctx context.Context) error {
	cfg := n.cfg.Readiness
	poller := readiness.NewPoller(cfg.PollInterval, cfg.Timeout)

	probe := n.probeContainer
	if n.cfg.Spec.RPC {
		probe = n.probeRPC
	}

	if err := poller.Run(ctx, probe); err != nil {
		var deadline *readiness.DeadlineError
		if errors.As(err, &deadline) {
			return &domain.TimeoutError{
				Kind:     domain.TimeoutNodeReadiness,
				Subject:  n.Name(),
				Deadline: cfg.Timeout,
				Cause:    deadline.LastErr,
			}
		}
		return err
	}

	if !n.cfg.Spec.RPC {
		if err := readiness.Sleep(ctx, cfg.GraceDelay); err != nil {
			return err
		}
	}
	n.logger.Debug("node ready", "attempts", poller.Attempts())
	return nil
}

func (n *Node) probeRPC(ctx context.Context) (bool, error) {
	client := n.Client()
	if client == nil {
		dialed, err := n.dialer.Dial(ctx, n.RPCURL())
		if err != nil {
			return false, err
		}
		n.mu.Lock()
		n.client = dialed
		n.mu.Unlock()
		client = dialed
	}

	height, err := client.BlockNumber(ctx)
	if err != nil {
		n.logger.Trace("rpc not ready", "error", err)
		return false, err
	}
	n.logger.Trace("rpc ready", "block", height)
	return true, nil
}

func (n *Node) probeContainer(ctx context.Context) (bool, error) {
	state, err := n.runtime.InspectContainer(ctx, n.ContainerID())
	if err != nil {
		return false, err
	}
	if state.Running && !state.Restarting {
		return true, nil
	}
	return false, fmt.Errorf("container status %s", state.Status)
}

// Package node drives one chain client container through its lifecycle.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/ports"
)

const stopTimeout = 10 * time.Second

type TransitionCallback func(event domain.NodeStatusChanged)

// Config is everything a node needs to build its container.
type Config struct {
	Cluster string
	// Network is the runtime network the container attaches to.
	Network     string
	Spec        domain.NodeSpec
	Address     string
	Image       string
	DataDir     string
	GenesisPath string
	Readiness   domain.ReadinessConfig
}

type Deps struct {
	Runtime ports.ContainerRuntime
	Dialer  ports.ChainDialer
	Events  ports.EventPublisher
	Logger  hclog.Logger
}

type Node struct {
	cfg     Config
	runtime ports.ContainerRuntime
	dialer  ports.ChainDialer
	events  ports.EventPublisher
	logger  hclog.Logger
	now     func() time.Time

	// opMu serializes lifecycle operations; mu guards the fields below it.
	opMu sync.Mutex

	mu           sync.RWMutex
	status       domain.NodeStatus
	containerID  string
	client       ports.ChainClient
	onTransition []TransitionCallback
}

func New(cfg Config, deps Deps) (*Node, error) {
	if deps.Runtime == nil {
		return nil, fmt.Errorf("node %s: container runtime is required", cfg.Spec.Name)
	}
	if cfg.Spec.RPC && deps.Dialer == nil {
		return nil, fmt.Errorf("node %s: chain dialer is required for rpc nodes", cfg.Spec.Name)
	}
	logger := deps.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	cfg.Readiness = domain.ApplyReadinessDefaults(cfg.Readiness)
	if cfg.Image == "" {
		cfg.Image = domain.DefaultImage
	}

	return &Node{
		cfg:     cfg,
		runtime: deps.Runtime,
		dialer:  deps.Dialer,
		events:  deps.Events,
		logger:  logger.Named("node").With("node", cfg.Spec.Name),
		now:     time.Now,
		status:  domain.NodeCreated,
	}, nil
}

// Restore re-associates a node with a container created by an earlier
// process. The node starts out RUNNING or STOPPED depending on running.
func Restore(cfg Config, deps Deps, containerID string, running bool) (*Node, error) {
	n, err := New(cfg, deps)
	if err != nil {
		return nil, err
	}
	n.containerID = containerID
	n.status = domain.NodeStopped
	if running {
		n.status = domain.NodeRunning
	}
	return n, nil
}

func (n *Node) Name() string {
	return n.cfg.Spec.Name
}

func (n *Node) Spec() domain.NodeSpec {
	return n.cfg.Spec
}

func (n *Node) Address() string {
	return n.cfg.Address
}

func (n *Node) IsValidator() bool {
	return n.cfg.Spec.Validator
}

func (n *Node) Status() domain.NodeStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

func (n *Node) ContainerID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.containerID
}

// ContainerName is the runtime name, unique per cluster.
func (n *Node) ContainerName() string {
	return ContainerName(n.cfg.Cluster, n.cfg.Spec.Name)
}

func ContainerName(cluster, node string) string {
	return cluster + "-" + node
}

// RPCURL is the endpoint reachable from the host. It is empty for nodes
// without RPC.
func (n *Node) RPCURL() string {
	return RPCURL(n.cfg.Spec)
}

func RPCURL(spec domain.NodeSpec) string {
	if !spec.RPC {
		return ""
	}
	if spec.HasRPCPort() {
		return fmt.Sprintf("http://127.0.0.1:%d", spec.RPCPort)
	}
	return fmt.Sprintf("http://%s:%d", spec.IP, domain.RPCPort)
}

// Client returns the live RPC connection established by readiness, or nil.
func (n *Node) Client() ports.ChainClient {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.client
}

func (n *Node) OnTransition(cb TransitionCallback) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onTransition = append(n.onTransition, cb)
}

// Start creates the container on first use, starts it and waits for
// readiness. Any failure leaves the node in ERROR.
func (n *Node) Start(ctx context.Context, bootnodes []string) error {
	n.opMu.Lock()
	defer n.opMu.Unlock()

	if current := n.Status(); current != domain.NodeCreated && current != domain.NodeStopped {
		return n.invalidState("start", current, domain.NodeCreated, domain.NodeStopped)
	}
	if err := n.transition(domain.NodeStarting); err != nil {
		return err
	}

	if err := n.launch(ctx, bootnodes); err != nil {
		n.fail("start", err)
		return err
	}
	return n.transition(domain.NodeRunning)
}

func (n *Node) launch(ctx context.Context, bootnodes []string) error {
	id := n.ContainerID()
	if id == "" {
		created, err := n.runtime.CreateContainer(ctx, ContainerSpec(n.cfg, bootnodes))
		if err != nil {
			return err
		}
		n.mu.Lock()
		n.containerID = created
		n.mu.Unlock()
		id = created
		n.logger.Debug("container created", "container", n.ContainerName(), "bootnodes", len(bootnodes))
	}

	if err := n.runtime.StartContainer(ctx, id); err != nil {
		return err
	}
	return n.awaitReady(ctx)
}

// Stop is legal only from RUNNING.
func (n *Node) Stop(ctx context.Context) error {
	n.opMu.Lock()
	defer n.opMu.Unlock()

	if current := n.Status(); current != domain.NodeRunning {
		return n.invalidState("stop", current, domain.NodeRunning)
	}
	id := n.ContainerID()
	if id == "" {
		return fmt.Errorf("node %s: %w", n.Name(), domain.ErrContainerNotAssociated)
	}
	if err := n.transition(domain.NodeStopping); err != nil {
		return err
	}

	n.closeClient()
	if err := n.runtime.StopContainer(ctx, id, stopTimeout); err != nil {
		n.fail("stop", err)
		return err
	}
	return n.transition(domain.NodeStopped)
}

// Remove force-removes the container. It is a no-op when none is associated.
func (n *Node) Remove(ctx context.Context) error {
	n.opMu.Lock()
	defer n.opMu.Unlock()

	id := n.ContainerID()
	if id == "" {
		return nil
	}
	n.closeClient()
	if err := n.runtime.RemoveContainer(ctx, id, true); err != nil {
		return err
	}

	n.mu.Lock()
	n.containerID = ""
	n.mu.Unlock()
	n.logger.Debug("container removed", "container", n.ContainerName())
	return nil
}

func (n *Node) Logs(ctx context.Context, tail int) (string, error) {
	id := n.ContainerID()
	if id == "" {
		return "", fmt.Errorf("node %s: %w", n.Name(), domain.ErrContainerNotAssociated)
	}
	return n.runtime.ContainerLogs(ctx, id, tail)
}

// Disconnect closes the RPC connection, if any, without touching the
// container.
func (n *Node) Disconnect() {
	n.closeClient()
}

func (n *Node) closeClient() {
	n.mu.Lock()
	client := n.client
	n.client = nil
	n.mu.Unlock()
	if client != nil {
		client.Close()
	}
}

func (n *Node) transition(target domain.NodeStatus) error {
	n.mu.Lock()
	from := n.status
	if !from.CanTransitionTo(target) {
		n.mu.Unlock()
		return &domain.InvalidStateError{
			Entity:    domain.EntityNode,
			Name:      n.cfg.Spec.Name,
			Operation: "transition to " + target.String(),
			Current:   from.String(),
		}
	}
	n.status = target
	callbacks := make([]TransitionCallback, len(n.onTransition))
	copy(callbacks, n.onTransition)
	n.mu.Unlock()

	event := domain.NodeStatusChanged{
		Cluster: n.cfg.Cluster,
		Node:    n.cfg.Spec.Name,
		From:    from,
		To:      target,
		At:      n.now(),
	}
	n.logger.Info("node state transition", "from", from, "to", target)

	for _, cb := range callbacks {
		cb(event)
	}
	if n.events != nil {
		n.events.Publish(event)
	}
	return nil
}

func (n *Node) fail(op string, cause error) {
	n.logger.Error("node operation failed", "operation", op, "error", cause)
	if n.Status().CanTransitionTo(domain.NodeError) {
		if err := n.transition(domain.NodeError); err != nil {
			n.logger.Warn("could not record error state", "error", err)
		}
	}
}

func (n *Node) invalidState(op string, current domain.NodeStatus, allowed ...domain.NodeStatus) error {
	return &domain.InvalidStateError{
		Entity:    domain.EntityNode,
		Name:      n.cfg.Spec.Name,
		Operation: op,
		Current:   current.String(),
		Allowed:   domain.NodeStatusNames(allowed...),
	}
}

// Connect opens the RPC connection of a running RPC node if none is open.
func (n *Node) Connect(ctx context.Context) error {
	if !n.cfg.Spec.RPC || n.Client() != nil {
		return nil
	}
	client, err := n.dialer.Dial(ctx, n.RPCURL())
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.client = client
	n.mu.Unlock()
	return nil
}

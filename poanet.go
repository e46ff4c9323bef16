// Package poanet provisions proof-of-authority (clique) test networks on a
// local container engine.
//
// A cluster is assembled with a Builder, validated against persisted clusters
// and the engine, and run by an Orchestrator:
//
//	session, err := poanet.Open(logger)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	b := session.NewBuilder(nil)
//	_ = b.WithChainID(1337)
//	_ = b.WithBlockPeriod(5)
//	_ = b.WithSubnet("172.20.0.0/16")
//	_ = b.WithNode(poanet.NodeSpec{Name: "v1", IP: "172.20.0.10", Validator: true, RPC: true, RPCPort: 8545})
//	b.WithAutoStart(true)
//
//	cluster, err := b.Build(ctx)
package poanet

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/eleven-am/poanet/internal/adapters/docker"
	"github.com/eleven-am/poanet/internal/adapters/ethkeys"
	"github.com/eleven-am/poanet/internal/adapters/ethrpc"
	"github.com/eleven-am/poanet/internal/adapters/events"
	"github.com/eleven-am/poanet/internal/adapters/filestore"
	"github.com/eleven-am/poanet/internal/builder"
	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/network"
)

// Builder assembles and validates a cluster configuration.
type Builder = builder.Builder

// Orchestrator runs one cluster: setup, teardown and membership changes.
type Orchestrator = network.Orchestrator

// Info is a point-in-time snapshot of a cluster.
type Info = network.Info

// NodeInfo describes one node within an Info snapshot.
type NodeInfo = network.NodeInfo

// AddNodeResult reports the outcome of Orchestrator.AddNode.
type AddNodeResult = network.AddNodeResult

type NodeSpec = domain.NodeSpec

type ClusterConfig = domain.ClusterConfig

type ClusterMetadata = domain.ClusterMetadata

type ReadinessConfig = domain.ReadinessConfig

type Defaults = domain.Defaults

type NodeStatus = domain.NodeStatus

type NetworkStatus = domain.NetworkStatus

// Lifecycle events delivered through Session.Events.
type (
	Event                  = domain.Event
	EventKind              = domain.EventKind
	NodeStatusChangedEvent = domain.NodeStatusChanged
	MembershipChangedEvent = domain.MembershipChanged
	NewBlockEvent          = domain.NewBlock
)

// EventBus fans events out to subscribers by kind.
type EventBus = events.Bus

const (
	EventNodeStatusChanged = domain.EventNodeStatusChanged
	EventMembershipChanged = domain.EventMembershipChanged
	EventNewBlock          = domain.EventNewBlock
)

var (
	ErrValidation    = domain.ErrValidation
	ErrConflict      = domain.ErrConflict
	ErrNotFound      = domain.ErrNotFound
	ErrInvalidState  = domain.ErrInvalidState
	ErrTimeout       = domain.ErrTimeout
	ErrRuntime       = domain.ErrRuntime
	ErrFileStore     = domain.ErrFileStore
	ErrLastValidator = domain.ErrLastValidator
	ErrPrerequisite  = domain.ErrPrerequisite
)

func DefaultDefaults() Defaults {
	return domain.DefaultDefaults()
}

// Deps are the collaborators a Session hands to builders and restored
// orchestrators.
type Deps = builder.Deps

// Session holds the collaborators used by every builder and orchestrator it
// creates. Open backs them with the local Docker engine, the local
// filesystem and go-ethereum.
type Session struct {
	deps  Deps
	bus   *events.Bus
	close func() error
}

// Open connects to the Docker engine described by the DOCKER_* environment.
func Open(logger hclog.Logger) (*Session, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	runtime, err := docker.New(logger)
	if err != nil {
		return nil, err
	}
	bus := events.NewBus(logger)
	s := NewSession(Deps{
		Deps: network.Deps{
			Runtime: runtime,
			Files:   filestore.New(logger),
			Keys:    ethkeys.New(),
			Dialer:  ethrpc.NewDialer(),
			Events:  bus,
			Logger:  logger,
		},
	}, bus)
	s.close = runtime.Close
	return s, nil
}

// NewSession wraps caller-supplied collaborators. A non-nil bus becomes the
// event publisher when deps has none.
func NewSession(deps Deps, bus *EventBus) *Session {
	if deps.Events == nil && bus != nil {
		deps.Events = bus
	}
	if deps.Logger == nil {
		deps.Logger = hclog.NewNullLogger()
	}
	return &Session{deps: deps, bus: bus, close: func() error { return nil }}
}

func (s *Session) Close() error {
	return s.close()
}

// Events returns the bus orchestrators created by this session publish to,
// or nil when the session was built without one.
func (s *Session) Events() *EventBus {
	return s.bus
}

// NewBuilder returns a builder wired to the session. A nil defaults uses
// DefaultDefaults.
func (s *Session) NewBuilder(defaults *Defaults) *Builder {
	deps := s.deps
	if defaults != nil {
		deps.Defaults = defaults
	}
	return builder.New(deps)
}

// Restore loads the persisted metadata of cluster under baseDir and rebuilds
// its orchestrator.
func (s *Session) Restore(ctx context.Context, baseDir, cluster string, readiness ReadinessConfig) (*Orchestrator, error) {
	meta, err := network.LoadMetadata(s.deps.Files, baseDir, cluster)
	if err != nil {
		return nil, err
	}
	return network.Restore(ctx, meta, readiness, s.deps.Deps)
}

// List returns the readable metadata of every cluster under baseDir.
func (s *Session) List(baseDir string) ([]ClusterMetadata, error) {
	return network.ListClusters(s.deps.Files, baseDir, s.deps.Logger)
}

func IsValidation(err error) bool { return domain.IsValidation(err) }

func IsConflict(err error) bool { return domain.IsConflict(err) }

func IsNotFound(err error) bool { return domain.IsNotFound(err) }

func IsInvalidState(err error) bool { return domain.IsInvalidState(err) }

func IsTimeout(err error) bool { return domain.IsTimeout(err) }

func IsLastValidator(err error) bool { return domain.IsLastValidator(err) }

func IsPrerequisite(err error) bool { return domain.IsPrerequisite(err) }

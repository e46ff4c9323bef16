// Package builder assembles and validates a cluster configuration and hands
// it to a network orchestrator.
package builder

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/network"
	"github.com/eleven-am/poanet/internal/ports"
	"github.com/eleven-am/poanet/internal/validation"
)

const namePrefix = "poanet-"

type Deps struct {
	network.Deps
	// Prerequisites defaults to an EnvironmentChecker over Runtime.
	Prerequisites ports.PrerequisiteChecker
	Defaults      *domain.Defaults
}

// Builder accumulates a cluster configuration. Each setter validates its
// input immediately and rejects it without changing the builder.
type Builder struct {
	deps     network.Deps
	checker  ports.PrerequisiteChecker
	defaults domain.Defaults
	logger   hclog.Logger
	now      func() time.Time

	chainID     uint64
	blockPeriod uint64
	epochLength uint64
	name        string
	subnet      *validation.Subnet
	nodes       []domain.NodeSpec
	baseDir     string
	image       string
	readiness   domain.ReadinessConfig
	autoStart   bool
	warnings    []string
}

func New(deps Deps) *Builder {
	defaults := domain.DefaultDefaults()
	if deps.Defaults != nil {
		defaults = *deps.Defaults
	}
	logger := deps.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	checker := deps.Prerequisites
	if checker == nil && deps.Runtime != nil {
		checker = NewEnvironmentChecker(deps.Runtime, defaults, logger)
	}
	return &Builder{
		deps:        deps.Deps,
		checker:     checker,
		defaults:    defaults,
		logger:      logger.Named("builder"),
		now:         time.Now,
		epochLength: defaults.EpochLength,
		baseDir:     defaults.BaseDir,
		image:       defaults.Image,
		readiness:   defaults.Readiness,
	}
}

func (b *Builder) WithChainID(id uint64) error {
	if err := validation.ValidateChainID(id); err != nil {
		return err
	}
	b.chainID = id
	return nil
}

func (b *Builder) WithBlockPeriod(seconds uint64) error {
	if err := validation.ValidateBlockPeriod(seconds); err != nil {
		return err
	}
	b.blockPeriod = seconds
	return nil
}

func (b *Builder) WithEpochLength(blocks uint64) error {
	if blocks == 0 {
		return domain.NewValidationError("epoch length", "must be a positive integer", "0")
	}
	b.epochLength = blocks
	return nil
}

func (b *Builder) WithName(name string) error {
	if err := validation.ValidateClusterName(name); err != nil {
		return err
	}
	b.name = name
	return nil
}

func (b *Builder) WithSubnet(cidr string) error {
	subnet, err := validation.ValidateSubnet(cidr)
	if err != nil {
		return err
	}
	b.subnet = &subnet
	return nil
}

// WithNode appends a node. Subnet membership is checked by Build once the
// subnet is resolved, since an adopted network may replace the configured one.
func (b *Builder) WithNode(spec domain.NodeSpec) error {
	warnings, err := validation.ValidateNodeSpec(spec, nil)
	if err != nil {
		return err
	}
	for _, existing := range b.nodes {
		if existing.Name == spec.Name {
			return &domain.ConflictError{Kind: domain.ConflictDuplicateName, Subject: spec.Name}
		}
		if validation.SameIP(existing.IP, spec.IP) {
			return &domain.ConflictError{Kind: domain.ConflictDuplicateIP, Subject: spec.IP, With: existing.Name}
		}
		if spec.HasRPCPort() && existing.HasRPCPort() && existing.RPCPort == spec.RPCPort {
			return &domain.ConflictError{Kind: domain.ConflictDuplicatePort, Subject: fmt.Sprint(spec.RPCPort), With: existing.Name}
		}
	}
	b.warn(warnings...)
	b.nodes = append(b.nodes, spec)
	return nil
}

func (b *Builder) WithBaseDir(dir string) error {
	if dir == "" {
		return domain.NewValidationError("base directory", "must not be empty", dir)
	}
	b.baseDir = dir
	return nil
}

func (b *Builder) WithImage(image string) error {
	if image == "" {
		return domain.NewValidationError("image", "must not be empty", image)
	}
	b.image = image
	return nil
}

// WithReadiness overrides the node readiness deadline, poll interval and
// grace delay.
func (b *Builder) WithReadiness(cfg domain.ReadinessConfig) error {
	if cfg.Timeout <= 0 {
		return domain.NewValidationError("readiness timeout", "must be positive", cfg.Timeout.String())
	}
	if cfg.PollInterval <= 0 || cfg.PollInterval > cfg.Timeout {
		return domain.NewValidationError("readiness poll interval", "must be positive and not exceed the timeout", cfg.PollInterval.String())
	}
	if cfg.GraceDelay < 0 {
		return domain.NewValidationError("readiness grace delay", "must not be negative", cfg.GraceDelay.String())
	}
	b.readiness = cfg
	return nil
}

// WithAutoStart makes Build call Setup on the new orchestrator.
func (b *Builder) WithAutoStart(enabled bool) {
	b.autoStart = enabled
}

// Warnings returns the non-fatal findings collected so far.
func (b *Builder) Warnings() []string {
	return append([]string(nil), b.warnings...)
}

func (b *Builder) warn(warnings ...string) {
	for _, w := range warnings {
		b.logger.Warn(w)
		b.warnings = append(b.warnings, w)
	}
}

// Build validates the assembled configuration against persisted clusters and
// the runtime, checks the environment, and returns an orchestrator. With
// auto-start the orchestrator is already RUNNING.
func (b *Builder) Build(ctx context.Context) (*network.Orchestrator, error) {
	if b.deps.Runtime == nil || b.deps.Files == nil || b.deps.Keys == nil {
		return nil, fmt.Errorf("builder: runtime, file store and key generator are required")
	}
	if err := b.requireFields(); err != nil {
		return nil, err
	}

	baseDir, err := filepath.Abs(b.baseDir)
	if err != nil {
		return nil, domain.NewValidationError("base directory", err.Error(), b.baseDir)
	}

	name, generated := b.name, false
	if name == "" {
		name, generated = namePrefix+b.now().UTC().Format("20060102150405"), true
	}

	if err := network.CheckChainID(b.deps.Files, baseDir, b.chainID, name, b.logger); err != nil {
		return nil, err
	}

	subnet, adopted, err := b.resolveSubnet(ctx, name)
	if err != nil {
		return nil, err
	}

	warnings, err := validation.ValidateNodes(b.nodes, subnet)
	if err != nil {
		return nil, err
	}
	b.warn(warnings...)

	if b.checker != nil {
		if err := b.checker.Check(ctx, ports.PrerequisiteRequest{
			Image:     b.image,
			NodeCount: len(b.nodes),
			DataDir:   baseDir,
		}); err != nil {
			return nil, err
		}
	}

	cfg := domain.ClusterConfig{
		ChainID:       b.chainID,
		BlockPeriod:   b.blockPeriod,
		EpochLength:   b.epochLength,
		Name:          name,
		NameGenerated: generated,
		Subnet:        subnet.String(),
		Adopted:       adopted,
		Nodes:         append([]domain.NodeSpec(nil), b.nodes...),
		BaseDir:       baseDir,
		Image:         b.image,
		Readiness:     b.readiness,
	}

	orch, err := network.New(cfg, b.deps)
	if err != nil {
		return nil, err
	}
	b.logger.Info("cluster configuration accepted",
		"cluster", name,
		"chain_id", cfg.ChainID,
		"subnet", cfg.Subnet,
		"adopted", adopted,
		"nodes", len(cfg.Nodes),
	)

	if b.autoStart {
		if err := orch.Setup(ctx); err != nil {
			return nil, err
		}
	}
	return orch, nil
}

func (b *Builder) requireFields() error {
	switch {
	case b.chainID == 0:
		return domain.NewValidationError("chain id", "is required", "")
	case b.blockPeriod == 0:
		return domain.NewValidationError("block period", "is required", "")
	case len(b.nodes) == 0:
		return domain.NewValidationError("nodes", "at least one node is required", "")
	}
	return nil
}

// resolveSubnet adopts the subnet of an existing network named after the
// cluster, or checks the configured subnet against every network in use.
func (b *Builder) resolveSubnet(ctx context.Context, name string) (validation.Subnet, bool, error) {
	exists, err := b.deps.Runtime.NetworkExists(ctx, name)
	if err != nil {
		return validation.Subnet{}, false, err
	}

	if exists {
		info, err := b.deps.Runtime.InspectNetwork(ctx, name)
		if err != nil {
			return validation.Subnet{}, false, err
		}
		for _, cidr := range info.Subnets {
			subnet, err := validation.ParseSubnet(cidr)
			if err != nil {
				continue
			}
			if b.subnet != nil && b.subnet.String() != subnet.String() {
				b.logger.Warn("adopting existing network subnet over configured subnet",
					"network", name, "configured", b.subnet.String(), "adopted", subnet.String())
			}
			return subnet, true, nil
		}
		return validation.Subnet{}, false, domain.NewValidationError("subnet",
			"existing network has no usable IPv4 subnet", name)
	}

	if b.subnet == nil {
		return validation.Subnet{}, false, domain.NewValidationError("subnet",
			"subnet required to create a new network", "")
	}

	networks, err := b.deps.Runtime.ListNetworks(ctx)
	if err != nil {
		return validation.Subnet{}, false, err
	}
	for _, n := range networks {
		for _, cidr := range n.Subnets {
			used, err := validation.ParseSubnet(cidr)
			if err != nil {
				continue
			}
			if used.Overlaps(*b.subnet) {
				return validation.Subnet{}, false, &domain.ConflictError{
					Kind:    domain.ConflictSubnet,
					Subject: b.subnet.String(),
					With:    n.Name,
				}
			}
		}
	}
	return *b.subnet, false, nil
}

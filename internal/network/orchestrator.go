// Package network owns a cluster's fleet of nodes: bootstrap, teardown and
// membership changes, with the cluster metadata kept on disk.
package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/genesis"
	"github.com/eleven-am/poanet/internal/helpers/breaker"
	"github.com/eleven-am/poanet/internal/helpers/metadata"
	"github.com/eleven-am/poanet/internal/node"
	"github.com/eleven-am/poanet/internal/ports"
	"github.com/eleven-am/poanet/internal/validation"
)

type Deps struct {
	Runtime ports.ContainerRuntime
	Files   ports.FileStore
	Keys    ports.KeyGenerator
	Dialer  ports.ChainDialer
	Events  ports.EventPublisher
	Logger  hclog.Logger
}

// AddNodeResult reports a membership addition. Funded is false when no
// balance was requested or the transfer could not be submitted.
type AddNodeResult struct {
	Node    string
	Address string
	Funded  bool
	TxHash  string
}

type NodeInfo struct {
	Name      string
	IP        string
	Address   string
	Validator bool
	Status    domain.NodeStatus
	RPCURL    string
}

type Info struct {
	Cluster     string
	ChainID     uint64
	BlockPeriod uint64
	Subnet      string
	Status      domain.NetworkStatus
	NetworkID   string
	LatestBlock uint64
	Nodes       []NodeInfo
}

type Orchestrator struct {
	cfg     domain.ClusterConfig
	subnet  validation.Subnet
	layout  Layout
	runtime ports.ContainerRuntime
	files   ports.FileStore
	keys    ports.KeyGenerator
	dialer  ports.ChainDialer
	events  ports.EventPublisher
	logger  hclog.Logger
	genesis *genesis.Generator
	now     func() time.Time

	registry *Registry
	monitor  *blockMonitor

	// opMu serializes Setup, Teardown, AddNode and RemoveNode.
	opMu sync.Mutex

	mu        sync.RWMutex
	status    domain.NetworkStatus
	networkID string
	createdAt time.Time
}

func New(cfg domain.ClusterConfig, deps Deps) (*Orchestrator, error) {
	if deps.Runtime == nil || deps.Files == nil || deps.Keys == nil {
		return nil, fmt.Errorf("orchestrator: runtime, file store and key generator are required")
	}
	if err := validation.ValidateClusterName(cfg.Name); err != nil {
		return nil, err
	}
	if err := validation.ValidateChainID(cfg.ChainID); err != nil {
		return nil, err
	}
	if err := validation.ValidateBlockPeriod(cfg.BlockPeriod); err != nil {
		return nil, err
	}
	subnet, err := validation.ParseSubnet(cfg.Subnet)
	if err != nil {
		return nil, err
	}
	if len(cfg.Validators()) == 0 {
		return nil, domain.NewValidationError("nodes", "at least one validator is required", "")
	}
	logger := deps.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	cfg = cfg.Clone()
	cfg.Readiness = domain.ApplyReadinessDefaults(cfg.Readiness)
	if cfg.Image == "" {
		cfg.Image = domain.DefaultImage
	}
	if cfg.EpochLength == 0 {
		cfg.EpochLength = domain.DefaultEpochLength
	}

	o := &Orchestrator{
		cfg:      cfg,
		subnet:   subnet,
		layout:   Layout{BaseDir: cfg.BaseDir, Cluster: cfg.Name},
		runtime:  deps.Runtime,
		files:    deps.Files,
		keys:     deps.Keys,
		dialer:   deps.Dialer,
		events:   deps.Events,
		logger:   logger.Named("orchestrator").With("cluster", cfg.Name),
		genesis:  genesis.NewGenerator(logger),
		now:      time.Now,
		registry: NewRegistry(),
		status:   domain.NetworkUninitialized,
	}
	interval := time.Duration(cfg.BlockPeriod) * time.Second
	o.monitor = &blockMonitor{
		cluster:  cfg.Name,
		interval: interval,
		client:   o.rpcClient,
		guard: breaker.New("block-poll", breaker.Config{
			FailureThreshold: monitorFailureThreshold,
			Cooldown:         monitorCooldownPeriods * interval,
		}, o.logger),
		events: deps.Events,
		logger: o.logger.Named("blocks"),
		now:    o.now,
	}
	return o, nil
}

func (o *Orchestrator) Config() domain.ClusterConfig {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cfg.Clone()
}

func (o *Orchestrator) Layout() Layout {
	return o.layout
}

func (o *Orchestrator) Status() domain.NetworkStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

func (o *Orchestrator) Node(name string) (*node.Node, bool) {
	n, _, ok := o.registry.Get(name)
	return n, ok
}

func (o *Orchestrator) Nodes() []*node.Node {
	return o.registry.Nodes()
}

func (o *Orchestrator) Validators() []string {
	return o.registry.Validators()
}

// Setup brings the cluster from UNINITIALIZED to RUNNING. On failure the
// partially created resources are torn down, keeping the data directory, and
// the original error is returned.
func (o *Orchestrator) Setup(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if err := o.require("setup", domain.NetworkUninitialized); err != nil {
		return err
	}
	if err := o.transition(domain.NetworkInitializing); err != nil {
		return err
	}

	if err := o.setup(ctx); err != nil {
		o.logger.Error("setup failed, rolling back", "error", err)
		if terr := o.transition(domain.NetworkError); terr != nil {
			o.logger.Warn("could not record error state", "error", terr)
		}
		if rerr := o.teardown(context.WithoutCancel(ctx), false); rerr != nil {
			o.logger.Error("rollback after failed setup did not complete cleanly", "error", rerr)
		}
		return err
	}

	if err := o.transition(domain.NetworkRunning); err != nil {
		return err
	}
	o.logger.Info("cluster running", "nodes", o.registry.Len(), "validators", len(o.registry.Validators()))
	return nil
}

func (o *Orchestrator) setup(ctx context.Context) error {
	o.mu.Lock()
	o.createdAt = o.now().UTC()
	o.mu.Unlock()

	if err := o.layout.Materialize(o.files); err != nil {
		return err
	}
	if err := CheckChainID(o.files, o.cfg.BaseDir, o.cfg.ChainID, o.cfg.Name, o.logger); err != nil {
		return err
	}
	if err := o.ensureNetwork(ctx); err != nil {
		return err
	}

	identities := make(map[string]domain.NodeIdentity, len(o.cfg.Nodes))
	for _, spec := range o.cfg.Nodes {
		id, err := provisionIdentity(o.files, o.keys, o.layout.NodeDir(spec.Name), spec, true)
		if err != nil {
			return err
		}
		identities[spec.Name] = id
	}
	if err := o.writeGenesis(identities); err != nil {
		return err
	}

	for _, spec := range o.cfg.Nodes {
		if _, err := o.launchNode(ctx, spec, identities[spec.Name]); err != nil {
			return err
		}
	}

	if err := o.persist(); err != nil {
		return err
	}
	o.monitor.start()
	return nil
}

func (o *Orchestrator) ensureNetwork(ctx context.Context) error {
	exists, err := o.runtime.NetworkExists(ctx, o.cfg.Name)
	if err != nil {
		return err
	}
	if exists {
		info, err := o.runtime.InspectNetwork(ctx, o.cfg.Name)
		if err != nil {
			return err
		}
		o.setNetworkID(info.ID)
		o.logger.Info("reusing existing network", "network", o.cfg.Name, "id", info.ID)
		return nil
	}

	id, err := o.runtime.CreateNetwork(ctx, ports.NetworkSpec{
		Name:    o.cfg.Name,
		Subnet:  o.subnet.String(),
		Gateway: o.subnet.Gateway(),
		Labels:  metadata.ClusterLabels(o.cfg.Name),
	})
	if err != nil {
		return err
	}
	o.setNetworkID(id)
	o.logger.Info("created network", "network", o.cfg.Name, "subnet", o.subnet.String())
	return nil
}

func (o *Orchestrator) setNetworkID(id string) {
	o.mu.Lock()
	o.networkID = id
	o.mu.Unlock()
}

// writeGenesis allocates every validator plus any node that requested a
// balance.
func (o *Orchestrator) writeGenesis(identities map[string]domain.NodeIdentity) error {
	var validators []string
	var accounts []genesis.Account
	for _, spec := range o.cfg.Nodes {
		id := identities[spec.Name]
		if spec.Validator {
			validators = append(validators, id.Address)
		}
		if !spec.Validator && spec.Balance == "" {
			continue
		}
		accounts = append(accounts, genesis.Account{Address: id.Address, Balance: o.balanceWei(spec)})
	}

	doc, err := o.genesis.Generate(genesis.Params{
		ChainID:     o.cfg.ChainID,
		BlockPeriod: o.cfg.BlockPeriod,
		EpochLength: o.cfg.EpochLength,
		Validators:  validators,
		Accounts:    accounts,
	})
	if err != nil {
		return err
	}
	return o.files.WriteJSON(o.layout.GenesisPath(), doc)
}

// balanceWei converts the node's ether balance to hex wei. Malformed values
// yield "" so the genesis default applies.
func (o *Orchestrator) balanceWei(spec domain.NodeSpec) string {
	if spec.Balance == "" {
		return ""
	}
	wei, err := genesis.EtherToWeiHex(spec.Balance)
	if err != nil {
		o.logger.Warn("unparseable balance, using default", "node", spec.Name, "balance", spec.Balance, "error", err)
		return ""
	}
	return wei
}

// launchNode registers and starts one node, bootstrapping it from the
// validators already running.
func (o *Orchestrator) launchNode(ctx context.Context, spec domain.NodeSpec, id domain.NodeIdentity) (*node.Node, error) {
	bootnodes, err := o.bootnodes(ctx)
	if err != nil {
		return nil, err
	}

	n, err := node.New(node.Config{
		Cluster:     o.cfg.Name,
		Network:     o.cfg.Name,
		Spec:        spec,
		Address:     id.Address,
		Image:       o.cfg.Image,
		DataDir:     o.layout.NodeDir(spec.Name),
		GenesisPath: o.layout.GenesisPath(),
		Readiness:   o.cfg.Readiness,
	}, o.nodeDeps())
	if err != nil {
		return nil, err
	}
	if !o.registry.Add(n, id) {
		return nil, &domain.ConflictError{Kind: domain.ConflictDuplicateName, Subject: spec.Name}
	}

	o.logger.Info("starting node", "node", spec.Name, "ip", spec.IP, "validator", spec.Validator, "bootnodes", len(bootnodes))
	if err := n.Start(ctx, bootnodes); err != nil {
		return n, fmt.Errorf("start node %s: %w", spec.Name, err)
	}
	return n, nil
}

func (o *Orchestrator) nodeDeps() node.Deps {
	return node.Deps{
		Runtime: o.runtime,
		Dialer:  o.dialer,
		Events:  o.events,
		Logger:  o.logger,
	}
}

func (o *Orchestrator) bootnodes(ctx context.Context) ([]string, error) {
	var urls []string
	for _, n := range o.registry.Nodes() {
		if !n.IsValidator() || n.Status() != domain.NodeRunning {
			continue
		}
		url, err := n.EnodeURL(ctx)
		if err != nil {
			return nil, fmt.Errorf("peer address of %s: %w", n.Name(), err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// rpcClient returns the live connection of the first running RPC node.
func (o *Orchestrator) rpcClient() ports.ChainClient {
	for _, n := range o.registry.Nodes() {
		if !n.Spec().RPC || n.Status() != domain.NodeRunning {
			continue
		}
		if c := n.Client(); c != nil {
			return c
		}
	}
	return nil
}

// Teardown stops and removes every node and the runtime network. Per-node
// failures are logged and do not abort the teardown. The network ends in
// STOPPED even when removing the network or the data directory fails; that
// error is returned.
func (o *Orchestrator) Teardown(ctx context.Context, removeData bool) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if err := o.require("teardown", domain.NetworkRunning, domain.NetworkError); err != nil {
		return err
	}
	return o.teardown(ctx, removeData)
}

func (o *Orchestrator) teardown(ctx context.Context, removeData bool) error {
	if err := o.transition(domain.NetworkStopping); err != nil {
		return err
	}
	o.monitor.stop()

	nodes := o.registry.Nodes()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		nodeErrs *multierror.Error
	)
	collect := func(err error) {
		mu.Lock()
		nodeErrs = multierror.Append(nodeErrs, err)
		mu.Unlock()
	}

	for _, n := range nodes {
		if n.Status() != domain.NodeRunning {
			continue
		}
		wg.Add(1)
		go func(n *node.Node) {
			defer wg.Done()
			if err := n.Stop(ctx); err != nil {
				collect(fmt.Errorf("stop %s: %w", n.Name(), err))
			}
		}(n)
	}
	wg.Wait()

	for _, n := range nodes {
		wg.Add(1)
		go func(n *node.Node) {
			defer wg.Done()
			if err := n.Remove(ctx); err != nil {
				collect(fmt.Errorf("remove %s: %w", n.Name(), err))
			}
		}(n)
	}
	wg.Wait()
	o.sweepOrphans(ctx)

	if err := nodeErrs.ErrorOrNil(); err != nil {
		o.logger.Warn("teardown completed with node failures", "error", err)
	}

	var result *multierror.Error
	if err := o.runtime.RemoveNetwork(ctx, o.cfg.Name); err != nil {
		o.logger.Error("failed to remove network", "network", o.cfg.Name, "error", err)
		result = multierror.Append(result, err)
	}
	if removeData {
		if err := o.files.Remove(o.layout.ClusterDir()); err != nil {
			o.logger.Error("failed to remove data directory", "path", o.layout.ClusterDir(), "error", err)
			result = multierror.Append(result, err)
		}
	}

	o.registry.Clear()
	if err := o.transition(domain.NetworkStopped); err != nil {
		result = multierror.Append(result, err)
	}
	o.logger.Info("cluster stopped", "data_removed", removeData)
	return result.ErrorOrNil()
}

// sweepOrphans removes containers labelled for this cluster that no node
// tracks, such as those left behind by a process that crashed during setup.
func (o *Orchestrator) sweepOrphans(ctx context.Context) {
	leftovers, err := o.runtime.ListContainers(ctx, metadata.ClusterFilter(o.cfg.Name))
	if err != nil {
		o.logger.Warn("orphaned container sweep skipped", "error", err)
		return
	}
	for _, c := range leftovers {
		if err := o.runtime.RemoveContainer(ctx, c.ID, true); err != nil {
			o.logger.Warn("failed to remove orphaned container", "container", c.Name, "error", err)
			continue
		}
		o.logger.Info("removed orphaned container", "container", c.Name)
	}
}

// Detach stops the block monitor and closes RPC connections. Containers keep
// running and the status is unchanged, so a later Restore can pick the
// cluster up again.
func (o *Orchestrator) Detach() {
	o.monitor.stop()
	for _, n := range o.registry.Nodes() {
		n.Disconnect()
	}
}

// AddNode validates spec against the live membership, provisions a fresh
// identity and starts the node. A requested balance is transferred from the
// first validator; a failed transfer leaves Funded false without failing.
func (o *Orchestrator) AddNode(ctx context.Context, spec domain.NodeSpec) (AddNodeResult, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if err := o.require("add node", domain.NetworkRunning); err != nil {
		return AddNodeResult{}, err
	}
	if err := o.validateNewNode(spec); err != nil {
		return AddNodeResult{}, err
	}

	id, err := provisionIdentity(o.files, o.keys, o.layout.NodeDir(spec.Name), spec, false)
	if err != nil {
		return AddNodeResult{}, err
	}

	n, err := o.launchNode(ctx, spec, id)
	if err != nil {
		if n != nil {
			if rerr := n.Remove(context.WithoutCancel(ctx)); rerr != nil {
				o.logger.Warn("could not remove failed node", "node", spec.Name, "error", rerr)
			}
			o.registry.Remove(spec.Name)
		}
		return AddNodeResult{}, err
	}

	o.mu.Lock()
	o.cfg.Nodes = append(o.cfg.Nodes, spec)
	o.mu.Unlock()
	if err := o.persist(); err != nil {
		return AddNodeResult{}, err
	}

	result := AddNodeResult{Node: spec.Name, Address: id.Address}
	if spec.Balance != "" {
		result.TxHash, result.Funded = o.fund(ctx, spec, id)
	}

	o.publishMembership(spec.Name, domain.MembershipAdded, spec.Validator)
	o.logger.Info("node added", "node", spec.Name, "validator", spec.Validator, "funded", result.Funded)
	return result, nil
}

func (o *Orchestrator) validateNewNode(spec domain.NodeSpec) error {
	warnings, err := validation.ValidateNodeSpec(spec, &o.subnet)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		o.logger.Warn(w, "node", spec.Name)
	}

	for _, n := range o.registry.Nodes() {
		existing := n.Spec()
		if existing.Name == spec.Name {
			return &domain.ConflictError{Kind: domain.ConflictDuplicateName, Subject: spec.Name}
		}
		if validation.SameIP(existing.IP, spec.IP) {
			return &domain.ConflictError{Kind: domain.ConflictDuplicateIP, Subject: spec.IP, With: existing.Name}
		}
		if spec.HasRPCPort() && existing.HasRPCPort() && existing.RPCPort == spec.RPCPort {
			return &domain.ConflictError{
				Kind:    domain.ConflictDuplicatePort,
				Subject: fmt.Sprint(spec.RPCPort),
				With:    existing.Name,
			}
		}
	}
	return nil
}

func (o *Orchestrator) fund(ctx context.Context, spec domain.NodeSpec, id domain.NodeIdentity) (string, bool) {
	wei, err := genesis.EtherToWei(spec.Balance)
	if err != nil {
		o.logger.Warn("funding skipped: unparseable balance", "node", spec.Name, "balance", spec.Balance, "error", err)
		return "", false
	}

	var source domain.NodeIdentity
	found := false
	for _, name := range o.registry.Validators() {
		if name == spec.Name {
			continue
		}
		_, vid, ok := o.registry.Get(name)
		if ok && vid.PrivateKey != "" {
			source, found = vid, true
			break
		}
	}
	if !found {
		o.logger.Warn("funding skipped: no validator account available", "node", spec.Name)
		return "", false
	}

	client := o.rpcClient()
	if client == nil {
		o.logger.Warn("funding skipped: no rpc-enabled node is running", "node", spec.Name)
		return "", false
	}

	hash, err := client.Transfer(ctx, source.PrivateKey, id.Address, wei)
	if err != nil {
		o.logger.Warn("funding transfer failed", "node", spec.Name, "from", source.Address, "error", err)
		return "", false
	}
	o.logger.Info("funding transfer submitted", "node", spec.Name, "tx", hash, "wei", wei.String())
	return hash, true
}

// RemoveNode stops and removes a node. The sole remaining validator cannot
// be removed.
func (o *Orchestrator) RemoveNode(ctx context.Context, name string) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if err := o.require("remove node", domain.NetworkRunning); err != nil {
		return err
	}
	n, _, ok := o.registry.Get(name)
	if !ok {
		return &domain.NotFoundError{Kind: domain.NotFoundNode, Name: name}
	}
	if n.IsValidator() && len(o.registry.Validators()) == 1 {
		return &domain.LastValidatorError{Node: name}
	}

	if n.Status() == domain.NodeRunning {
		if err := n.Stop(ctx); err != nil {
			o.logger.Warn("stop failed, forcing removal", "node", name, "error", err)
		}
	}
	if err := n.Remove(ctx); err != nil {
		return err
	}

	o.registry.Remove(name)
	o.mu.Lock()
	for i, spec := range o.cfg.Nodes {
		if spec.Name == name {
			o.cfg.Nodes = append(o.cfg.Nodes[:i:i], o.cfg.Nodes[i+1:]...)
			break
		}
	}
	o.mu.Unlock()
	if err := o.persist(); err != nil {
		return err
	}

	o.publishMembership(name, domain.MembershipRemoved, n.IsValidator())
	o.logger.Info("node removed", "node", name)
	return nil
}

func (o *Orchestrator) publishMembership(name string, action domain.MembershipAction, validator bool) {
	if o.events == nil {
		return
	}
	o.events.Publish(domain.MembershipChanged{
		Cluster:    o.cfg.Name,
		Node:       name,
		Action:     action,
		Validator:  validator,
		Validators: o.registry.Validators(),
		At:         o.now(),
	})
}

// Metadata snapshots the persisted view of the cluster.
func (o *Orchestrator) Metadata() domain.ClusterMetadata {
	o.mu.RLock()
	meta := domain.ClusterMetadata{
		ClusterName: o.cfg.Name,
		ChainID:     o.cfg.ChainID,
		BlockPeriod: o.cfg.BlockPeriod,
		Subnet:      o.subnet.String(),
		Image:       o.cfg.Image,
		CreatedAt:   o.createdAt,
		NetworkID:   o.networkID,
		DataDir:     o.layout.ClusterDir(),
	}
	o.mu.RUnlock()

	for _, n := range o.registry.Nodes() {
		spec := n.Spec()
		meta.Nodes = append(meta.Nodes, domain.NodeMetadata{
			Name:        spec.Name,
			ContainerID: n.ContainerID(),
			Address:     n.Address(),
			IP:          spec.IP,
			Validator:   spec.Validator,
			RPC:         spec.RPC,
			RPCPort:     spec.RPCPort,
		})
	}
	return meta
}

func (o *Orchestrator) persist() error {
	return SaveMetadata(o.files, o.layout, o.Metadata())
}

func (o *Orchestrator) Info() Info {
	o.mu.RLock()
	info := Info{
		Cluster:     o.cfg.Name,
		ChainID:     o.cfg.ChainID,
		BlockPeriod: o.cfg.BlockPeriod,
		Subnet:      o.subnet.String(),
		Status:      o.status,
		NetworkID:   o.networkID,
	}
	o.mu.RUnlock()

	info.LatestBlock = o.monitor.Latest()
	for _, n := range o.registry.Nodes() {
		spec := n.Spec()
		info.Nodes = append(info.Nodes, NodeInfo{
			Name:      spec.Name,
			IP:        spec.IP,
			Address:   n.Address(),
			Validator: spec.Validator,
			Status:    n.Status(),
			RPCURL:    n.RPCURL(),
		})
	}
	return info
}

func (o *Orchestrator) require(op string, allowed ...domain.NetworkStatus) error {
	current := o.Status()
	for _, s := range allowed {
		if current == s {
			return nil
		}
	}
	return &domain.InvalidStateError{
		Entity:    domain.EntityNetwork,
		Name:      o.cfg.Name,
		Operation: op,
		Current:   current.String(),
		Allowed:   domain.NetworkStatusNames(allowed...),
	}
}

func (o *Orchestrator) transition(target domain.NetworkStatus) error {
	o.mu.Lock()
	from := o.status
	if !from.CanTransitionTo(target) {
		o.mu.Unlock()
		return &domain.InvalidStateError{
			Entity:    domain.EntityNetwork,
			Name:      o.cfg.Name,
			Operation: "transition to " + target.String(),
			Current:   from.String(),
		}
	}
	o.status = target
	o.mu.Unlock()

	o.logger.Info("network state transition", "from", from, "to", target)
	return nil
}

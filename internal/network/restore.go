package network

import (
	"context"
	"path/filepath"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/helpers/metadata"
	"github.com/eleven-am/poanet/internal/node"
)

// Restore rebuilds a RUNNING orchestrator from persisted metadata so that a
// new process can manage a cluster started by an earlier one. Each node is
// RUNNING if its container is running and STOPPED otherwise.
func Restore(ctx context.Context, meta domain.ClusterMetadata, readiness domain.ReadinessConfig, deps Deps) (*Orchestrator, error) {
	cfg := domain.ClusterConfig{
		ChainID:     meta.ChainID,
		BlockPeriod: meta.BlockPeriod,
		Name:        meta.ClusterName,
		Subnet:      meta.Subnet,
		Adopted:     true,
		BaseDir:     filepath.Dir(meta.DataDir),
		Image:       meta.Image,
		Readiness:   readiness,
	}
	for _, n := range meta.Nodes {
		cfg.Nodes = append(cfg.Nodes, domain.NodeSpec{
			Name:      n.Name,
			IP:        n.IP,
			Validator: n.Validator,
			RPC:       n.RPC,
			RPCPort:   n.RPCPort,
		})
	}

	o, err := New(cfg, deps)
	if err != nil {
		return nil, err
	}
	o.createdAt = meta.CreatedAt
	o.networkID = meta.NetworkID

	labelled := o.labelledContainers(ctx)
	for i, spec := range cfg.Nodes {
		id, ok, err := LoadIdentity(o.files, o.layout.NodeDir(spec.Name))
		if err != nil {
			return nil, err
		}
		if !ok {
			id = domain.NodeIdentity{Address: meta.Nodes[i].Address}
		}

		containerID := meta.Nodes[i].ContainerID
		if containerID == "" {
			if found, ok := labelled[spec.Name]; ok {
				o.logger.Info("re-associated container by label", "node", spec.Name, "container", found)
				containerID = found
			}
		}
		running := false
		if containerID != "" {
			state, err := o.runtime.InspectContainer(ctx, containerID)
			if err != nil {
				o.logger.Warn("container not inspectable, treating node as stopped", "node", spec.Name, "error", err)
			} else {
				running = state.Running && !state.Restarting
			}
		}

		n, err := node.Restore(node.Config{
			Cluster:     cfg.Name,
			Network:     cfg.Name,
			Spec:        spec,
			Address:     id.Address,
			Image:       o.cfg.Image,
			DataDir:     o.layout.NodeDir(spec.Name),
			GenesisPath: o.layout.GenesisPath(),
			Readiness:   o.cfg.Readiness,
		}, o.nodeDeps(), containerID, running)
		if err != nil {
			return nil, err
		}
		if running {
			if err := n.Connect(ctx); err != nil {
				o.logger.Warn("rpc connection unavailable", "node", spec.Name, "error", err)
			}
		}
		o.registry.Add(n, id)
	}

	o.status = domain.NetworkRunning
	o.monitor.start()
	o.logger.Info("cluster restored", "nodes", o.registry.Len())
	return o, nil
}

// labelledContainers maps node names to the ids of containers carrying this
// cluster's ownership labels.
func (o *Orchestrator) labelledContainers(ctx context.Context) map[string]string {
	out := make(map[string]string)
	list, err := o.runtime.ListContainers(ctx, metadata.ClusterFilter(o.cfg.Name))
	if err != nil {
		o.logger.Warn("labelled container lookup failed", "error", err)
		return out
	}
	for _, c := range list {
		if name := c.Labels[metadata.LabelNode]; name != "" {
			out[name] = c.ID
		}
	}
	return out
}

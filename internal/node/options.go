package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/helpers/metadata"
	"github.com/eleven-am/poanet/internal/ports"
)

const rpcAPIs = "ETH,NET,WEB3,CLIQUE,ADMIN,TXPOOL"

// ContainerSpec builds the declarative container description for a node.
// bootnodes are enode URLs of validators already running.
func ContainerSpec(cfg Config, bootnodes []string) ports.ContainerSpec {
	spec := cfg.Spec
	env := []string{
		"BESU_DATA_PATH=" + domain.ContainerDataDir,
		"BESU_GENESIS_FILE=" + domain.ContainerGenesisPath,
		"BESU_NODE_PRIVATE_KEY_FILE=" + filepath.ToSlash(filepath.Join(domain.ContainerDataDir, domain.KeyFile)),
		"BESU_P2P_HOST=" + spec.IP,
		fmt.Sprintf("BESU_P2P_PORT=%d", domain.P2PPort),
		"BESU_MIN_GAS_PRICE=0",
		"BESU_SYNC_MODE=FULL",
	}
	if len(bootnodes) > 0 {
		env = append(env, "BESU_BOOTNODES="+strings.Join(bootnodes, ","))
	}

	var bindings []ports.PortBinding
	if spec.RPC {
		env = append(env,
			"BESU_RPC_HTTP_ENABLED=true",
			"BESU_RPC_HTTP_HOST=0.0.0.0",
			fmt.Sprintf("BESU_RPC_HTTP_PORT=%d", domain.RPCPort),
			"BESU_RPC_HTTP_API="+rpcAPIs,
			"BESU_RPC_HTTP_CORS_ORIGINS=*",
			"BESU_HOST_ALLOWLIST=*",
		)
		bindings = append(bindings, ports.PortBinding{ContainerPort: domain.RPCPort, HostPort: spec.RPCPort})
	}

	return ports.ContainerSpec{
		Name:  ContainerName(cfg.Cluster, spec.Name),
		Image: cfg.Image,
		Env:   env,
		Volumes: []ports.VolumeBinding{
			{HostPath: cfg.DataDir, ContainerPath: domain.ContainerDataDir},
			{HostPath: cfg.GenesisPath, ContainerPath: domain.ContainerGenesisPath, ReadOnly: true},
		},
		Network: cfg.Network,
		IP:      spec.IP,
		Ports:   bindings,
		Labels:  metadata.NodeLabels(cfg.Cluster, spec.Name, spec.Validator),
		User:    hostUser(),
	}
}

// hostUser runs the container as the invoking user so it can read the
// owner-only key file in its bind-mounted data directory.
func hostUser() string {
	uid, gid := os.Getuid(), os.Getgid()
	if uid < 0 || gid < 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", uid, gid)
}

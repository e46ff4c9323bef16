package domain

import (
	"strings"
	"time"
)

// NodeSpec describes one node of a cluster before it is provisioned.
type NodeSpec struct {
	Name      string `json:"name" toml:"name"`
	IP        string `json:"ip" toml:"ip"`
	Validator bool   `json:"validator" toml:"validator"`
	RPC       bool   `json:"rpc" toml:"rpc"`
	RPCPort   int    `json:"rpc_port,omitempty" toml:"rpc_port"`
	Seed      string `json:"seed,omitempty" toml:"seed"`
	Balance   string `json:"balance,omitempty" toml:"balance"`
}

func (s NodeSpec) HasRPCPort() bool {
	return s.RPC && s.RPCPort > 0
}

type ReadinessConfig struct {
	Timeout      time.Duration
	PollInterval time.Duration
	GraceDelay   time.Duration
}

// ClusterConfig is the validated, immutable input to an orchestrator.
type ClusterConfig struct {
	ChainID     uint64
	BlockPeriod uint64
	EpochLength uint64
	Name        string
	// NameGenerated is true when Name was derived rather than supplied.
	NameGenerated bool
	Subnet        string
	// Adopted is true when the runtime network already existed at build time.
	Adopted   bool
	Nodes     []NodeSpec
	BaseDir   string
	Image     string
	Readiness ReadinessConfig
}

func (c ClusterConfig) Clone() ClusterConfig {
	out := c
	out.Nodes = make([]NodeSpec, len(c.Nodes))
	copy(out.Nodes, c.Nodes)
	return out
}

func (c ClusterConfig) Validators() []NodeSpec {
	var validators []NodeSpec
	for _, n := range c.Nodes {
		if n.Validator {
			validators = append(validators, n)
		}
	}
	return validators
}

// NodeIdentity is a secp256k1 key triple. Hex fields carry a 0x prefix.
type NodeIdentity struct {
	Address    string
	PublicKey  string
	PrivateKey string
}

func StripHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

func WithHexPrefix(s string) string {
	return "0x" + StripHexPrefix(strings.TrimSpace(s))
}

type NodeMetadata struct {
	Name        string `json:"name"`
	ContainerID string `json:"container_id"`
	Address     string `json:"address"`
	IP          string `json:"ip"`
	Validator   bool   `json:"validator"`
	RPC         bool   `json:"rpc"`
	RPCPort     int    `json:"rpc_port,omitempty"`
}

// ClusterMetadata is the persisted record written to <cluster>/network.json.
type ClusterMetadata struct {
	ClusterName string         `json:"cluster_name"`
	ChainID     uint64         `json:"chain_id"`
	BlockPeriod uint64         `json:"block_period"`
	Subnet      string         `json:"subnet"`
	Image       string         `json:"image"`
	CreatedAt   time.Time      `json:"created_at"`
	NetworkID   string         `json:"network_id"`
	DataDir     string         `json:"data_dir"`
	Nodes       []NodeMetadata `json:"nodes"`
}

func (m *ClusterMetadata) Node(name string) (NodeMetadata, bool) {
	for _, n := range m.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return NodeMetadata{}, false
}

package domain

import "time"

const (
	DefaultImage   = "hyperledger/besu:24.9.1"
	DefaultBaseDir = ".poanet"

	P2PPort = 30303
	RPCPort = 8545

	DefaultEpochLength = 30000

	// DefaultBalanceWei is allocated to accounts without a usable balance.
	DefaultBalanceWei = "0x200000000000000000000000000000000000000000000000000000000000000"

	ContainerDataDir     = "/data"
	ContainerGenesisPath = "/config/genesis.json"

	GenesisFile   = "genesis.json"
	MetadataFile  = "network.json"
	NodesDir      = "nodes"
	KeyFile       = "key"
	PublicKeyFile = "key.pub"
	AddressFile   = "address"
)

type Defaults struct {
	BaseDir     string
	Image       string
	EpochLength uint64
	Readiness   ReadinessConfig

	MinRuntimeVersion string
	MemoryPerNode     uint64
	DiskPerNode       uint64
	PrerequisiteWait  time.Duration
}

func DefaultReadinessConfig() ReadinessConfig {
	return ReadinessConfig{
		Timeout:      120 * time.Second,
		PollInterval: 2 * time.Second,
		GraceDelay:   3 * time.Second,
	}
}

func DefaultDefaults() Defaults {
	return Defaults{
		BaseDir:           DefaultBaseDir,
		Image:             DefaultImage,
		EpochLength:       DefaultEpochLength,
		Readiness:         DefaultReadinessConfig(),
		MinRuntimeVersion: "20.10.0",
		MemoryPerNode:     512 << 20,
		DiskPerNode:       1 << 30,
		PrerequisiteWait:  10 * time.Second,
	}
}

// ApplyReadinessDefaults fills zero fields of r from the defaults.
func ApplyReadinessDefaults(r ReadinessConfig) ReadinessConfig {
	d := DefaultReadinessConfig()
	if r.Timeout <= 0 {
		r.Timeout = d.Timeout
	}
	if r.PollInterval <= 0 {
		r.PollInterval = d.PollInterval
	}
	if r.GraceDelay < 0 {
		r.GraceDelay = 0
	}
	return r
}

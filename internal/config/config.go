// Package config loads the TOML cluster description used by the CLI and
// applies it to a builder.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"

	"github.com/eleven-am/poanet/internal/builder"
	"github.com/eleven-am/poanet/internal/domain"
)

type Config struct {
	BaseDir       string            `toml:"base_dir"`
	Image         string            `toml:"image"`
	Cluster       Cluster           `toml:"cluster"`
	Readiness     Readiness         `toml:"readiness"`
	Prerequisites Prerequisites     `toml:"prerequisites"`
	Nodes         []domain.NodeSpec `toml:"node"`
}

type Cluster struct {
	Name        string `toml:"name"`
	ChainID     uint64 `toml:"chain_id"`
	BlockPeriod uint64 `toml:"block_period"`
	EpochLength uint64 `toml:"epoch_length"`
	Subnet      string `toml:"subnet"`
}

// Readiness durations are written as Go duration strings ("90s").
type Readiness struct {
	Timeout      time.Duration `toml:"timeout"`
	PollInterval time.Duration `toml:"poll_interval"`
	GraceDelay   time.Duration `toml:"grace_delay"`
}

type Prerequisites struct {
	MinRuntimeVersion string        `toml:"min_runtime_version"`
	MemoryPerNodeMiB  uint64        `toml:"memory_per_node_mib"`
	DiskPerNodeMiB    uint64        `toml:"disk_per_node_mib"`
	Wait              time.Duration `toml:"wait"`
}

func Default() Config {
	d := domain.DefaultDefaults()
	return Config{
		BaseDir: d.BaseDir,
		Image:   d.Image,
		Cluster: Cluster{EpochLength: d.EpochLength},
		Readiness: Readiness{
			Timeout:      d.Readiness.Timeout,
			PollInterval: d.Readiness.PollInterval,
			GraceDelay:   d.Readiness.GraceDelay,
		},
		Prerequisites: Prerequisites{
			MinRuntimeVersion: d.MinRuntimeVersion,
			MemoryPerNodeMiB:  d.MemoryPerNode >> 20,
			DiskPerNodeMiB:    d.DiskPerNode >> 20,
			Wait:              d.PrerequisiteWait,
		},
	}
}

// Load decodes path and merges it over Default. Zero values in the file keep
// the default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	var file Config
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, domain.NewValidationError("config", "unknown keys: "+strings.Join(keys, ", "), path)
	}
	cfg := Default()
	if err := cfg.Override(file); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Override merges every non-zero field of o into c.
func (c *Config) Override(o Config) error {
	if err := mergo.Merge(c, o, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge config: %w", err)
	}
	return nil
}

func (c Config) Defaults() domain.Defaults {
	return domain.Defaults{
		BaseDir:     c.BaseDir,
		Image:       c.Image,
		EpochLength: c.Cluster.EpochLength,
		Readiness: domain.ReadinessConfig{
			Timeout:      c.Readiness.Timeout,
			PollInterval: c.Readiness.PollInterval,
			GraceDelay:   c.Readiness.GraceDelay,
		},
		MinRuntimeVersion: c.Prerequisites.MinRuntimeVersion,
		MemoryPerNode:     c.Prerequisites.MemoryPerNodeMiB << 20,
		DiskPerNode:       c.Prerequisites.DiskPerNodeMiB << 20,
		PrerequisiteWait:  c.Prerequisites.Wait,
	}
}

// Apply feeds the configuration through the builder setters and stops at the
// first rejected value. Missing required fields are left for Build to report.
func (c Config) Apply(b *builder.Builder) error {
	steps := []func() error{
		func() error { return b.WithBaseDir(c.BaseDir) },
		func() error { return b.WithImage(c.Image) },
		func() error { return b.WithEpochLength(c.Cluster.EpochLength) },
		func() error {
			return b.WithReadiness(domain.ReadinessConfig{
				Timeout:      c.Readiness.Timeout,
				PollInterval: c.Readiness.PollInterval,
				GraceDelay:   c.Readiness.GraceDelay,
			})
		},
	}
	if c.Cluster.ChainID != 0 {
		steps = append(steps, func() error { return b.WithChainID(c.Cluster.ChainID) })
	}
	if c.Cluster.BlockPeriod != 0 {
		steps = append(steps, func() error { return b.WithBlockPeriod(c.Cluster.BlockPeriod) })
	}
	if c.Cluster.Name != "" {
		steps = append(steps, func() error { return b.WithName(c.Cluster.Name) })
	}
	if c.Cluster.Subnet != "" {
		steps = append(steps, func() error { return b.WithSubnet(c.Cluster.Subnet) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	for _, spec := range c.Nodes {
		if err := b.WithNode(spec); err != nil {
			return fmt.Errorf("node %q: %w", spec.Name, err)
		}
	}
	return nil
}

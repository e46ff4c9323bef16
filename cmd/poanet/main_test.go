package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/poanet"
	"github.com/eleven-am/poanet/internal/adapters/ethkeys"
	"github.com/eleven-am/poanet/internal/adapters/events"
	"github.com/eleven-am/poanet/internal/adapters/filestore"
	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/network"
	"github.com/eleven-am/poanet/internal/ports"
	"github.com/eleven-am/poanet/internal/testutil/fakes"
)

const clusterTOML = `
[cluster]
name = "devnet"
chain_id = 1337
block_period = 5
subnet = "172.20.0.0/16"

[readiness]
timeout = "1s"
poll_interval = "5ms"
grace_delay = "1ms"

[[node]]
name = "v1"
ip = "172.20.0.10"
validator = true
rpc = true
rpc_port = 18545
`

type allowAll struct{}

func (allowAll) Check(context.Context, ports.PrerequisiteRequest) error { return nil }

type cliHarness struct {
	runtime *fakes.Runtime
	chain   *fakes.Chain
	baseDir string
	config  string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "cluster.toml")
	require.NoError(t, os.WriteFile(config, []byte(clusterTOML), 0o644))
	return &cliHarness{
		runtime: fakes.NewRuntime(),
		chain:   fakes.NewChain(),
		baseDir: filepath.Join(dir, "state"),
		config:  config,
	}
}

func (h *cliHarness) open(logger hclog.Logger) (*poanet.Session, error) {
	bus := events.NewBus(logger)
	return poanet.NewSession(poanet.Deps{
		Deps: network.Deps{
			Runtime: h.runtime,
			Files:   filestore.New(logger),
			Keys:    ethkeys.New(),
			Dialer:  h.chain,
			Logger:  logger,
		},
		Prerequisites: allowAll{},
	}, bus), nil
}

func (h *cliHarness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(&environment{open: h.open})
	app.Writer = &out
	full := append([]string{"poanet", "--base-dir", h.baseDir, "--log.level", "error"}, args...)
	err := app.Run(full)
	return out.String(), err
}

func TestCLI_Lifecycle(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run(t, "up", "--config", h.config)
	require.NoError(t, err)
	assert.Contains(t, out, "cluster:      devnet")
	assert.Contains(t, out, "http://127.0.0.1:18545")
	assert.True(t, h.runtime.HasNetwork("devnet"))

	out, err = h.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "devnet")
	assert.Contains(t, out, "1337")

	out, err = h.run(t, "add-node", "--cluster", "devnet", "--name", "r1", "--ip", "172.20.0.20", "--rpc-port", "18546")
	require.NoError(t, err)
	assert.Contains(t, out, "added r1")

	out, err = h.run(t, "status", "--cluster", "devnet")
	require.NoError(t, err)
	assert.Contains(t, out, "r1")
	assert.Contains(t, out, "running")

	r1, ok := h.runtime.ContainerByName("devnet-r1")
	require.True(t, ok)
	h.runtime.Logs[r1.ID] = "block imported\n"
	out, err = h.run(t, "logs", "--cluster", "devnet", "--node", "r1")
	require.NoError(t, err)
	assert.Equal(t, "block imported\n", out)

	_, err = h.run(t, "remove-node", "--cluster", "devnet", "--name", "r1")
	require.NoError(t, err)
	_, ok = h.runtime.ContainerByName("devnet-r1")
	assert.False(t, ok)

	out, err = h.run(t, "down", "--cluster", "devnet", "--purge")
	require.NoError(t, err)
	assert.Contains(t, out, "cluster devnet stopped")
	assert.False(t, h.runtime.HasNetwork("devnet"))
	assert.Empty(t, h.runtime.Containers())
	_, err = os.Stat(filepath.Join(h.baseDir, "devnet"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, h.chain.OpenClients())
}

func TestCLI_Errors(t *testing.T) {
	h := newCLIHarness(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing cluster flag", []string{"status"}, "--cluster is required"},
		{"unknown cluster", []string{"down", "--cluster", "ghost"}, `cluster "ghost" not found`},
		{"missing config", []string{"up", "--config", filepath.Join(h.baseDir, "absent.toml")}, "load config"},
		{"missing node name", []string{"add-node", "--cluster", "devnet", "--ip", "172.20.0.30"}, "--name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCLI_RejectsUnknownLogLevel(t *testing.T) {
	h := newCLIHarness(t)
	var out bytes.Buffer
	app := newApp(&environment{open: h.open})
	app.Writer = &out
	err := app.Run([]string{"poanet", "--log.level", "loud", "list"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}

func TestPrintClusters_Empty(t *testing.T) {
	var out bytes.Buffer
	printClusters(&out, nil)
	assert.Equal(t, "no clusters\n", out.String())
}

func TestPrintInfo(t *testing.T) {
	var out bytes.Buffer
	printInfo(&out, poanet.Info{
		Cluster: "devnet",
		ChainID: 1337,
		Status:  domain.NetworkRunning,
		Nodes: []poanet.NodeInfo{
			{Name: "v1", IP: "172.20.0.10", Address: "0xabc", Validator: true, Status: domain.NodeRunning},
		},
	})
	text := out.String()
	assert.Contains(t, text, "chain id:     1337")
	assert.Contains(t, text, "validator")
	assert.NotContains(t, text, "latest block")
	assert.Contains(t, text, fmt.Sprintf("%s  ", "v1"))
}

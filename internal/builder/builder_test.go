package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/poanet/internal/adapters/ethkeys"
	"github.com/eleven-am/poanet/internal/adapters/filestore"
	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/network"
	"github.com/eleven-am/poanet/internal/ports"
	"github.com/eleven-am/poanet/internal/testutil/fakes"
)

type allowAll struct{}

func (allowAll) Check(context.Context, ports.PrerequisiteRequest) error { return nil }

func testDeps(t *testing.T, rt *fakes.Runtime) Deps {
	t.Helper()
	return Deps{
		Deps: network.Deps{
			Runtime: rt,
			Files:   filestore.New(nil),
			Keys:    ethkeys.New(),
			Dialer:  fakes.NewChain(),
		},
		Prerequisites: allowAll{},
	}
}

func newTestBuilder(t *testing.T, rt *fakes.Runtime, baseDir string) *Builder {
	t.Helper()
	b := New(testDeps(t, rt))
	require.NoError(t, b.WithBaseDir(baseDir))
	require.NoError(t, b.WithReadiness(domain.ReadinessConfig{Timeout: time.Second, PollInterval: 5 * time.Millisecond}))
	return b
}

func minimal(t *testing.T, b *Builder, chainID uint64) {
	t.Helper()
	require.NoError(t, b.WithChainID(chainID))
	require.NoError(t, b.WithBlockPeriod(5))
	require.NoError(t, b.WithSubnet("172.20.0.0/16"))
	require.NoError(t, b.WithNode(domain.NodeSpec{Name: "v1", IP: "172.20.0.10", Validator: true}))
}

func TestSetters_FailFast(t *testing.T) {
	b := New(testDeps(t, fakes.NewRuntime()))

	assert.True(t, domain.IsValidation(b.WithChainID(0)))
	assert.True(t, domain.IsValidation(b.WithBlockPeriod(0)))
	assert.True(t, domain.IsValidation(b.WithEpochLength(0)))
	assert.True(t, domain.IsValidation(b.WithName("-devnet")))
	assert.True(t, domain.IsValidation(b.WithBaseDir("")))
	assert.True(t, domain.IsValidation(b.WithImage("")))
	assert.True(t, domain.IsValidation(b.WithReadiness(domain.ReadinessConfig{Timeout: time.Second, PollInterval: 2 * time.Second})))

	err := b.WithSubnet("8.8.8.0/24")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a private range")
	assert.True(t, domain.IsValidation(b.WithSubnet("10.0.0.0/31")))
}

func TestBuild_SubnetScenario(t *testing.T) {
	tests := []struct {
		ip     string
		reason string
	}{
		{"172.20.0.0", "network address"},
		{"172.20.0.255", "broadcast address"},
		{"172.21.0.10", "outside subnet"},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			b := newTestBuilder(t, fakes.NewRuntime(), t.TempDir())
			require.NoError(t, b.WithChainID(1337))
			require.NoError(t, b.WithBlockPeriod(5))
			require.NoError(t, b.WithSubnet("172.20.0.0/24"))
			require.NoError(t, b.WithNode(domain.NodeSpec{Name: "n1", IP: tt.ip, Validator: true}))

			_, err := b.Build(context.Background())
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestWithNode_RejectsMalformedIP(t *testing.T) {
	b := New(testDeps(t, fakes.NewRuntime()))
	for _, ip := range []string{"172.20.0", "172.20.0.010", " 172.20.0.10"} {
		assert.True(t, domain.IsValidation(b.WithNode(domain.NodeSpec{Name: "n1", IP: ip})), ip)
	}
}

func TestWithNode_Duplicates(t *testing.T) {
	b := New(testDeps(t, fakes.NewRuntime()))
	require.NoError(t, b.WithNode(domain.NodeSpec{Name: "v1", IP: "172.20.0.10", Validator: true, RPC: true, RPCPort: 18545}))

	tests := []struct {
		name string
		spec domain.NodeSpec
		kind domain.ConflictKind
	}{
		{"name", domain.NodeSpec{Name: "v1", IP: "172.20.0.11"}, domain.ConflictDuplicateName},
		{"ip", domain.NodeSpec{Name: "v2", IP: "172.20.0.10"}, domain.ConflictDuplicateIP},
		{"port", domain.NodeSpec{Name: "v2", IP: "172.20.0.11", RPC: true, RPCPort: 18545}, domain.ConflictDuplicatePort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := domain.ConflictKindOf(b.WithNode(tt.spec))
			require.True(t, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestWithNode_PortWarnings(t *testing.T) {
	b := New(testDeps(t, fakes.NewRuntime()))
	require.NoError(t, b.WithNode(domain.NodeSpec{Name: "r1", IP: "172.20.0.10", RPC: true, RPCPort: 80}))
	assert.Len(t, b.Warnings(), 2)
}

func TestBuild_RequiresFields(t *testing.T) {
	rt := fakes.NewRuntime()
	b := newTestBuilder(t, rt, t.TempDir())

	_, err := b.Build(context.Background())
	assert.Contains(t, err.Error(), "chain id")

	require.NoError(t, b.WithChainID(1337))
	_, err = b.Build(context.Background())
	assert.Contains(t, err.Error(), "block period")

	require.NoError(t, b.WithBlockPeriod(5))
	_, err = b.Build(context.Background())
	assert.Contains(t, err.Error(), "nodes")
	assert.True(t, domain.IsValidation(err))
}

func TestBuild_RequiresValidator(t *testing.T) {
	b := newTestBuilder(t, fakes.NewRuntime(), t.TempDir())
	require.NoError(t, b.WithChainID(1337))
	require.NoError(t, b.WithBlockPeriod(5))
	require.NoError(t, b.WithSubnet("172.20.0.0/16"))
	require.NoError(t, b.WithNode(domain.NodeSpec{Name: "r1", IP: "172.20.0.10"}))

	_, err := b.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validator")
}

func TestBuild_ChainIDConflict(t *testing.T) {
	base := t.TempDir()
	files := filestore.New(nil)
	require.NoError(t, network.SaveMetadata(files, network.Layout{BaseDir: base, Cluster: "alpha"},
		domain.ClusterMetadata{ClusterName: "alpha", ChainID: 1337}))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "broken"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "broken", domain.MetadataFile), []byte("not json"), 0o644))

	b := newTestBuilder(t, fakes.NewRuntime(), base)
	minimal(t, b, 1337)
	require.NoError(t, b.WithName("beta"))

	_, err := b.Build(context.Background())
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.ConflictChainID, conflict.Kind)
	assert.Equal(t, "alpha", conflict.With)

	accepted := newTestBuilder(t, fakes.NewRuntime(), base)
	minimal(t, accepted, 2024)
	orch, err := accepted.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2024), orch.Config().ChainID)
}

func TestBuild_OwnClusterIsNotAConflict(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, network.SaveMetadata(filestore.New(nil), network.Layout{BaseDir: base, Cluster: "devnet"},
		domain.ClusterMetadata{ClusterName: "devnet", ChainID: 1337}))

	b := newTestBuilder(t, fakes.NewRuntime(), base)
	minimal(t, b, 1337)
	require.NoError(t, b.WithName("devnet"))

	_, err := b.Build(context.Background())
	assert.NoError(t, err)
}

func TestBuild_AdoptsExistingNetworkSubnet(t *testing.T) {
	rt := fakes.NewRuntime()
	rt.AddNetwork("shared", "172.30.0.0/16", "172.30.0.1")
	base := t.TempDir()

	first := newTestBuilder(t, rt, base)
	require.NoError(t, first.WithName("shared"))
	require.NoError(t, first.WithChainID(100))
	require.NoError(t, first.WithBlockPeriod(2))
	require.NoError(t, first.WithNode(domain.NodeSpec{Name: "v1", IP: "172.30.0.10", Validator: true}))
	require.NoError(t, first.WithSubnet("10.1.0.0/16"))

	second := newTestBuilder(t, rt, base)
	require.NoError(t, second.WithName("shared"))
	require.NoError(t, second.WithChainID(101))
	require.NoError(t, second.WithBlockPeriod(2))
	require.NoError(t, second.WithSubnet("192.168.50.0/24"))
	require.NoError(t, second.WithNode(domain.NodeSpec{Name: "v1", IP: "172.30.0.11", Validator: true}))

	a, err := first.Build(context.Background())
	require.NoError(t, err)
	b, err := second.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "172.30.0.0/16", a.Config().Subnet)
	assert.Equal(t, a.Config().Subnet, b.Config().Subnet)
	assert.True(t, a.Config().Adopted)
	assert.True(t, b.Config().Adopted)
}

func TestBuild_CreateRequiresSubnet(t *testing.T) {
	b := newTestBuilder(t, fakes.NewRuntime(), t.TempDir())
	require.NoError(t, b.WithChainID(1337))
	require.NoError(t, b.WithBlockPeriod(5))
	require.NoError(t, b.WithNode(domain.NodeSpec{Name: "v1", IP: "172.20.0.10", Validator: true}))

	_, err := b.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subnet required to create a new network")
}

func TestBuild_SubnetConflict(t *testing.T) {
	rt := fakes.NewRuntime()
	rt.AddNetwork("bridge", "172.20.0.0/16", "172.20.0.1")

	b := newTestBuilder(t, rt, t.TempDir())
	require.NoError(t, b.WithChainID(1337))
	require.NoError(t, b.WithBlockPeriod(5))
	require.NoError(t, b.WithSubnet("172.20.128.0/24"))
	require.NoError(t, b.WithNode(domain.NodeSpec{Name: "v1", IP: "172.20.128.10", Validator: true}))

	_, err := b.Build(context.Background())
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.ConflictSubnet, conflict.Kind)
	assert.Equal(t, "bridge", conflict.With)
}

func TestBuild_GeneratedName(t *testing.T) {
	b := newTestBuilder(t, fakes.NewRuntime(), t.TempDir())
	b.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	minimal(t, b, 1337)

	orch, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "poanet-20240102030405", orch.Config().Name)
	assert.True(t, orch.Config().NameGenerated)
	assert.False(t, orch.Config().Adopted)
	assert.True(t, filepath.IsAbs(orch.Config().BaseDir))
}

func TestBuild_PrerequisiteFailureIsFatal(t *testing.T) {
	rt := fakes.NewRuntime()
	rt.VersionStr = "19.03.1"
	deps := testDeps(t, rt)
	deps.Prerequisites = nil
	b := New(deps)
	require.NoError(t, b.WithBaseDir(t.TempDir()))
	minimal(t, b, 1337)

	_, err := b.Build(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsPrerequisite(err))
	assert.Contains(t, err.Error(), "19.03.1")
}

func TestBuild_AutoStart(t *testing.T) {
	rt := fakes.NewRuntime()
	b := newTestBuilder(t, rt, t.TempDir())
	minimal(t, b, 1337)
	require.NoError(t, b.WithName("devnet"))
	b.WithAutoStart(true)

	orch, err := b.Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = orch.Teardown(context.Background(), false) })

	assert.Equal(t, domain.NetworkRunning, orch.Status())
	assert.True(t, rt.HasNetwork("devnet"))
}

package network

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/poanet/internal/adapters/ethkeys"
	"github.com/eleven-am/poanet/internal/adapters/filestore"
	"github.com/eleven-am/poanet/internal/domain"
)

func TestLayoutPaths(t *testing.T) {
	l := Layout{BaseDir: "/var/poanet", Cluster: "devnet"}
	assert.Equal(t, "/var/poanet/devnet", l.ClusterDir())
	assert.Equal(t, "/var/poanet/devnet/genesis.json", l.GenesisPath())
	assert.Equal(t, "/var/poanet/devnet/network.json", l.MetadataPath())
	assert.Equal(t, "/var/poanet/devnet/nodes/v1", l.NodeDir("v1"))
}

func TestIdentityRoundTrip(t *testing.T) {
	files := filestore.New(nil)
	dir := filepath.Join(t.TempDir(), "nodes", "v1")

	id, err := ethkeys.New().Generate()
	require.NoError(t, err)
	require.NoError(t, SaveIdentity(files, dir, id))

	raw, err := os.ReadFile(filepath.Join(dir, domain.AddressFile))
	require.NoError(t, err)
	assert.Equal(t, domain.StripHexPrefix(id.Address), string(raw))

	raw, err = os.ReadFile(filepath.Join(dir, domain.KeyFile))
	require.NoError(t, err)
	assert.Equal(t, domain.StripHexPrefix(id.PrivateKey), string(raw))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dir, domain.KeyFile))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	loaded, ok, err := LoadIdentity(files, dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, loaded)
}

func TestLoadIdentity_Missing(t *testing.T) {
	_, ok, err := LoadIdentity(filestore.New(nil), t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProvisionIdentity(t *testing.T) {
	files := filestore.New(nil)
	keys := ethkeys.New()
	dir := filepath.Join(t.TempDir(), "v1")
	spec := domain.NodeSpec{Name: "v1"}

	first, err := provisionIdentity(files, keys, dir, spec, true)
	require.NoError(t, err)
	reused, err := provisionIdentity(files, keys, dir, spec, true)
	require.NoError(t, err)
	assert.Equal(t, first, reused)

	fresh, err := provisionIdentity(files, keys, dir, spec, false)
	require.NoError(t, err)
	assert.NotEqual(t, first.Address, fresh.Address)

	seeded := domain.NodeSpec{Name: "s1", Seed: "alpha"}
	a, err := provisionIdentity(files, keys, filepath.Join(t.TempDir(), "s1"), seeded, false)
	require.NoError(t, err)
	b, err := keys.FromSeed("alpha")
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestProvisionIdentity_TamperedAddress(t *testing.T) {
	files := filestore.New(nil)
	dir := filepath.Join(t.TempDir(), "v1")
	id, err := ethkeys.New().Generate()
	require.NoError(t, err)
	id.Address = "0x0000000000000000000000000000000000000001"
	require.NoError(t, SaveIdentity(files, dir, id))

	_, err = provisionIdentity(files, ethkeys.New(), dir, domain.NodeSpec{Name: "v1"}, true)
	assert.True(t, domain.IsValidation(err))
}

func TestListClusters_SkipsCorrupted(t *testing.T) {
	base := t.TempDir()
	files := filestore.New(nil)

	require.NoError(t, SaveMetadata(files, Layout{BaseDir: base, Cluster: "beta"}, domain.ClusterMetadata{ClusterName: "beta", ChainID: 2}))
	require.NoError(t, SaveMetadata(files, Layout{BaseDir: base, Cluster: "alpha"}, domain.ClusterMetadata{ClusterName: "alpha", ChainID: 1}))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "broken"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "broken", domain.MetadataFile), []byte("{"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "empty"), 0o755))

	clusters, err := ListClusters(files, base, nil)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, "alpha", clusters[0].ClusterName)
	assert.Equal(t, "beta", clusters[1].ClusterName)

	missing, err := ListClusters(files, filepath.Join(base, "nope"), nil)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestCheckChainID(t *testing.T) {
	base := t.TempDir()
	files := filestore.New(nil)
	require.NoError(t, SaveMetadata(files, Layout{BaseDir: base, Cluster: "alpha"}, domain.ClusterMetadata{ClusterName: "alpha", ChainID: 1337}))

	err := CheckChainID(files, base, 1337, "beta", nil)
	kind, ok := domain.ConflictKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ConflictChainID, kind)

	assert.NoError(t, CheckChainID(files, base, 1337, "alpha", nil))
	assert.NoError(t, CheckChainID(files, base, 2024, "beta", nil))
}

func TestLoadMetadata_NotFound(t *testing.T) {
	_, err := LoadMetadata(filestore.New(nil), t.TempDir(), "ghost")
	assert.True(t, domain.IsNotFound(err))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Remove("missing"))
	r.Clear()
	assert.Empty(t, r.Nodes())
}

package network

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/ports"
)

// Layout resolves the on-disk paths of one cluster:
//
//	<base>/<cluster>/genesis.json
//	<base>/<cluster>/network.json
//	<base>/<cluster>/nodes/<node>/{key,key.pub,address}
type Layout struct {
	BaseDir string
	Cluster string
}

func (l Layout) ClusterDir() string {
	return filepath.Join(l.BaseDir, l.Cluster)
}

func (l Layout) GenesisPath() string {
	return filepath.Join(l.ClusterDir(), domain.GenesisFile)
}

func (l Layout) MetadataPath() string {
	return filepath.Join(l.ClusterDir(), domain.MetadataFile)
}

func (l Layout) NodesDir() string {
	return filepath.Join(l.ClusterDir(), domain.NodesDir)
}

func (l Layout) NodeDir(node string) string {
	return filepath.Join(l.NodesDir(), node)
}

// Materialize creates the cluster and nodes directories.
func (l Layout) Materialize(files ports.FileStore) error {
	if err := files.EnsureDir(l.ClusterDir()); err != nil {
		return err
	}
	return files.EnsureDir(l.NodesDir())
}

// SaveIdentity writes the identity files with the 0x prefix stripped.
func SaveIdentity(files ports.FileStore, dir string, id domain.NodeIdentity) error {
	if err := files.EnsureDir(dir); err != nil {
		return err
	}
	if err := files.WriteSecret(filepath.Join(dir, domain.KeyFile), domain.StripHexPrefix(id.PrivateKey)); err != nil {
		return err
	}
	entries := []struct {
		name  string
		value string
	}{
		{domain.PublicKeyFile, id.PublicKey},
		{domain.AddressFile, id.Address},
	}
	for _, e := range entries {
		if err := files.WriteText(filepath.Join(dir, e.name), domain.StripHexPrefix(e.value)); err != nil {
			return err
		}
	}
	return nil
}

// LoadIdentity reads the identity files back, re-adding the 0x prefix. The
// boolean is false when no key file exists in dir.
func LoadIdentity(files ports.FileStore, dir string) (domain.NodeIdentity, bool, error) {
	exists, err := files.Exists(filepath.Join(dir, domain.KeyFile))
	if err != nil || !exists {
		return domain.NodeIdentity{}, false, err
	}

	read := func(name string) (string, error) {
		text, err := files.ReadText(filepath.Join(dir, name))
		if err != nil {
			return "", err
		}
		return domain.WithHexPrefix(strings.TrimSpace(text)), nil
	}

	var id domain.NodeIdentity
	if id.PrivateKey, err = read(domain.KeyFile); err != nil {
		return domain.NodeIdentity{}, false, err
	}
	if id.PublicKey, err = read(domain.PublicKeyFile); err != nil {
		return domain.NodeIdentity{}, false, err
	}
	if id.Address, err = read(domain.AddressFile); err != nil {
		return domain.NodeIdentity{}, false, err
	}
	return id, true, nil
}

// provisionIdentity returns the node's identity, generating and persisting it
// unless reuse is set and one is already on disk. Reused key material is
// checked against its derived address.
func provisionIdentity(files ports.FileStore, keys ports.KeyGenerator, dir string, spec domain.NodeSpec, reuse bool) (domain.NodeIdentity, error) {
	if reuse {
		existing, ok, err := LoadIdentity(files, dir)
		if err != nil {
			return domain.NodeIdentity{}, err
		}
		if ok {
			derived, err := keys.FromPrivateKey(existing.PrivateKey)
			if err != nil {
				return domain.NodeIdentity{}, fmt.Errorf("node %s: stored key: %w", spec.Name, err)
			}
			if !strings.EqualFold(derived.Address, existing.Address) {
				return domain.NodeIdentity{}, domain.NewValidationError("identity",
					fmt.Sprintf("stored address does not match key for node %s", spec.Name), existing.Address)
			}
			return existing, nil
		}
	}

	var (
		id  domain.NodeIdentity
		err error
	)
	if spec.Seed != "" {
		id, err = keys.FromSeed(spec.Seed)
	} else {
		id, err = keys.Generate()
	}
	if err != nil {
		return domain.NodeIdentity{}, err
	}
	if err := SaveIdentity(files, dir, id); err != nil {
		return domain.NodeIdentity{}, err
	}
	return id, nil
}

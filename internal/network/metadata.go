package network

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/ports"
)

func SaveMetadata(files ports.FileStore, layout Layout, meta domain.ClusterMetadata) error {
	return files.WriteJSON(layout.MetadataPath(), meta)
}

// LoadMetadata reads <base>/<cluster>/network.json.
func LoadMetadata(files ports.FileStore, baseDir, cluster string) (domain.ClusterMetadata, error) {
	layout := Layout{BaseDir: baseDir, Cluster: cluster}
	exists, err := files.Exists(layout.MetadataPath())
	if err != nil {
		return domain.ClusterMetadata{}, err
	}
	if !exists {
		return domain.ClusterMetadata{}, &domain.NotFoundError{Kind: domain.NotFoundCluster, Name: cluster}
	}
	var meta domain.ClusterMetadata
	if err := files.ReadJSON(layout.MetadataPath(), &meta); err != nil {
		return domain.ClusterMetadata{}, err
	}
	return meta, nil
}

// ListClusters returns the readable metadata of every cluster under baseDir,
// sorted by name. Directories without metadata are ignored and unreadable
// metadata is skipped with a warning.
func ListClusters(files ports.FileStore, baseDir string, logger hclog.Logger) ([]domain.ClusterMetadata, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	dirs, err := files.ListDirs(baseDir)
	if err != nil {
		return nil, err
	}

	var out []domain.ClusterMetadata
	for _, dir := range dirs {
		path := filepath.Join(baseDir, dir, domain.MetadataFile)
		exists, err := files.Exists(path)
		if err != nil {
			logger.Warn("skipping unreadable cluster metadata", "path", path, "error", err)
			continue
		}
		if !exists {
			continue
		}
		var meta domain.ClusterMetadata
		if err := files.ReadJSON(path, &meta); err != nil {
			logger.Warn("skipping corrupted cluster metadata", "path", path, "error", err)
			continue
		}
		if meta.ClusterName == "" {
			meta.ClusterName = dir
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClusterName < out[j].ClusterName })
	return out, nil
}

// CheckChainID fails with a chain id conflict if any persisted cluster other
// than exclude already uses chainID.
func CheckChainID(files ports.FileStore, baseDir string, chainID uint64, exclude string, logger hclog.Logger) error {
	clusters, err := ListClusters(files, baseDir, logger)
	if err != nil {
		return err
	}
	for _, meta := range clusters {
		if meta.ClusterName == exclude {
			continue
		}
		if meta.ChainID == chainID {
			return &domain.ConflictError{
				Kind:    domain.ConflictChainID,
				Subject: fmt.Sprint(chainID),
				With:    meta.ClusterName,
			}
		}
	}
	return nil
}

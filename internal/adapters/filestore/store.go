package filestore

import (
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/xjson"
)

const (
	dirPerm    = 0o755
	filePerm   = 0o644
	secretPerm = 0o600
)

// Store is a ports.FileStore on the local filesystem. Writes go to a
// temporary sibling, are synced, and renamed into place.
type Store struct {
	logger hclog.Logger
}

func New(logger hclog.Logger) *Store {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Store{logger: logger.Named("filestore")}
}

func (s *Store) EnsureDir(path string) error {
	if err := os.MkdirAll(path, dirPerm); err != nil {
		return domain.NewFileStoreError("ensure_dir", path, err)
	}
	return nil
}

func (s *Store) WriteText(path, content string) error {
	return s.writeAtomic("write_text", path, []byte(content), filePerm)
}

func (s *Store) WriteSecret(path, content string) error {
	return s.writeAtomic("write_secret", path, []byte(content), secretPerm)
}

func (s *Store) ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", domain.NewFileStoreError("read_text", path, err)
	}
	return string(data), nil
}

func (s *Store) WriteJSON(path string, v interface{}) error {
	data, err := xjson.MarshalIndent(v)
	if err != nil {
		return domain.NewFileStoreError("marshal_json", path, err)
	}
	return s.writeAtomic("write_json", path, append(data, '\n'), filePerm)
}

func (s *Store) ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.NewFileStoreError("read_json", path, err)
	}
	if err := xjson.Unmarshal(data, v); err != nil {
		return domain.NewFileStoreError("unmarshal_json", path, err)
	}
	return nil
}

func (s *Store) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, domain.NewFileStoreError("stat", path, err)
}

// ListDirs returns the names of the immediate subdirectories of path, sorted.
// A missing path yields an empty list.
func (s *Store) ListDirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.NewFileStoreError("list_dirs", path, err)
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (s *Store) Remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return domain.NewFileStoreError("remove", path, err)
	}
	s.logger.Debug("removed path", "path", path)
	return nil
}

func (s *Store) writeAtomic(op, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return domain.NewFileStoreError(op, path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return domain.NewFileStoreError(op, path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return domain.NewFileStoreError(op, path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return domain.NewFileStoreError(op, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return domain.NewFileStoreError(op, path, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return domain.NewFileStoreError(op, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return domain.NewFileStoreError(op, path, err)
	}

	s.logger.Trace("wrote file", "path", path, "bytes", len(data))
	return nil
}

// Package approvalstore persists instruction approvals on disk.
package approvalstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/testangel/testangel-sdk/domain/entities"
	"github.com/testangel/testangel-sdk/domain/ports"
)

// fileStoreConfig holds configuration for the FileStore.
type fileStoreConfig struct {
	path     string      // Path to the approvals file
	dirPerm  os.FileMode // Permission for created directories
	filePerm os.FileMode // Permission for the approvals file
}

// DefaultPath is ~/.testangel/approvals.yaml, or a relative path when the
// home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".testangel", "approvals.yaml")
}

func defaultFileStoreConfig() fileStoreConfig {
	return fileStoreConfig{
		path:     DefaultPath(),
		dirPerm:  0o755,
		filePerm: 0o600,
	}
}

// FileStoreOption configures a FileStore instance.
type FileStoreOption func(*fileStoreConfig)

// WithPath sets the path to the approvals file.
func WithPath(path string) FileStoreOption {
	return func(c *fileStoreConfig) {
		if path != "" {
			c.path = path
		}
	}
}

// WithFilePermissions sets the file permissions for the approvals file.
// Default is 0o600.
func WithFilePermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the permissions of created directories.
// Default is 0o755.
func WithDirPermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.dirPerm = perm
	}
}

// FileStore keeps approvals in a YAML file.
type FileStore struct {
	config fileStoreConfig
}

// NewFileStore creates a new FileStore with the given options.
func NewFileStore(opts ...FileStoreOption) ports.ApprovalStore {
	cfg := defaultFileStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FileStore{config: cfg}
}

// Load reads the approvals. A missing file is an empty set.
func (s *FileStore) Load() (*entities.ApprovalSet, error) {
	data, err := os.ReadFile(s.config.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &entities.ApprovalSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read approval store: %w", err)
	}

	var approvals entities.ApprovalSet
	if err := yaml.Unmarshal(data, &approvals); err != nil {
		return nil, fmt.Errorf("failed to parse approval store: %w", err)
	}
	return &approvals, nil
}

// Save writes the approvals, creating the directory if needed. The file
// is replaced atomically.
func (s *FileStore) Save(approvals *entities.ApprovalSet) error {
	data, err := yaml.Marshal(approvals)
	if err != nil {
		return fmt.Errorf("failed to marshal approvals: %w", err)
	}

	dir := filepath.Dir(s.config.path)
	if err := os.MkdirAll(dir, s.config.dirPerm); err != nil {
		return fmt.Errorf("failed to create approval store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".approvals-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write approval store: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write approval store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write approval store: %w", err)
	}
	if err := os.Chmod(tmp.Name(), s.config.filePerm); err != nil {
		return fmt.Errorf("failed to write approval store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.config.path); err != nil {
		return fmt.Errorf("failed to write approval store: %w", err)
	}
	return nil
}

// ConfigPath returns the path to the backing store.
func (s *FileStore) ConfigPath() string {
	return s.config.path
}

package asset

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Config selects the vault backing the asset store.
type Config struct {
	// Dir persists assets under this directory. Empty keeps them in
	// process memory.
	Dir string `yaml:"dir" json:"dir"`
}

// DefaultConfig keeps assets in memory.
func DefaultConfig() Config {
	return Config{}
}

// NewVault builds the configured vault.
func NewVault(cfg Config) (Vault, error) {
	if cfg.Dir == "" {
		return NewMemoryVault(), nil
	}
	return NewDiskVault(cfg.Dir)
}

// Vault is the flat blob store underneath the asset Store. Keys are
// slash-separated relative paths. Implementations must be safe for
// concurrent use.
type Vault interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// DeletePrefix removes every key under the given prefix and reports
	// how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}

// cleanKey normalises a vault key and rejects escapes from the root. The
// empty string names the root itself and is only meaningful as a prefix.
func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", nil
	}
	cleaned := path.Clean(key)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: path %q", ErrNotFound, key)
	}
	return cleaned, nil
}

// matchPrefix reports whether key sits under prefix, where the empty prefix
// matches everything.
func matchPrefix(key, prefix string) bool {
	if prefix == "" {
		return true
	}
	return key == prefix || strings.HasPrefix(key, prefix+"/")
}

// MemoryVault keeps blobs in process memory. It backs tests and single-node
// setups that do not need assets to survive a restart.
type MemoryVault struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryVault returns an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{blobs: make(map[string][]byte)}
}

func (v *MemoryVault) Put(_ context.Context, key string, data []byte) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrNotFound)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (v *MemoryVault) Get(_ context.Context, key string) ([]byte, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	data, ok := v.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

func (v *MemoryVault) DeletePrefix(_ context.Context, prefix string) (int, error) {
	prefix, err := cleanKey(prefix)
	if err != nil {
		return 0, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	removed := 0
	for key := range v.blobs {
		if matchPrefix(key, prefix) {
			delete(v.blobs, key)
			removed++
		}
	}
	return removed, nil
}

func (v *MemoryVault) List(_ context.Context, prefix string) ([]string, error) {
	prefix, err := cleanKey(prefix)
	if err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	var keys []string
	for key := range v.blobs {
		if matchPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (v *MemoryVault) Count(_ context.Context) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.blobs), nil
}

func (v *MemoryVault) Reset(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.blobs = make(map[string][]byte)
	return nil
}

// DiskVault stores blobs as files under a root directory.
type DiskVault struct {
	root string
}

// NewDiskVault creates the root directory if needed and returns a vault
// over it.
func NewDiskVault(root string) (*DiskVault, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("asset: create vault root: %w", err)
	}
	return &DiskVault{root: root}, nil
}

func (v *DiskVault) path(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(v.root, filepath.FromSlash(key)), nil
}

func (v *DiskVault) Put(_ context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrNotFound)
	}
	full, err := v.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("asset: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("asset: %w", err)
	}
	return nil
}

func (v *DiskVault) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrNotFound)
	}
	full, err := v.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("asset: %w", err)
	}
	return data, nil
}

func (v *DiskVault) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := v.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	full, err := v.path(prefix)
	if err != nil {
		return 0, err
	}
	if err := os.RemoveAll(full); err != nil {
		return 0, fmt.Errorf("asset: %w", err)
	}
	return len(keys), nil
}

func (v *DiskVault) List(_ context.Context, prefix string) ([]string, error) {
	full, err := v.path(prefix)
	if err != nil {
		return nil, err
	}
	var keys []string
	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(v.root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	}
	if err := filepath.WalkDir(full, walk); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("asset: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (v *DiskVault) Count(ctx context.Context) (int, error) {
	keys, err := v.List(ctx, "")
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (v *DiskVault) Reset(_ context.Context) error {
	entries, err := os.ReadDir(v.root)
	if err != nil {
		return fmt.Errorf("asset: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(v.root, entry.Name())); err != nil {
			return fmt.Errorf("asset: %w", err)
		}
	}
	return nil
}

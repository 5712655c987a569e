package asset

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// URL prefixes under which the gateway serves stored files.
const (
	TemplatePrefix = "/templates"
	InstancePrefix = "/instances"
)

// TemplateURL returns the base URL of a template's assets.
func TemplateURL(templateID string) string {
	return TemplatePrefix + "/" + templateID
}

// InstanceURL returns the base URL of an instance's assets.
func InstanceURL(objID uint64) string {
	return InstancePrefix + "/" + strconv.FormatUint(objID, 10)
}

// metaFile is the per-template and per-instance index document. Checksums
// are xxhash64 digests over a fragment's files in key order, used for cache
// validation.
type metaFile struct {
	Fragments map[string]FragType `json:"fragments"`
	Checksums map[string]string   `json:"checksums"`
}

// Store persists fragment geometry for templates and spawned instances on
// top of a Vault. Templates are immutable once added; instances start as a
// copy of their template and change through UpdateFragments.
type Store struct {
	vault Vault
}

// NewStore wraps a vault in an asset store.
func NewStore(vault Vault) *Store {
	return &Store{vault: vault}
}

func templateDir(templateID string) string { return "templates/" + templateID }

func instanceDir(objID uint64) string {
	return "instances/" + strconv.FormatUint(objID, 10)
}

// fragmentFiles renders a fragment's payload into its file set, keyed by
// path relative to the fragment directory.
func fragmentFiles(name string, f Fragment) (map[string][]byte, error) {
	files := make(map[string][]byte)
	switch f.Type {
	case Raw:
		if f.Raw == nil {
			return nil, fmt.Errorf("%w: fragment %q has no raw payload", ErrInvalidFragment, name)
		}
		data, err := json.Marshal(f.Raw)
		if err != nil {
			return nil, err
		}
		files["model.json"] = data
	case Dae:
		if f.Dae == nil {
			return nil, fmt.Errorf("%w: fragment %q has no collada payload", ErrInvalidFragment, name)
		}
		files[name] = f.Dae.Dae
		for texName, tex := range f.Dae.Textures {
			if texName == "" || texName == name {
				return nil, fmt.Errorf("%w: fragment %q texture name %q", ErrInvalidFragment, name, texName)
			}
			files[texName] = tex
		}
	default:
		return nil, fmt.Errorf("%w: fragment %q type %q", ErrInvalidFragment, name, f.Type)
	}
	return files, nil
}

// checksum digests a fragment's files in sorted path order.
func checksum(files map[string][]byte) string {
	digest := xxhash.New()
	for _, p := range sortedPaths(files) {
		_, _ = digest.WriteString(p)
		_, _ = digest.Write(files[p])
	}
	return strconv.FormatUint(digest.Sum64(), 16)
}

func sortedPaths(files map[string][]byte) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (s *Store) readMeta(ctx context.Context, dir string) (metaFile, error) {
	data, err := s.vault.Get(ctx, dir+"/meta.json")
	if err != nil {
		return metaFile{}, err
	}
	var meta metaFile
	if err := json.Unmarshal(data, &meta); err != nil {
		return metaFile{}, fmt.Errorf("asset: corrupt meta in %s: %w", dir, err)
	}
	return meta, nil
}

func (s *Store) writeMeta(ctx context.Context, dir string, meta metaFile) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.vault.Put(ctx, dir+"/meta.json", data)
}

// writeFragments persists the payloads of frags under dir and updates meta
// in place.
func (s *Store) writeFragments(ctx context.Context, dir string, frags map[string]Fragment, meta *metaFile) error {
	if meta.Fragments == nil {
		meta.Fragments = make(map[string]FragType)
	}
	if meta.Checksums == nil {
		meta.Checksums = make(map[string]string)
	}
	for name, f := range frags {
		files, err := fragmentFiles(name, f)
		if err != nil {
			return err
		}
		if _, err := s.vault.DeletePrefix(ctx, dir+"/"+name); err != nil {
			return err
		}
		for p, data := range files {
			if err := s.vault.Put(ctx, dir+"/"+name+"/"+p, data); err != nil {
				return err
			}
		}
		meta.Fragments[name] = f.Type
		meta.Checksums[name] = checksum(files)
	}
	return nil
}

// AddTemplate stores the geometry of a new template and returns its asset
// URL. Adding an existing template fails with ErrExists.
func (s *Store) AddTemplate(ctx context.Context, templateID string, frags map[string]Fragment) (string, error) {
	if templateID == "" {
		return "", fmt.Errorf("%w: empty template id", ErrInvalidFragment)
	}
	dir := templateDir(templateID)
	if _, err := s.readMeta(ctx, dir); err == nil {
		return "", fmt.Errorf("%w: template %q", ErrExists, templateID)
	}
	if err := ValidateSet(frags); err != nil {
		return "", err
	}
	var meta metaFile
	if err := s.writeFragments(ctx, dir, frags, &meta); err != nil {
		return "", err
	}
	if err := s.writeMeta(ctx, dir, meta); err != nil {
		return "", err
	}
	return TemplateURL(templateID), nil
}

// RemoveTemplate deletes a template's files. Spawned instances keep their
// copies.
func (s *Store) RemoveTemplate(ctx context.Context, templateID string) error {
	removed, err := s.vault.DeletePrefix(ctx, templateDir(templateID))
	if err != nil {
		return err
	}
	if removed == 0 {
		return fmt.Errorf("%w: template %q", ErrNotFound, templateID)
	}
	return nil
}

// SpawnInstance copies a template's files into a fresh instance directory
// and returns the instance asset URL.
func (s *Store) SpawnInstance(ctx context.Context, templateID string, objID uint64) (string, error) {
	srcDir := templateDir(templateID)
	if _, err := s.readMeta(ctx, srcDir); err != nil {
		return "", fmt.Errorf("%w: template %q", ErrNotFound, templateID)
	}
	dstDir := instanceDir(objID)
	if _, err := s.readMeta(ctx, dstDir); err == nil {
		return "", fmt.Errorf("%w: instance %d", ErrExists, objID)
	}
	keys, err := s.vault.List(ctx, srcDir)
	if err != nil {
		return "", err
	}
	for _, key := range keys {
		data, err := s.vault.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if err := s.vault.Put(ctx, dstDir+key[len(srcDir):], data); err != nil {
			return "", err
		}
	}
	return InstanceURL(objID), nil
}

// RemoveInstance deletes an instance's files.
func (s *Store) RemoveInstance(ctx context.Context, objID uint64) error {
	removed, err := s.vault.DeletePrefix(ctx, instanceDir(objID))
	if err != nil {
		return err
	}
	if removed == 0 {
		return fmt.Errorf("%w: instance %d", ErrNotFound, objID)
	}
	return nil
}

// UpdateFragments replaces the geometry of the named fragments of an
// instance. Fragments of type None are removed. Callers pass only fragments
// whose payload actually changed; metadata-only edits never reach the store.
func (s *Store) UpdateFragments(ctx context.Context, objID uint64, frags map[string]Fragment) error {
	dir := instanceDir(objID)
	meta, err := s.readMeta(ctx, dir)
	if err != nil {
		return fmt.Errorf("%w: instance %d", ErrNotFound, objID)
	}
	updates := make(map[string]Fragment, len(frags))
	for name, f := range frags {
		if f.Type == None {
			if _, err := s.vault.DeletePrefix(ctx, dir+"/"+name); err != nil {
				return err
			}
			delete(meta.Fragments, name)
			delete(meta.Checksums, name)
			continue
		}
		updates[name] = f
	}
	if err := s.writeFragments(ctx, dir, updates, &meta); err != nil {
		return err
	}
	return s.writeMeta(ctx, dir, meta)
}

// File returns one stored file by its URL path, for example
// "/instances/4/left_engine/model.json".
func (s *Store) File(ctx context.Context, urlPath string) ([]byte, error) {
	return s.vault.Get(ctx, strings.TrimPrefix(urlPath, "/"))
}

// Checksums returns the fragment digests of an instance.
func (s *Store) Checksums(ctx context.Context, objID uint64) (map[string]string, error) {
	meta, err := s.readMeta(ctx, instanceDir(objID))
	if err != nil {
		return nil, fmt.Errorf("%w: instance %d", ErrNotFound, objID)
	}
	return meta.Checksums, nil
}

// FileCount reports the total number of stored files.
func (s *Store) FileCount(ctx context.Context) (int, error) {
	return s.vault.Count(ctx)
}

// Reset drops all templates and instances.
func (s *Store) Reset(ctx context.Context) error {
	return s.vault.Reset(ctx)
}

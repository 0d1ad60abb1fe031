package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"shopify-uploader/internal/domain/model"
	"shopify-uploader/internal/logging"
)

// FileStore keeps each document as a JSON file in one directory. Saves write
// a temp file next to the target and rename it into place.
type FileStore struct {
	dir    string
	logger logging.LoggerService
}

func NewFileStore(dir string, logger logging.LoggerService) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FileStore) LoadCheckpoint(ctx context.Context) (*Checkpoint, error) {
	var cp Checkpoint
	found, err := s.load(CheckpointName, &cp)
	if err != nil || !found {
		return nil, err
	}
	if cp.Results == nil {
		cp.Results = []model.ItemResult{}
	}
	return &cp, nil
}

func (s *FileStore) SaveCheckpoint(ctx context.Context, cp *Checkpoint) error {
	return s.save(CheckpointName, cp)
}

func (s *FileStore) DeleteCheckpoint(ctx context.Context) error {
	return s.remove(CheckpointName)
}

func (s *FileStore) LoadRegistry(ctx context.Context) (*Registry, error) {
	r := NewRegistry()
	found, err := s.load(RegistryName, r)
	if err != nil {
		return nil, err
	}
	if !found {
		return NewRegistry(), nil
	}
	r.ensure()
	return r, nil
}

func (s *FileStore) SaveRegistry(ctx context.Context, r *Registry) error {
	return s.save(RegistryName, r)
}

func (s *FileStore) LoadRestore(ctx context.Context) (*RestoreSnapshot, error) {
	snap := NewRestoreSnapshot()
	found, err := s.load(RestoreName, snap)
	if err != nil {
		return nil, err
	}
	if !found {
		return NewRestoreSnapshot(), nil
	}
	if snap.Products == nil {
		snap.Products = map[string]RestoreEntry{}
	}
	return snap, nil
}

func (s *FileStore) SaveRestore(ctx context.Context, snap *RestoreSnapshot) error {
	return s.save(RestoreName, snap)
}

func (s *FileStore) DeleteRestore(ctx context.Context) error {
	return s.remove(RestoreName)
}

func (s *FileStore) LoadTaxonomyCache(ctx context.Context) (TaxonomyCache, error) {
	cache := TaxonomyCache{}
	found, err := s.load(TaxonomyCacheName, &cache)
	if err != nil {
		return nil, err
	}
	if !found || cache == nil {
		cache = TaxonomyCache{}
	}
	return cache, nil
}

func (s *FileStore) SaveTaxonomyCache(ctx context.Context, cache TaxonomyCache) error {
	return s.save(TaxonomyCacheName, cache)
}

// SaveProgress is not atomic across the two files. A crash between the
// writes leaves the snapshot one item behind the checkpoint.
func (s *FileStore) SaveProgress(ctx context.Context, cp *Checkpoint, snap *RestoreSnapshot) error {
	if err := s.SaveCheckpoint(ctx, cp); err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	return s.SaveRestore(ctx, snap)
}

// load decodes name into out. Missing or corrupt files report found=false
// without an error.
func (s *FileStore) load(name string, out any) (bool, error) {
	path := s.Path(name)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		s.logWarning(fmt.Sprintf("state file %s unreadable, starting fresh: %v", path, err))
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.logWarning(fmt.Sprintf("state file %s is corrupt, starting fresh: %v", path, err))
		return false, nil
	}
	return true, nil
}

func (s *FileStore) save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return WriteFileAtomic(s.Path(name), data)
}

func (s *FileStore) remove(name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) logWarning(message string) {
	if s.logger == nil {
		return
	}
	s.logger.LogWarning(message)
}

// WriteFileAtomic replaces path with data via a synced temp file and rename.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"screenlist/pkg/domain"
)

// ErrCacheUnavailable marks a missing or unreadable cache file. It is a warning, not a failure.
var ErrCacheUnavailable = errors.New("cache unavailable")

// Store persists enrichment records between runs
type Store interface {
	// Load always returns a usable set; a non-nil error is a recoverable warning
	Load(ctx context.Context) (domain.RecordSet, error)
	Save(ctx context.Context, records domain.RecordSet) error
}

// FileStore keeps the cache as one JSON document: a flat object from key to record
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the cache file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the cache file. A missing or corrupt file yields an empty set and an
// error wrapping ErrCacheUnavailable.
func (s *FileStore) Load(ctx context.Context) (domain.RecordSet, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return domain.RecordSet{}, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	var raw map[string]domain.EnrichmentRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.RecordSet{}, fmt.Errorf("%w: failed to decode %s: %v", ErrCacheUnavailable, s.path, err)
	}

	records := make(domain.RecordSet, len(raw))
	for k, rec := range raw {
		key := domain.CanonicalKey(k)
		rec.Key = key
		records[key] = rec
	}
	return records, nil
}

// Save writes the full set through a temp file and rename so a crash never leaves a
// half-written cache behind
func (s *FileStore) Save(ctx context.Context, records domain.RecordSet) error {
	if records == nil {
		records = domain.RecordSet{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	data = append(data, '\n')

	if err := WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Merge returns the right-biased union of existing and updates.
// Neither input is modified.
func Merge(existing, updates domain.RecordSet) domain.RecordSet {
	out := make(domain.RecordSet, len(existing)+len(updates))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}

// WriteFileAtomic writes data to a temp file next to path and renames it into place
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Package manifest records the outputs written by pipeline tasks in a flat JSON file.
package manifest

import (
	"encoding/json"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.OutputStore = (*Store)(nil)

// Store implements ports.OutputStore using one manifest file per project
// root, at .kiln/manifest.json.
type Store struct {
	mu        sync.Mutex
	manifests map[string]map[string]domain.OutputRecord
}

// NewStore creates an empty Store. Manifests are loaded on first use.
func NewStore() *Store {
	return &Store{
		manifests: make(map[string]map[string]domain.OutputRecord),
	}
}

// Get returns the record for path, or nil, nil if none was written.
func (s *Store) Get(root, path string) (*domain.OutputRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(root)
	if err != nil {
		return nil, err
	}
	rec, ok := records[path]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Put stores rec and reports whether its hash differs from the previous record.
func (s *Store) Put(root string, rec domain.OutputRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(root)
	if err != nil {
		return false, err
	}

	prev, existed := records[rec.Path]
	changed := !existed || prev.Hash != rec.Hash
	records[rec.Path] = rec

	if err := s.save(root, records); err != nil {
		return false, err
	}
	return changed, nil
}

// All returns every record sorted by path.
func (s *Store) All(root string) ([]domain.OutputRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(root)
	if err != nil {
		return nil, err
	}

	out := make([]domain.OutputRecord, 0, len(records))
	for _, path := range slices.Sorted(maps.Keys(records)) {
		out = append(out, records[path])
	}
	return out, nil
}

// Delete removes the record for path. Removing the last record removes the manifest file.
func (s *Store) Delete(root, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(root)
	if err != nil {
		return err
	}
	if _, ok := records[path]; !ok {
		return nil
	}
	delete(records, path)

	if len(records) == 0 {
		err := os.Remove(manifestPath(root))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return zerr.With(domain.WrapAs(err, domain.ErrStoreWriteFailed), "path", manifestPath(root))
		}
		return nil
	}
	return s.save(root, records)
}

func manifestPath(root string) string {
	return filepath.Join(root, domain.DefaultManifestPath())
}

// load must be called with s.mu held.
func (s *Store) load(root string) (map[string]domain.OutputRecord, error) {
	if records, ok := s.manifests[root]; ok {
		return records, nil
	}

	records := make(map[string]domain.OutputRecord)
	path := manifestPath(root)

	//nolint:gosec // Path is derived from the project root
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, zerr.With(domain.WrapAs(err, domain.ErrStoreReadFailed), "path", path)
	case len(data) > 0:
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, zerr.With(domain.WrapAs(err, domain.ErrStoreUnmarshalFailed), "path", path)
		}
	}

	s.manifests[root] = records
	return records, nil
}

// save must be called with s.mu held.
func (s *Store) save(root string, records map[string]domain.OutputRecord) error {
	path := manifestPath(root)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal output manifest")
	}

	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(domain.WrapAs(err, domain.ErrStoreWriteFailed), "path", path)
	}

	// Write to a sibling and rename so readers never see a partial manifest.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return zerr.With(domain.WrapAs(err, domain.ErrStoreWriteFailed), "path", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return zerr.With(domain.WrapAs(err, domain.ErrStoreWriteFailed), "path", path)
	}
	return nil
}

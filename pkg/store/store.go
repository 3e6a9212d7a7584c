// Package store persists polylines between runs. Only polylines are stored;
// the graph is rebuilt from them on load.
package store

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"access_router/pkg/polyline"
)

// Store loads and saves the full polyline set.
type Store interface {
	Load() ([]*polyline.Polyline, error)
	Save(ps []*polyline.Polyline) error
}

// File stores polylines as a GeoJSON FeatureCollection.
type File struct {
	path string
}

// NewFile returns a store backed by the file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// Load reads every polyline. A missing file is an empty store.
func (f *File) Load() ([]*polyline.Polyline, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read store")
	}
	ps, err := polyline.UnmarshalCollection(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", f.path)
	}
	return ps, nil
}

// Save replaces the file contents with ps. The collection is written to a
// temporary file next to the target and renamed over it, so readers never
// observe a partial write.
func (f *File) Save(ps []*polyline.Polyline) error {
	data, err := polyline.MarshalCollection(ps)
	if err != nil {
		return errors.Wrap(err, "encode polylines")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create store dir")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return errors.Wrap(err, "rename")
	}
	return nil
}

// Memory keeps deep copies of the last saved set.
type Memory struct {
	mu    sync.Mutex
	ps    []*polyline.Polyline
	saves int
}

func (m *Memory) Load() ([]*polyline.Polyline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.ps), nil
}

func (m *Memory) Save(ps []*polyline.Polyline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ps = clone(ps)
	m.saves++
	return nil
}

// Saves reports how many times Save was called.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func clone(ps []*polyline.Polyline) []*polyline.Polyline {
	if ps == nil {
		return nil
	}
	out := make([]*polyline.Polyline, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}

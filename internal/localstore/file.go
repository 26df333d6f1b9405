package localstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend stores each key as a file in dir so values survive restarts.
// Change notification only reaches subscribers inside this process.
type FileBackend struct {
	mu  sync.Mutex
	dir string
	bc  *broadcaster
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("localstore: ensure dir: %w", err)
	}
	return &FileBackend{dir: dir, bc: newBroadcaster()}, nil
}

func (f *FileBackend) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

func (f *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("localstore: read %s: %w", key, err)
	}
	return data, nil
}

// Set writes through a temp file and renames it so readers never see a torn value.
func (f *FileBackend) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("localstore: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("localstore: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("localstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("localstore: rename %s: %w", key, err)
	}
	return nil
}

func (f *FileBackend) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("localstore: remove %s: %w", key, err)
	}
	return nil
}

func (f *FileBackend) Publish(_ context.Context, c Change) error {
	c.Value = cloneBytes(c.Value)
	f.bc.publish(c)
	return nil
}

func (f *FileBackend) Subscribe(ctx context.Context) (<-chan Change, error) {
	return f.bc.subscribe(ctx), nil
}

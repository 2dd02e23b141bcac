package nvs

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const fileFormatVersion = 1

// fileDocument is the on-disk layout of a FileStore.
type fileDocument struct {
	Version int               `yaml:"version"`
	Blobs   map[string]string `yaml:"blobs,omitempty"` // base64 encoded values
}

// FileStore persists blobs in a single YAML file. Commit rewrites the whole
// document through a temporary file and an atomic rename, so a power loss
// leaves either the previous or the new document on disk.
type FileStore struct {
	mu        sync.Mutex
	path      string
	committed map[string][]byte
	staged    staging
	closed    bool
}

// OpenFileStore loads the store at path. A missing file yields an empty store;
// the file is created on the first commit.
func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store requires a path")
	}

	fs := &FileStore{
		path:      path,
		committed: make(map[string][]byte),
		staged:    make(staging),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse store file: %w", err)
	}
	if doc.Version != fileFormatVersion {
		return nil, fmt.Errorf("unsupported store version: %d (expected %d)", doc.Version, fileFormatVersion)
	}

	for k, v := range doc.Blobs {
		raw, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("corrupt value for key %q: %w", k, err)
		}
		fs.committed[k] = raw
	}

	return fs, nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// GetBlob implements Store.
func (f *FileStore) GetBlob(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	if v, ok := f.staged.lookup(key); ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return cloneBytes(v), nil
	}
	v, ok := f.committed[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(v), nil
}

// SetBlob implements Store.
func (f *FileStore) SetBlob(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if value == nil {
		value = []byte{}
	}
	f.staged[key] = cloneBytes(value)
	return nil
}

// Erase implements Store.
func (f *FileStore) Erase(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.staged[key] = nil
	return nil
}

// Commit implements Store.
func (f *FileStore) Commit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if len(f.staged) == 0 {
		return nil
	}

	next := make(map[string][]byte, len(f.committed)+len(f.staged))
	for k, v := range f.committed {
		next[k] = v
	}
	for k, v := range f.staged {
		if v == nil {
			delete(next, k)
		} else {
			next[k] = v
		}
	}

	if err := f.writeDocument(next); err != nil {
		return err
	}

	f.committed = next
	f.staged = make(staging)
	return nil
}

// writeDocument replaces the store file with the given contents.
func (f *FileStore) writeDocument(blobs map[string][]byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	doc := fileDocument{
		Version: fileFormatVersion,
		Blobs:   make(map[string]string, len(blobs)),
	}
	for k, v := range blobs {
		doc.Blobs[k] = base64.StdEncoding.EncodeToString(v)
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	header := []byte("# wifiprovd non-volatile storage. Do not edit while the daemon is running.\n\n")
	data = append(header, data...)

	tmpPath := f.path + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temporary store file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temporary store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary store file: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	if err := syncDir(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to sync store directory: %w", err)
	}

	return nil
}

// syncDir flushes a directory entry so a completed rename survives power loss.
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// Close implements Store.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.staged = make(staging)
	return nil
}

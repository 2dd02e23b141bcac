package nvs

import (
	"errors"
	"fmt"
)

// MaxKeyLen is the longest key accepted, matching the NVS partition limit.
const MaxKeyLen = 15

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var (
	// ErrNotFound is returned by GetBlob when the key holds no value.
	ErrNotFound = errors.New("nvs: key not found")

	// ErrInvalidKey is returned for empty or overlong keys.
	ErrInvalidKey = errors.New("nvs: invalid key")

	// ErrClosed is returned by any operation on a closed store.
	ErrClosed = errors.New("nvs: store closed")
)

// Store is a durable blob store with explicit commit.
type Store interface {
	// GetBlob returns the value for key, staged or committed.
	GetBlob(key string) ([]byte, error)

	// SetBlob stages value under key.
	SetBlob(key string, value []byte) error

	// Erase stages removal of key. Erasing a missing key is not an error.
	Erase(key string) error

	// Commit makes every staged change durable. On error nothing staged
	// since the last successful commit is guaranteed to have landed, and
	// the staged changes are kept so a later Commit can retry them.
	Commit() error

	// Close releases the store. Uncommitted changes are discarded.
	Close() error
}

// Open returns a store for the named backend. path is ignored by the memory
// backend.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemStore(), nil
	case BackendFile:
		return OpenFileStore(path)
	case BackendSQLite:
		return OpenSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func validateKey(key string) error {
	if key == "" || len(key) > MaxKeyLen {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// staging holds uncommitted changes. A nil value marks an erase.
type staging map[string][]byte

func (s staging) lookup(key string) (value []byte, staged bool) {
	v, ok := s[key]
	if !ok {
		return nil, false
	}
	return v, true
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

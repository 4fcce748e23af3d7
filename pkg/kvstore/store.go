// Package kvstore holds the persistent string-keyed byte stores the chat store is
// written on top of.
package kvstore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Store is a synchronous key-value store. Values are opaque bytes; the chat store
// serializes them as JSON.
type Store interface {
	// Get returns the value for key. The boolean is false when the key is absent.
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	Close() error
}

type Backend string

const (
	BackendMemory Backend = "memory"
	BackendBolt   Backend = "bolt"
	BackendSQLite Backend = "sqlite"
)

var ErrUnknownBackend = errors.New("unknown store backend")

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendMemory, BackendBolt, BackendSQLite:
		return b, nil
	case "":
		return BackendSQLite, nil
	default:
		return "", errors.Wrapf(ErrUnknownBackend, "%q", s)
	}
}

// IsFileBacked reports whether the backend persists to the given path.
func (b Backend) IsFileBacked() bool {
	return b == BackendBolt || b == BackendSQLite
}

// Open creates a store for the given backend. The path is ignored for the memory backend.
func Open(backend Backend, path string) (Store, error) {
	if backend.IsFileBacked() {
		if path == "" {
			return nil, errors.Errorf("%s backend requires a path", backend)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "could not create store directory")
		}
	}

	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendBolt:
		return OpenBolt(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", backend)
	}
}

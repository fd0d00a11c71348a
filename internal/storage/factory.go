package storage

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultSQLitePath is the archive file used when no path is configured.
const DefaultSQLitePath = "stipple.db"

// ErrUnsupportedStore reports a backend name this build cannot open.
var ErrUnsupportedStore = errors.New("unsupported store backend")

// NewStore opens the named archive backend. An empty kind selects
// DefaultStoreKind for this build.
func NewStore(kind, sqlitePath string) (Store, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = DefaultStoreKind()
	}
	switch kind {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if strings.TrimSpace(sqlitePath) == "" {
			sqlitePath = DefaultSQLitePath
		}
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStore, kind)
	}
}

// CloseIfSupported releases backends that hold resources, such as the
// sqlite connection pool.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

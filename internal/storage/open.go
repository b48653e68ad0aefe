package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Options selects and configures a store backend.
type Options struct {
	Backend    string
	Neo4j      Neo4jConfig
	SQLitePath string
}

// Open connects to the backend named by opts.Backend. The returned store is
// ready for queries.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Store, error) {
	switch opts.Backend {
	case BackendNeo4j:
		return NewNeo4jStore(ctx, opts.Neo4j, logger)

	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			var err error
			if path, err = DefaultSQLitePath(); err != nil {
				return nil, err
			}
		}
		store := NewSQLiteStore(path, logger)
		if err := store.Init(ctx); err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

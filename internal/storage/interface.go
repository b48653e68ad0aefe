/*
Package storage implements the graph store adapters queried by the recommender.

The historical event graph (Tool, Job, Session, User) is read-only from the
recommender's point of view. Two adapters serve the same query contract:

  - Neo4jStore runs Cypher traversals through the official Neo4j driver.
  - SQLiteStore keeps the same graph as relational tables in an embedded
    database (modernc.org/sqlite, a pure Go, CGo-free implementation).

Both can be populated from a synthetic Dataset through the Loader interface.
*/
package storage

import (
	"context"
)

// Backend names accepted by Open.
const (
	BackendNeo4j  = "neo4j"
	BackendSQLite = "sqlite"
)

// GraphStore defines the read contract the recommender depends on.
type GraphStore interface {
	// Name identifies the backend (used in logs and metrics labels).
	Name() string

	// ConfidenceScores returns, for every tool co-occurring with lastToolID in
	// at least one historical session, the fraction of lastToolID's sessions
	// that also contain it. Rows are ordered by score descending, then tool id
	// ascending, and capped at limit. An unknown tool yields an empty slice.
	ConfidenceScores(ctx context.Context, lastToolID string, limit int) ([]ToolScore, error)

	// ListTools returns every tool id in the store, sorted ascending.
	ListTools(ctx context.Context) ([]string, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// Loader writes a synthetic dataset into a store.
// Loading the same dataset twice must not duplicate entities.
type Loader interface {
	Load(ctx context.Context, ds *Dataset) error
}

// Store is a GraphStore that can also be seeded.
type Store interface {
	GraphStore
	Loader
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the historical event graph in an embedded SQLite database.
type SQLiteStore struct {
	db       *sql.DB
	dbPath   string
	logger   *zap.Logger
	mu       sync.RWMutex
	initOnce sync.Once
	initErr  error
}

// NewSQLiteStore creates a store backed by the database file at path.
// Nothing is opened until Init is called.
func NewSQLiteStore(path string, logger *zap.Logger) *SQLiteStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStore{
		dbPath: path,
		logger: logger.Named("sqlite"),
	}
}

// DefaultSQLitePath returns ~/.ric/graph.db.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".ric", "graph.db"), nil
}

// Name implements GraphStore.
func (s *SQLiteStore) Name() string { return BackendSQLite }

// Init opens the database and runs migrations. It is safe to call more than
// once; only the first call does any work.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.initOnce.Do(func() {
		if dir := filepath.Dir(s.dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				s.initErr = s.unavailable(ctx, "init", fmt.Errorf("failed to create db directory: %w", err))
				return
			}
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			s.initErr = s.unavailable(ctx, "init", fmt.Errorf("failed to open database: %w", err))
			return
		}

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			s.initErr = s.unavailable(ctx, "init", fmt.Errorf("failed to ping database: %w", err))
			return
		}

		s.mu.Lock()
		s.db = db
		s.mu.Unlock()

		if err := s.runMigrations(ctx); err != nil {
			s.initErr = newStoreError(ctx, BackendSQLite, "migrate", KindQuery, err)
			return
		}

		s.logger.Debug("sqlite store ready", zap.String("path", s.dbPath))
	})

	return s.initErr
}

// Close closes the database connection. Later queries fail with
// ErrStoreUnavailable.
func (s *SQLiteStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}

// handle returns the open database or an ErrStoreUnavailable error.
// Callers must hold s.mu.
func (s *SQLiteStore) handle(ctx context.Context, op string) (*sql.DB, error) {
	if s.db == nil {
		return nil, s.unavailable(ctx, op, errors.New("database is not open"))
	}
	return s.db, nil
}

func (s *SQLiteStore) unavailable(ctx context.Context, op string, err error) error {
	return newStoreError(ctx, BackendSQLite, op, KindUnavailable, err)
}

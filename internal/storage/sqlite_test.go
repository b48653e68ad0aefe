/*
Package storage provides tests for the storage layer.
*/
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fixtureDataset builds a small graph:
//
//	s1: A B C
//	s2: A B B
//	s3: A D A
//	s4: B C
func fixtureDataset() *Dataset {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	seq := 0
	session := func(id, user string, tools ...string) Session {
		s := Session{ID: id, UserID: user}
		for _, tool := range tools {
			seq++
			s.Jobs = append(s.Jobs, Job{
				ID:        fmt.Sprintf("job_%02d", seq),
				ToolID:    tool,
				Timestamp: base.Add(time.Duration(seq) * 5 * time.Minute),
			})
		}
		return s
	}

	return &Dataset{
		Platform: "Galaxy",
		Tools:    []string{"A", "B", "C", "D", "E"},
		Users:    []string{"u1", "u2"},
		Sessions: []Session{
			session("s1", "u1", "A", "B", "C"),
			session("s2", "u1", "A", "B", "B"),
			session("s3", "u2", "A", "D", "A"),
			session("s4", "u2", "B", "C"),
		},
	}
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := NewSQLiteStore(filepath.Join(t.TempDir(), "graph.db"), nil)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { store.Close(context.Background()) })
	return store
}

func newLoadedStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := newTestStore(t)
	if err := store.Load(context.Background(), fixtureDataset()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return store
}

// TestInit verifies database creation and migrations.
func TestInit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "graph.db")
	store := NewSQLiteStore(dbPath, nil)
	defer store.Close(context.Background())

	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file not created")
	}

	version, err := store.schemaVersion(context.Background())
	if err != nil {
		t.Fatalf("schemaVersion failed: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("Expected schema version %d, got %d", len(migrations), version)
	}

	// Second Init is a no-op.
	if err := store.Init(context.Background()); err != nil {
		t.Errorf("Second Init failed: %v", err)
	}
}

// TestConfidenceScores verifies the distinct-session ratio and ordering.
func TestConfidenceScores(t *testing.T) {
	store := newLoadedStore(t)

	scores, err := store.ConfidenceScores(context.Background(), "A", 10)
	if err != nil {
		t.Fatalf("ConfidenceScores failed: %v", err)
	}

	expected := []ToolScore{
		{Tool: "B", Score: 2.0 / 3.0},
		{Tool: "C", Score: 1.0 / 3.0},
		{Tool: "D", Score: 1.0 / 3.0},
	}
	if len(scores) != len(expected) {
		t.Fatalf("Expected %d scores, got %d: %v", len(expected), len(scores), scores)
	}
	for i, want := range expected {
		got := scores[i]
		if got.Tool != want.Tool {
			t.Errorf("scores[%d].Tool = %s, want %s", i, got.Tool, want.Tool)
		}
		if diff := got.Score - want.Score; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("scores[%d].Score = %f, want %f", i, got.Score, want.Score)
		}
	}
}

// TestConfidenceScoresBounds verifies every score lies in (0, 1] and the
// queried tool never appears in its own result.
func TestConfidenceScoresBounds(t *testing.T) {
	store := newLoadedStore(t)

	for _, tool := range []string{"A", "B", "C", "D"} {
		scores, err := store.ConfidenceScores(context.Background(), tool, 10)
		if err != nil {
			t.Fatalf("ConfidenceScores(%s) failed: %v", tool, err)
		}
		for _, s := range scores {
			if s.Tool == tool {
				t.Errorf("ConfidenceScores(%s) contains the queried tool", tool)
			}
			if s.Score <= 0 || s.Score > 1 {
				t.Errorf("ConfidenceScores(%s): %s has score %f outside (0, 1]", tool, s.Tool, s.Score)
			}
		}
	}
}

// TestConfidenceScoresLimit verifies truncation keeps the highest scores.
func TestConfidenceScoresLimit(t *testing.T) {
	store := newLoadedStore(t)

	scores, err := store.ConfidenceScores(context.Background(), "A", 1)
	if err != nil {
		t.Fatalf("ConfidenceScores failed: %v", err)
	}
	if len(scores) != 1 || scores[0].Tool != "B" {
		t.Errorf("Expected only B, got %v", scores)
	}
}

// TestConfidenceScoresNotFound verifies unknown and never-run tools yield an
// empty result instead of an error.
func TestConfidenceScoresNotFound(t *testing.T) {
	store := newLoadedStore(t)

	for _, tool := range []string{"does-not-exist", "E"} {
		scores, err := store.ConfidenceScores(context.Background(), tool, 10)
		if err != nil {
			t.Fatalf("ConfidenceScores(%s) returned error: %v", tool, err)
		}
		if len(scores) != 0 {
			t.Errorf("ConfidenceScores(%s) = %v, want empty", tool, scores)
		}
	}
}

// TestListTools verifies the catalog is returned sorted.
func TestListTools(t *testing.T) {
	store := newLoadedStore(t)

	tools, err := store.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}

	expected := []string{"A", "B", "C", "D", "E"}
	if len(tools) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, tools)
	}
	for i := range expected {
		if tools[i] != expected[i] {
			t.Errorf("tools[%d] = %s, want %s", i, tools[i], expected[i])
		}
	}
}

// TestLoadIdempotent verifies loading the same dataset twice leaves the graph
// unchanged.
func TestLoadIdempotent(t *testing.T) {
	store := newLoadedStore(t)

	if err := store.Load(context.Background(), fixtureDataset()); err != nil {
		t.Fatalf("Second Load failed: %v", err)
	}

	var jobs, edges int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM jobs").Scan(&jobs); err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if err := store.db.QueryRow("SELECT COUNT(*) FROM job_precedes").Scan(&edges); err != nil {
		t.Fatalf("count edges: %v", err)
	}

	if want := fixtureDataset().JobCount(); jobs != want {
		t.Errorf("Expected %d jobs, got %d", want, jobs)
	}
	// One PRECEDES edge per consecutive pair: 2 + 2 + 2 + 1.
	if edges != 7 {
		t.Errorf("Expected 7 precedes edges, got %d", edges)
	}
}

// TestClosedStoreUnavailable verifies a closed store reports
// ErrStoreUnavailable rather than an empty result.
func TestClosedStoreUnavailable(t *testing.T) {
	store := newLoadedStore(t)
	if err := store.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	scores, err := store.ConfidenceScores(context.Background(), "A", 10)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Expected ErrStoreUnavailable, got %v", err)
	}
	if scores != nil {
		t.Errorf("Expected nil scores, got %v", scores)
	}

	if _, err := store.ListTools(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("ListTools: expected ErrStoreUnavailable, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("Unavailable store must not be retryable")
	}
}

// TestCanceledContext verifies a canceled query is classified as canceled.
func TestCanceledContext(t *testing.T) {
	store := newLoadedStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.ConfidenceScores(ctx, "A", 10)
	if err == nil {
		t.Fatal("Expected error for canceled context")
	}
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("Expected ErrCanceled, got %v", err)
	}
}

// TestOpenSQLite verifies the factory returns an initialized store.
func TestOpenSQLite(t *testing.T) {
	store, err := Open(context.Background(), Options{
		Backend:    BackendSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "graph.db"),
	}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close(context.Background())

	if store.Name() != BackendSQLite {
		t.Errorf("Expected backend %s, got %s", BackendSQLite, store.Name())
	}

	tools, err := store.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(tools) != 0 {
		t.Errorf("Expected empty catalog, got %v", tools)
	}
}

// TestOpenUnknownBackend verifies an unknown backend is rejected.
func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Options{Backend: "redis"}, nil); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

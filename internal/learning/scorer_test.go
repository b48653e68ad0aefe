package learning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/khanglvm/ric/internal/metrics"
	"github.com/khanglvm/ric/internal/storage"
)

// mockStore is an in-memory GraphStore returning canned rows.
type mockStore struct {
	rows      map[string][]storage.ToolScore
	err       error
	lastLimit int
}

func (m *mockStore) Name() string { return "mock" }

func (m *mockStore) ConfidenceScores(_ context.Context, lastToolID string, limit int) ([]storage.ToolScore, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.rows[lastToolID], nil
}

func (m *mockStore) ListTools(context.Context) ([]string, error) { return nil, nil }

func (m *mockStore) Close(context.Context) error { return nil }

func TestScorePassesThroughOrderedRows(t *testing.T) {
	store := &mockStore{rows: map[string][]storage.ToolScore{
		"FastQC": {{Tool: "MultiQC", Score: 0.75}, {Tool: "Trimmomatic", Score: 0.5}},
	}}
	s, err := NewConfidenceScorer(store)
	require.NoError(t, err)

	scores, err := s.Score(context.Background(), "FastQC")
	require.NoError(t, err)
	require.Equal(t, []storage.ToolScore{{Tool: "MultiQC", Score: 0.75}, {Tool: "Trimmomatic", Score: 0.5}}, scores)
	require.Equal(t, DefaultScoreLimit, store.lastLimit)
}

func TestScoreNormalizesRows(t *testing.T) {
	store := &mockStore{rows: map[string][]storage.ToolScore{
		"A": {
			{Tool: "C", Score: 0.5},
			{Tool: "A", Score: 0.9},
			{Tool: "B", Score: 0.5},
			{Tool: "D", Score: 0},
			{Tool: "E", Score: 1.2},
		},
	}}
	s, err := NewConfidenceScorer(store, WithScoreLimit(3))
	require.NoError(t, err)

	scores, err := s.Score(context.Background(), "A")
	require.NoError(t, err)
	require.Equal(t, []storage.ToolScore{
		{Tool: "E", Score: 1},
		{Tool: "B", Score: 0.5},
		{Tool: "C", Score: 0.5},
	}, scores)
	require.Equal(t, 3, store.lastLimit)
}

func TestScoreUnknownToolIsEmpty(t *testing.T) {
	s, err := NewConfidenceScorer(&mockStore{})
	require.NoError(t, err)

	scores, err := s.Score(context.Background(), "nope")
	require.NoError(t, err)
	require.Empty(t, scores)
}

func TestScorePropagatesStoreErrors(t *testing.T) {
	cause := &storage.StoreError{Op: "confidence_scores", Backend: "mock", Kind: storage.KindUnavailable, Err: errors.New("auth failed")}
	s, err := NewConfidenceScorer(&mockStore{err: cause})
	require.NoError(t, err)

	scores, err := s.Score(context.Background(), "A")
	require.Nil(t, scores)
	require.Same(t, cause, err)
	require.ErrorIs(t, err, storage.ErrStoreUnavailable)
}

func TestScoreRecordsMetrics(t *testing.T) {
	m := metrics.New()
	store := &mockStore{rows: map[string][]storage.ToolScore{"A": {{Tool: "B", Score: 1}}}}
	s, err := NewConfidenceScorer(store, WithScorerMetrics(m))
	require.NoError(t, err)

	_, err = s.Score(context.Background(), "A")
	require.NoError(t, err)
	_, err = s.Score(context.Background(), "Z")
	require.NoError(t, err)

	store.err = &storage.StoreError{Kind: storage.KindTimeout, Err: context.DeadlineExceeded}
	_, err = s.Score(context.Background(), "A")
	require.Error(t, err)

	count, err := testutil.GatherAndCount(m.Registry(), "ric_confidence_queries_total")
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestNewConfidenceScorerRejectsBadLimit(t *testing.T) {
	_, err := NewConfidenceScorer(&mockStore{}, WithScoreLimit(0))
	require.ErrorIs(t, err, ErrInvalidLimit)
}

func TestScoreRateLimited(t *testing.T) {
	store := &mockStore{rows: map[string][]storage.ToolScore{"A": {{Tool: "B", Score: 1}}}}
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	s, err := NewConfidenceScorer(store, WithRateLimiter(limiter))
	require.NoError(t, err)

	_, err = s.Score(context.Background(), "A")
	require.NoError(t, err)

	// The next token is an hour away, past any short deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.Score(ctx, "A")
	require.ErrorIs(t, err, storage.ErrTimeout)
	require.True(t, storage.IsRetryable(err))

	canceled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = s.Score(canceled, "A")
	require.ErrorIs(t, err, storage.ErrCanceled)
}

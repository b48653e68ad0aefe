package learning

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/khanglvm/ric/internal/metrics"
	"github.com/khanglvm/ric/internal/storage"
	"github.com/khanglvm/ric/internal/tracing"
)

const (
	// DefaultScoreLimit caps the rows returned by a confidence query.
	DefaultScoreLimit = 10

	// maxConfidence is the upper bound of a confidence score.
	maxConfidence = 1.0

	opConfidenceScores = "confidence_scores"
)

// ErrInvalidLimit is returned for non-positive result caps.
var ErrInvalidLimit = errors.New("result limit must be positive")

// Scorer produces confidence scores for the tool that just ran.
type Scorer interface {
	Score(ctx context.Context, lastTool string) ([]storage.ToolScore, error)
}

// ConfidenceScorer answers Score from a graph store.
// It holds no state besides the store handle and never caches results.
type ConfidenceScorer struct {
	store   storage.GraphStore
	limit   int
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// ScorerOption configures a ConfidenceScorer.
type ScorerOption func(*ConfidenceScorer)

// WithScoreLimit sets the maximum number of scored tools returned.
func WithScoreLimit(limit int) ScorerOption {
	return func(s *ConfidenceScorer) { s.limit = limit }
}

// WithScorerLogger sets the logger.
func WithScorerLogger(logger *zap.Logger) ScorerOption {
	return func(s *ConfidenceScorer) { s.logger = logger }
}

// WithScorerMetrics records query counts and latency.
func WithScorerMetrics(m *metrics.Metrics) ScorerOption {
	return func(s *ConfidenceScorer) { s.metrics = m }
}

// WithRateLimiter throttles queries to the store. Waiting for a token counts
// against the caller's deadline.
func WithRateLimiter(l *rate.Limiter) ScorerOption {
	return func(s *ConfidenceScorer) { s.limiter = l }
}

// NewConfidenceScorer returns a scorer querying store.
func NewConfidenceScorer(store storage.GraphStore, opts ...ScorerOption) (*ConfidenceScorer, error) {
	s := &ConfidenceScorer{
		store:  store,
		limit:  DefaultScoreLimit,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("scorer")

	return s, nil
}

// Score returns, for each tool co-occurring with lastTool in historical
// sessions, the fraction of lastTool's sessions that also contain it.
// Results are ordered by score descending, then tool id ascending, and
// capped at the score limit. A tool without history yields an empty slice.
// Store errors are returned unchanged.
func (s *ConfidenceScorer) Score(ctx context.Context, lastTool string) ([]storage.ToolScore, error) {
	ctx, span := tracing.StoreSpan(ctx, s.store.Name(), opConfidenceScores)
	defer span.End()
	span.SetAttributes(attribute.String("ric.tool", lastTool))

	start := time.Now()
	rows, err := s.query(ctx, lastTool)
	elapsed := time.Since(start)

	if err != nil {
		tracing.RecordError(span, err)
		s.metrics.ObserveConfidenceQuery(s.store.Name(), storage.KindOf(err).String(), elapsed)
		s.logger.Warn("confidence query failed",
			zap.String("tool", lastTool),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, err
	}

	scores := s.normalize(lastTool, rows)
	span.SetAttributes(attribute.Int("ric.results", len(scores)))

	result := metrics.ResultOK
	if len(scores) == 0 {
		result = metrics.ResultEmpty
	}
	s.metrics.ObserveConfidenceQuery(s.store.Name(), result, elapsed)
	s.logger.Debug("confidence query",
		zap.String("tool", lastTool),
		zap.Int("results", len(scores)),
		zap.Duration("elapsed", elapsed),
	)

	return scores, nil
}

// query waits for the rate limiter, if any, then asks the store.
func (s *ConfidenceScorer) query(ctx context.Context, lastTool string) ([]storage.ToolScore, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, &storage.StoreError{
				Op:      opConfidenceScores,
				Backend: s.store.Name(),
				Kind:    throttleKind(ctx),
				Err:     err,
			}
		}
	}
	return s.store.ConfidenceScores(ctx, lastTool, s.limit)
}

// throttleKind classifies a failed limiter wait. The limiter refuses early
// when the deadline cannot be met, before ctx itself expires.
func throttleKind(ctx context.Context) storage.Kind {
	if errors.Is(ctx.Err(), context.Canceled) {
		return storage.KindCanceled
	}
	return storage.KindTimeout
}

// normalize enforces the result contract on whatever the store returned.
func (s *ConfidenceScorer) normalize(lastTool string, rows []storage.ToolScore) []storage.ToolScore {
	scores := make([]storage.ToolScore, 0, len(rows))
	for _, row := range rows {
		if row.Tool == lastTool || row.Score <= 0 {
			continue
		}
		if row.Score > maxConfidence {
			s.logger.Warn("store returned confidence above 1, clamping",
				zap.String("tool", lastTool),
				zap.String("recommended", row.Tool),
				zap.Float64("score", row.Score),
			)
			row.Score = maxConfidence
		}
		scores = append(scores, row)
	}

	sortScores(scores)
	if len(scores) > s.limit {
		scores = scores[:s.limit]
	}
	return scores
}

// sortScores orders by score descending, then tool id ascending.
func sortScores(scores []storage.ToolScore) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Tool < scores[j].Tool
	})
}

package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/ric/internal/metrics"
	"github.com/khanglvm/ric/internal/storage"
	"github.com/khanglvm/ric/internal/tracing"
)

const (
	// DefaultAlpha is the share of prior weight kept at each step.
	DefaultAlpha = 0.3

	// DefaultRecommendLimit caps the recommendations returned by Step.
	DefaultRecommendLimit = 5
)

// ErrInvalidAlpha is returned when alpha is outside [0, 1].
var ErrInvalidAlpha = errors.New("alpha must be within [0, 1]")

// SessionRecommender tracks one session's weight vector.
//
// Step must not be called concurrently on the same recommender. Independent
// recommenders share nothing but the scorer, which is stateless.
type SessionRecommender struct {
	scorer  Scorer
	catalog *Catalog
	alpha   float64
	limit   int
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics

	weights *WeightVector
	history []string
}

// RecommenderOption configures a SessionRecommender.
type RecommenderOption func(*SessionRecommender)

// WithAlpha sets the decay factor. It must be within [0, 1].
func WithAlpha(alpha float64) RecommenderOption {
	return func(r *SessionRecommender) { r.alpha = alpha }
}

// WithRecommendLimit sets how many recommendations Step returns.
func WithRecommendLimit(limit int) RecommenderOption {
	return func(r *SessionRecommender) { r.limit = limit }
}

// WithQueryTimeout bounds each step's confidence query. Zero disables it.
func WithQueryTimeout(d time.Duration) RecommenderOption {
	return func(r *SessionRecommender) { r.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) RecommenderOption {
	return func(r *SessionRecommender) { r.logger = logger }
}

// WithMetrics records step outcomes.
func WithMetrics(m *metrics.Metrics) RecommenderOption {
	return func(r *SessionRecommender) { r.metrics = m }
}

// NewSessionRecommender creates a recommender with every catalog tool at
// weight zero.
func NewSessionRecommender(scorer Scorer, catalog *Catalog, opts ...RecommenderOption) (*SessionRecommender, error) {
	if catalog == nil || catalog.Len() == 0 {
		return nil, ErrEmptyCatalog
	}

	r := &SessionRecommender{
		scorer:  scorer,
		catalog: catalog,
		alpha:   DefaultAlpha,
		limit:   DefaultRecommendLimit,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	// NaN fails both comparisons, so test the accepted range.
	if !(r.alpha >= 0 && r.alpha <= 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidAlpha, r.alpha)
	}
	if r.limit <= 0 {
		return nil, fmt.Errorf("%w: recommend limit %d", ErrInvalidLimit, r.limit)
	}
	if r.timeout < 0 {
		return nil, fmt.Errorf("query timeout must not be negative: %s", r.timeout)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.Named("recommender")
	r.weights = NewWeightVector(catalog)

	return r, nil
}

// Step folds lastTool's confidence scores into the session weights and
// returns the top tools, lastTool excluded.
//
// Weights decay by alpha, then each scored tool gains (1-alpha) times its
// confidence. The update is computed on a copy and applied only when the
// query succeeds, so a failed step leaves the weights as they were and can
// be retried.
func (r *SessionRecommender) Step(ctx context.Context, lastTool string) ([]Recommendation, error) {
	ctx, span := tracing.StepSpan(ctx, lastTool, len(r.history)+1)
	defer span.End()

	queryCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	scores, err := r.scorer.Score(queryCtx, lastTool)
	if err != nil {
		tracing.RecordError(span, err)
		r.metrics.ObserveStep(storage.KindOf(err).String())
		return nil, fmt.Errorf("step %q: %w", lastTool, err)
	}

	next := r.weights.Clone()
	next.DecayAll(r.alpha)
	for _, s := range scores {
		if !next.Blend(s.Tool, (1-r.alpha)*s.Score) {
			r.logger.Warn("scored tool is not in the session catalog",
				zap.String("tool", s.Tool),
				zap.String("last_tool", lastTool),
			)
		}
	}

	r.weights = next
	r.history = append(r.history, lastTool)

	result := metrics.ResultOK
	if len(scores) == 0 {
		result = metrics.ResultEmpty
	}
	r.metrics.ObserveStep(result)

	recs := r.weights.TopK(r.limit, lastTool)
	r.logger.Debug("step",
		zap.String("tool", lastTool),
		zap.Int("step", len(r.history)),
		zap.Int("scored", len(scores)),
		zap.Int("recommended", len(recs)),
	)

	return recs, nil
}

// Memory returns the k highest weights without excluding any tool.
func (r *SessionRecommender) Memory(k int) []Recommendation {
	return r.weights.TopK(k)
}

// Weights returns a copy of the current weight vector.
func (r *SessionRecommender) Weights() map[string]float64 {
	return r.weights.Snapshot()
}

// History returns the tools passed to successful steps, oldest first.
func (r *SessionRecommender) History() []string {
	out := make([]string, len(r.history))
	copy(out, r.history)
	return out
}

// Steps returns the number of successful steps.
func (r *SessionRecommender) Steps() int { return len(r.history) }

// Alpha returns the decay factor.
func (r *SessionRecommender) Alpha() float64 { return r.alpha }

// Catalog returns the session's tool catalog.
func (r *SessionRecommender) Catalog() *Catalog { return r.catalog }

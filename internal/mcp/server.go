/*
Package mcp exposes session recommendation over the Model Context Protocol.

The server uses stdio transport and exposes six tools:
  - ric_session_start: Open a session over the current tool catalog
  - ric_session_step: Record the tool just run and get recommendations
  - ric_session_memory: Show a session's highest weights and history
  - ric_session_end: Discard a session
  - ric_tool_confidence: Raw confidence scores for one tool
  - ric_tool_search: Find catalog tools by partial or misspelled name

Sessions live in memory only and are lost when the server exits.
*/
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/khanglvm/ric/internal/learning"
	"github.com/khanglvm/ric/internal/metrics"
	"github.com/khanglvm/ric/internal/search"
	"github.com/khanglvm/ric/internal/storage"
)

const serverName = "ric"

// Options are the recommendation parameters applied to new sessions.
type Options struct {
	Alpha          float64
	ScoreLimit     int
	RecommendLimit int
	QueryTimeout   time.Duration
	Version        string

	// Limiter, when set, throttles confidence queries across all sessions.
	Limiter *rate.Limiter
}

// Server represents the ric MCP server.
type Server struct {
	store    storage.GraphStore
	scorer   *learning.ConfidenceScorer
	indexer  *search.Indexer
	sessions *registry
	opts     Options
	logger   *zap.Logger
	metrics  *metrics.Metrics

	server *mcp.Server
}

// NewServer creates a server querying store. The tool catalog is read once
// here for search; each session reads it again when it starts.
func NewServer(ctx context.Context, store storage.GraphStore, opts Options, logger *zap.Logger, m *metrics.Metrics) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mcp")

	scorer, err := learning.NewConfidenceScorer(store,
		learning.WithScoreLimit(opts.ScoreLimit),
		learning.WithRateLimiter(opts.Limiter),
		learning.WithScorerLogger(logger),
		learning.WithScorerMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	tools, err := store.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tool catalog: %w", err)
	}

	indexer, err := search.NewIndexer()
	if err != nil {
		return nil, err
	}
	if err := indexer.IndexTools(tools); err != nil {
		indexer.Close()
		return nil, err
	}

	s := &Server{
		store:    store,
		scorer:   scorer,
		indexer:  indexer,
		sessions: newRegistry(),
		opts:     opts,
		logger:   logger,
		metrics:  m,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: opts.Version,
	}, nil)
	s.registerTools()

	logger.Info("mcp server ready", zap.Int("tools", len(tools)), zap.String("store", store.Name()))
	return s, nil
}

// Run serves MCP over stdio until ctx is canceled or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close releases the search index. The store is owned by the caller.
func (s *Server) Close() error {
	return s.indexer.Close()
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "ric_session_start",
		Description: "Start a recommendation session. Returns a session_id to pass to ric_session_step. " +
			"alpha (0-1, default from server config) is the share of earlier evidence kept at each step.",
	}, s.handleSessionStart)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "ric_session_step",
		Description: "Record the tool the user just ran in a session and get the tools most likely to come next. " +
			"The tool just run is never recommended. On a store error the session is unchanged and the step can be retried.",
	}, s.handleSessionStep)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ric_session_memory",
		Description: "Show a session's highest weights, including the last tool, and the tools stepped so far.",
	}, s.handleSessionMemory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ric_session_end",
		Description: "End a session and discard its state.",
	}, s.handleSessionEnd)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ric_tool_confidence",
		Description: "Confidence scores for a tool: the share of historical sessions using it that also used each other tool.",
	}, s.handleToolConfidence)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ric_tool_search",
		Description: "Search the tool catalog by partial or misspelled name.",
	}, s.handleToolSearch)
}

// SessionStartArgs defines input for ric_session_start.
type SessionStartArgs struct {
	Alpha *float64 `json:"alpha,omitempty" jsonschema:"Decay factor in [0, 1]; omit for the server default"`
}

// SessionStartResult is returned by ric_session_start.
type SessionStartResult struct {
	SessionID string  `json:"session_id"`
	Alpha     float64 `json:"alpha"`
	Tools     int     `json:"tools"`
}

func (s *Server) handleSessionStart(ctx context.Context, _ *mcp.CallToolRequest, args SessionStartArgs) (*mcp.CallToolResult, SessionStartResult, error) {
	alpha := s.opts.Alpha
	if args.Alpha != nil {
		alpha = *args.Alpha
	}

	tools, err := s.store.ListTools(ctx)
	if err != nil {
		return nil, SessionStartResult{}, toolError("load tool catalog", err)
	}
	catalog, err := learning.NewCatalog(tools)
	if err != nil {
		return nil, SessionStartResult{}, fmt.Errorf("tool catalog: %w", err)
	}

	rec, err := learning.NewSessionRecommender(s.scorer, catalog,
		learning.WithAlpha(alpha),
		learning.WithRecommendLimit(s.opts.RecommendLimit),
		learning.WithQueryTimeout(s.opts.QueryTimeout),
		learning.WithLogger(s.logger),
		learning.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, SessionStartResult{}, err
	}

	sess := s.sessions.open(rec)
	s.metrics.SessionOpened()
	s.logger.Info("session started", zap.String("session", sess.id), zap.Float64("alpha", alpha))

	return nil, SessionStartResult{SessionID: sess.id, Alpha: alpha, Tools: catalog.Len()}, nil
}

// SessionStepArgs defines input for ric_session_step.
type SessionStepArgs struct {
	SessionID string `json:"session_id" jsonschema:"Session id from ric_session_start"`
	Tool      string `json:"tool" jsonschema:"Id of the tool the user just ran, e.g. FastQC"`
}

// SessionStepResult is returned by ric_session_step.
type SessionStepResult struct {
	SessionID       string                    `json:"session_id"`
	Step            int                       `json:"step"`
	Tool            string                    `json:"tool"`
	Recommendations []learning.Recommendation `json:"recommendations"`
	// DidYouMean is set when tool is not in the catalog.
	DidYouMean []string `json:"did_you_mean,omitempty"`
}

func (s *Server) handleSessionStep(ctx context.Context, _ *mcp.CallToolRequest, args SessionStepArgs) (*mcp.CallToolResult, SessionStepResult, error) {
	if args.Tool == "" {
		return nil, SessionStepResult{}, errors.New("tool is required")
	}
	sess, ok := s.sessions.get(args.SessionID)
	if !ok {
		return nil, SessionStepResult{}, fmt.Errorf("unknown session %q", args.SessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	recs, err := sess.rec.Step(ctx, args.Tool)
	if err != nil {
		return nil, SessionStepResult{}, toolError("step", err)
	}

	out := SessionStepResult{
		SessionID:       sess.id,
		Step:            sess.rec.Steps(),
		Tool:            args.Tool,
		Recommendations: recs,
	}
	if !sess.rec.Catalog().Contains(args.Tool) {
		out.DidYouMean = s.suggest(args.Tool)
	}
	return nil, out, nil
}

// SessionMemoryArgs defines input for ric_session_memory.
type SessionMemoryArgs struct {
	SessionID string `json:"session_id" jsonschema:"Session id from ric_session_start"`
	K         int    `json:"k,omitempty" jsonschema:"Number of weights to return; defaults to the recommendation limit"`
}

// SessionMemoryResult is returned by ric_session_memory.
type SessionMemoryResult struct {
	SessionID string                    `json:"session_id"`
	Memory    []learning.Recommendation `json:"memory"`
	History   []string                  `json:"history"`
	Started   time.Time                 `json:"started"`
}

func (s *Server) handleSessionMemory(_ context.Context, _ *mcp.CallToolRequest, args SessionMemoryArgs) (*mcp.CallToolResult, SessionMemoryResult, error) {
	sess, ok := s.sessions.get(args.SessionID)
	if !ok {
		return nil, SessionMemoryResult{}, fmt.Errorf("unknown session %q", args.SessionID)
	}

	k := args.K
	if k <= 0 {
		k = s.opts.RecommendLimit
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return nil, SessionMemoryResult{
		SessionID: sess.id,
		Memory:    sess.rec.Memory(k),
		History:   sess.rec.History(),
		Started:   sess.created,
	}, nil
}

// SessionEndArgs defines input for ric_session_end.
type SessionEndArgs struct {
	SessionID string `json:"session_id" jsonschema:"Session id from ric_session_start"`
}

// SessionEndResult is returned by ric_session_end.
type SessionEndResult struct {
	SessionID string `json:"session_id"`
	Ended     bool   `json:"ended"`
}

func (s *Server) handleSessionEnd(_ context.Context, _ *mcp.CallToolRequest, args SessionEndArgs) (*mcp.CallToolResult, SessionEndResult, error) {
	ended := s.sessions.close(args.SessionID)
	if ended {
		s.metrics.SessionClosed()
		s.logger.Info("session ended", zap.String("session", args.SessionID))
	}
	return nil, SessionEndResult{SessionID: args.SessionID, Ended: ended}, nil
}

// ToolConfidenceArgs defines input for ric_tool_confidence.
type ToolConfidenceArgs struct {
	Tool string `json:"tool" jsonschema:"Tool id to score against"`
}

// ToolConfidenceResult is returned by ric_tool_confidence.
type ToolConfidenceResult struct {
	Tool   string              `json:"tool"`
	Scores []storage.ToolScore `json:"scores"`
}

func (s *Server) handleToolConfidence(ctx context.Context, _ *mcp.CallToolRequest, args ToolConfidenceArgs) (*mcp.CallToolResult, ToolConfidenceResult, error) {
	if args.Tool == "" {
		return nil, ToolConfidenceResult{}, errors.New("tool is required")
	}

	if s.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.QueryTimeout)
		defer cancel()
	}

	scores, err := s.scorer.Score(ctx, args.Tool)
	if err != nil {
		return nil, ToolConfidenceResult{}, toolError("score", err)
	}
	return nil, ToolConfidenceResult{Tool: args.Tool, Scores: scores}, nil
}

// ToolSearchArgs defines input for ric_tool_search.
type ToolSearchArgs struct {
	Query string `json:"query" jsonschema:"Partial or approximate tool name"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results (default 5)"`
}

// ToolSearchResult is returned by ric_tool_search.
type ToolSearchResult struct {
	Suggestions []search.Suggestion `json:"suggestions"`
}

func (s *Server) handleToolSearch(_ context.Context, _ *mcp.CallToolRequest, args ToolSearchArgs) (*mcp.CallToolResult, ToolSearchResult, error) {
	results, err := s.indexer.Suggest(args.Query, args.Limit)
	if err != nil {
		return nil, ToolSearchResult{}, err
	}
	return nil, ToolSearchResult{Suggestions: results}, nil
}

// suggest returns up to three catalog ids close to tool.
func (s *Server) suggest(tool string) []string {
	results, err := s.indexer.Suggest(tool, 3)
	if err != nil {
		s.logger.Debug("suggest failed", zap.String("tool", tool), zap.Error(err))
		return nil
	}
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Tool)
	}
	return ids
}

// toolError annotates store errors with whether the call can be retried.
func toolError(op string, err error) error {
	if storage.IsRetryable(err) {
		return fmt.Errorf("%s failed (retryable): %w", op, err)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

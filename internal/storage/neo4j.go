package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// cypherConfidenceQuery is the traversal behind ConfidenceScores. Sessions
// are collected distinctly before counting joint occurrences.
const cypherConfidenceQuery = `
WITH $lastToolId AS lastToolId
MATCH (lastTool:Tool {id: lastToolId})
MATCH (lastTool)<-[:EXECUTED]-(:Job)-[:IN_SESSION]->(s:Session)
WITH COLLECT(DISTINCT s) AS sessionsWithLastTool, lastTool
WITH size(sessionsWithLastTool) AS lastToolSessionCount, sessionsWithLastTool, lastTool
UNWIND sessionsWithLastTool AS s
MATCH (s)<-[:IN_SESSION]-(:Job)-[:EXECUTED]->(otherTool:Tool)
WHERE otherTool <> lastTool
WITH lastToolSessionCount, otherTool, count(DISTINCT s) AS jointSessionCount
RETURN otherTool.id AS recommendedTool,
       toFloat(jointSessionCount) / lastToolSessionCount AS confidenceScore
ORDER BY confidenceScore DESC, recommendedTool ASC
LIMIT $limit
`

const cypherListTools = `MATCH (t:Tool) RETURN t.id AS toolId ORDER BY toolId ASC`

// Neo4jConfig holds connection parameters for a Neo4j (or Aura) instance.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
}

// Neo4jStore queries the event graph through the Neo4j driver.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewNeo4jStore creates a driver and verifies connectivity.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig, logger *zap.Logger) (*Neo4jStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, newStoreError(ctx, BackendNeo4j, "connect", KindUnavailable, err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, newStoreError(ctx, BackendNeo4j, "connect", KindUnavailable, err)
	}

	logger.Debug("connected to neo4j", zap.String("uri", cfg.URI), zap.String("database", cfg.Database))

	return &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
		logger:   logger.Named("neo4j"),
	}, nil
}

// Name implements GraphStore.
func (s *Neo4jStore) Name() string { return BackendNeo4j }

// ConfidenceScores implements GraphStore.
func (s *Neo4jStore) ConfidenceScores(ctx context.Context, lastToolID string, limit int) ([]ToolScore, error) {
	const op = "confidence_scores"

	result, err := neo4j.ExecuteQuery(ctx, s.driver, cypherConfidenceQuery,
		map[string]any{
			"lastToolId": lastToolID,
			"limit":      int64(limit),
		},
		neo4j.EagerResultTransformer,
		s.queryOptions(neo4j.ExecuteQueryWithReadersRouting())...,
	)
	if err != nil {
		return nil, s.classify(ctx, op, err)
	}

	scores := make([]ToolScore, 0, len(result.Records))
	for _, record := range result.Records {
		tool, _, err := neo4j.GetRecordValue[string](record, "recommendedTool")
		if err != nil {
			return nil, newStoreError(ctx, BackendNeo4j, op, KindQuery, err)
		}
		score, _, err := neo4j.GetRecordValue[float64](record, "confidenceScore")
		if err != nil {
			return nil, newStoreError(ctx, BackendNeo4j, op, KindQuery, err)
		}
		scores = append(scores, ToolScore{Tool: tool, Score: score})
	}

	return scores, nil
}

// ListTools implements GraphStore.
func (s *Neo4jStore) ListTools(ctx context.Context) ([]string, error) {
	const op = "list_tools"

	result, err := neo4j.ExecuteQuery(ctx, s.driver, cypherListTools, nil,
		neo4j.EagerResultTransformer,
		s.queryOptions(neo4j.ExecuteQueryWithReadersRouting())...,
	)
	if err != nil {
		return nil, s.classify(ctx, op, err)
	}

	tools := make([]string, 0, len(result.Records))
	for _, record := range result.Records {
		id, isNil, err := neo4j.GetRecordValue[string](record, "toolId")
		if err != nil {
			return nil, newStoreError(ctx, BackendNeo4j, op, KindQuery, err)
		}
		if isNil {
			continue
		}
		tools = append(tools, id)
	}
	return tools, nil
}

// Load implements Loader using parameterized MERGE statements, so a dataset
// can be loaded repeatedly without duplicating nodes or relationships.
func (s *Neo4jStore) Load(ctx context.Context, ds *Dataset) error {
	const op = "load"

	for _, stmt := range loadStatements(ds) {
		if _, err := neo4j.ExecuteQuery(ctx, s.driver, stmt.query, stmt.params,
			neo4j.EagerResultTransformer,
			s.queryOptions(neo4j.ExecuteQueryWithWritersRouting())...,
		); err != nil {
			return s.classify(ctx, op, fmt.Errorf("%s: %w", stmt.name, err))
		}
	}

	s.logger.Info("dataset loaded",
		zap.Int("tools", len(ds.Tools)),
		zap.Int("users", len(ds.Users)),
		zap.Int("sessions", len(ds.Sessions)),
		zap.Int("jobs", ds.JobCount()),
	)
	return nil
}

// Close implements GraphStore.
func (s *Neo4jStore) Close(ctx context.Context) error {
	if err := s.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j driver: %w", err)
	}
	return nil
}

func (s *Neo4jStore) queryOptions(routing neo4j.ExecuteQueryConfigurationOption) []neo4j.ExecuteQueryConfigurationOption {
	opts := []neo4j.ExecuteQueryConfigurationOption{routing}
	if s.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.database))
	}
	return opts
}

// classify maps driver errors onto the store error kinds.
func (s *Neo4jStore) classify(ctx context.Context, op string, err error) error {
	kind := KindQuery

	var dbErr *neo4j.Neo4jError
	switch {
	case neo4j.IsConnectivityError(err):
		kind = KindUnavailable
	case errors.As(err, &dbErr) && strings.HasPrefix(dbErr.Code, "Neo.ClientError.Security."):
		kind = KindUnavailable
	case errors.As(err, &dbErr) && strings.HasPrefix(dbErr.Code, "Neo.TransientError.General.DatabaseUnavailable"):
		kind = KindUnavailable
	}

	return newStoreError(ctx, BackendNeo4j, op, kind, err)
}

type cypherStatement struct {
	name   string
	query  string
	params map[string]any
}

// loadStatements batches the dataset into UNWIND statements.
func loadStatements(ds *Dataset) []cypherStatement {
	tools := make([]any, 0, len(ds.Tools))
	for _, id := range ds.Tools {
		tools = append(tools, id)
	}
	users := make([]any, 0, len(ds.Users))
	for _, id := range ds.Users {
		users = append(users, id)
	}

	sessions := make([]any, 0, len(ds.Sessions))
	jobs := make([]any, 0, ds.JobCount())
	precedes := make([]any, 0, ds.JobCount())
	for _, session := range ds.Sessions {
		sessions = append(sessions, map[string]any{"id": session.ID, "userId": session.UserID})
		for i, job := range session.Jobs {
			jobs = append(jobs, map[string]any{
				"id":        job.ID,
				"sessionId": session.ID,
				"toolId":    job.ToolID,
				"timestamp": job.Timestamp.UTC(),
			})
			if i > 0 {
				precedes = append(precedes, map[string]any{"prev": session.Jobs[i-1].ID, "next": job.ID})
			}
		}
	}

	return []cypherStatement{
		{
			name:   "platform",
			query:  `MERGE (:Galaxy {name: $name})`,
			params: map[string]any{"name": ds.Platform},
		},
		{
			name: "tools",
			query: `MATCH (g:Galaxy {name: $platform})
UNWIND $tools AS toolId
MERGE (t:Tool {id: toolId})
MERGE (t)-[:IS_PART_OF]->(g)`,
			params: map[string]any{"platform": ds.Platform, "tools": tools},
		},
		{
			name:   "users",
			query:  `UNWIND $users AS userId MERGE (:User {id: userId})`,
			params: map[string]any{"users": users},
		},
		{
			name: "sessions",
			query: `UNWIND $sessions AS row
MATCH (u:User {id: row.userId})
MERGE (s:Session {id: row.id})
MERGE (s)-[:BELONGS_TO]->(u)`,
			params: map[string]any{"sessions": sessions},
		},
		{
			name: "jobs",
			query: `UNWIND $jobs AS row
MATCH (s:Session {id: row.sessionId})
MATCH (t:Tool {id: row.toolId})
MERGE (j:Job {id: row.id})
SET j.timestamp = row.timestamp
MERGE (j)-[:IN_SESSION]->(s)
MERGE (j)-[:EXECUTED]->(t)`,
			params: map[string]any{"jobs": jobs},
		},
		{
			name: "precedes",
			query: `UNWIND $pairs AS row
MATCH (prev:Job {id: row.prev}), (curr:Job {id: row.next})
MERGE (prev)-[:PRECEDES]->(curr)`,
			params: map[string]any{"pairs": precedes},
		},
	}
}

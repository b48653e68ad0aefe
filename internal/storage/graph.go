package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// confidenceQuery computes, for every tool sharing a session with the last
// tool, the share of the last tool's sessions in which it appears. Sessions
// are counted distinctly on both sides.
const confidenceQuery = `
	WITH last_sessions AS (
		SELECT DISTINCT session_id FROM jobs WHERE tool_id = ?
	),
	total AS (
		SELECT COUNT(*) AS n FROM last_sessions
	)
	SELECT j.tool_id AS recommended_tool,
	       CAST(COUNT(DISTINCT j.session_id) AS REAL) / total.n AS confidence_score
	FROM jobs j
	JOIN last_sessions ls ON ls.session_id = j.session_id
	CROSS JOIN total
	WHERE j.tool_id <> ?
	GROUP BY j.tool_id
	ORDER BY confidence_score DESC, recommended_tool ASC
	LIMIT ?
`

// ConfidenceScores implements GraphStore.
func (s *SQLiteStore) ConfidenceScores(ctx context.Context, lastToolID string, limit int) ([]ToolScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const op = "confidence_scores"
	db, err := s.handle(ctx, op)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, confidenceQuery, lastToolID, lastToolID, limit)
	if err != nil {
		return nil, newStoreError(ctx, BackendSQLite, op, KindQuery, err)
	}
	defer rows.Close()

	scores := []ToolScore{}
	for rows.Next() {
		var row ToolScore
		if err := rows.Scan(&row.Tool, &row.Score); err != nil {
			return nil, newStoreError(ctx, BackendSQLite, op, KindQuery, err)
		}
		scores = append(scores, row)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError(ctx, BackendSQLite, op, KindQuery, err)
	}

	return scores, nil
}

// ListTools implements GraphStore.
func (s *SQLiteStore) ListTools(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const op = "list_tools"
	db, err := s.handle(ctx, op)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT id FROM tools ORDER BY id ASC")
	if err != nil {
		return nil, newStoreError(ctx, BackendSQLite, op, KindQuery, err)
	}
	defer rows.Close()

	tools := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, newStoreError(ctx, BackendSQLite, op, KindQuery, err)
		}
		tools = append(tools, id)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError(ctx, BackendSQLite, op, KindQuery, err)
	}
	return tools, nil
}

// Load implements Loader. The whole dataset is written in one transaction.
func (s *SQLiteStore) Load(ctx context.Context, ds *Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "load"
	db, err := s.handle(ctx, op)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return newStoreError(ctx, BackendSQLite, op, KindQuery, err)
	}

	if err := loadDataset(ctx, tx, ds); err != nil {
		_ = tx.Rollback()
		return newStoreError(ctx, BackendSQLite, op, KindQuery, err)
	}

	if err := tx.Commit(); err != nil {
		return newStoreError(ctx, BackendSQLite, op, KindQuery, err)
	}
	return nil
}

func loadDataset(ctx context.Context, tx *sql.Tx, ds *Dataset) error {
	var platform any
	if ds.Platform != "" {
		platform = ds.Platform
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO platforms (name) VALUES (?)", ds.Platform); err != nil {
			return fmt.Errorf("platform %s: %w", ds.Platform, err)
		}
	}

	for _, id := range ds.Tools {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO tools (id, platform) VALUES (?, ?)", id, platform); err != nil {
			return fmt.Errorf("tool %s: %w", id, err)
		}
	}

	for _, id := range ds.Users {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO users (id) VALUES (?)", id); err != nil {
			return fmt.Errorf("user %s: %w", id, err)
		}
	}

	for _, session := range ds.Sessions {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO sessions (id, user_id) VALUES (?, ?)", session.ID, session.UserID,
		); err != nil {
			return fmt.Errorf("session %s: %w", session.ID, err)
		}

		prev := ""
		for _, job := range session.Jobs {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO tools (id, platform) VALUES (?, ?)", job.ToolID, platform,
			); err != nil {
				return fmt.Errorf("tool %s: %w", job.ToolID, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO jobs (id, session_id, tool_id, timestamp) VALUES (?, ?, ?, ?)",
				job.ID, session.ID, job.ToolID, job.Timestamp.UTC().Format(time.RFC3339Nano),
			); err != nil {
				return fmt.Errorf("job %s: %w", job.ID, err)
			}
			if prev != "" {
				if _, err := tx.ExecContext(ctx,
					"INSERT OR IGNORE INTO job_precedes (prev_job_id, next_job_id) VALUES (?, ?)", prev, job.ID,
				); err != nil {
					return fmt.Errorf("precedes %s->%s: %w", prev, job.ID, err)
				}
			}
			prev = job.ID
		}
	}

	return nil
}

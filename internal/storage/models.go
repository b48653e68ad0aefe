/*
Package storage provides data models for the historical event graph.

These models describe confidence query rows and the synthetic datasets used
to populate a store.
*/
package storage

import "time"

// ToolScore is one row of a confidence query.
type ToolScore struct {
	// Tool is the recommended tool id.
	Tool string `json:"tool"`

	// Score is the confidence score in [0, 1].
	Score float64 `json:"score"`
}

// Dataset is a write-once batch of historical graph entities.
type Dataset struct {
	// Platform is the name of the platform node every tool IS_PART_OF.
	Platform string `json:"platform"`

	// Tools lists every tool id.
	Tools []string `json:"tools"`

	// Users lists every user id.
	Users []string `json:"users"`

	// Sessions lists sessions with their ordered jobs.
	Sessions []Session `json:"sessions"`
}

// Session is one continuous interaction of a user.
type Session struct {
	// ID is the session id.
	ID string `json:"id"`

	// UserID is the user the session BELONGS_TO.
	UserID string `json:"user_id"`

	// Jobs are ordered by timestamp; consecutive jobs are linked by PRECEDES.
	Jobs []Job `json:"jobs"`
}

// Job is one execution of a tool inside a session.
type Job struct {
	// ID is the job id.
	ID string `json:"id"`

	// ToolID is the tool the job EXECUTED.
	ToolID string `json:"tool_id"`

	// Timestamp is when the job ran.
	Timestamp time.Time `json:"timestamp"`
}

// JobCount returns the number of jobs across all sessions.
func (d *Dataset) JobCount() int {
	n := 0
	for _, s := range d.Sessions {
		n += len(s.Jobs)
	}
	return n
}

package storage

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// WriteCypher renders ds as a standalone Cypher script of MERGE statements.
// The script can be pasted into a Neo4j browser or piped to cypher-shell
// and produces the same graph as Neo4jStore.Load.
func WriteCypher(w io.Writer, ds *Dataset) error {
	bw := bufio.NewWriter(w)

	line := func(format string, args ...any) {
		fmt.Fprintf(bw, format+"\n", args...)
	}

	platform := cypherString(ds.Platform)

	line("// Platform")
	line("MERGE (:Galaxy {name: %s});", platform)
	line("")

	line("// Tools")
	for _, id := range ds.Tools {
		line("MATCH (g:Galaxy {name: %s}) MERGE (t:Tool {id: %s}) MERGE (t)-[:IS_PART_OF]->(g);",
			platform, cypherString(id))
	}
	line("")

	line("// Users")
	for _, id := range ds.Users {
		line("MERGE (:User {id: %s});", cypherString(id))
	}
	line("")

	line("// Sessions and jobs")
	for _, session := range ds.Sessions {
		sid := cypherString(session.ID)
		line("MATCH (u:User {id: %s}) MERGE (s:Session {id: %s}) MERGE (s)-[:BELONGS_TO]->(u);",
			cypherString(session.UserID), sid)

		for i, job := range session.Jobs {
			jid := cypherString(job.ID)
			line("MATCH (s:Session {id: %s}), (t:Tool {id: %s}) "+
				"MERGE (j:Job {id: %s}) SET j.timestamp = datetime(%s) "+
				"MERGE (j)-[:IN_SESSION]->(s) MERGE (j)-[:EXECUTED]->(t);",
				sid, cypherString(job.ToolID), jid,
				cypherString(job.Timestamp.UTC().Format(time.RFC3339)))

			if i > 0 {
				line("MATCH (prev:Job {id: %s}), (curr:Job {id: %s}) MERGE (prev)-[:PRECEDES]->(curr);",
					cypherString(session.Jobs[i-1].ID), jid)
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write cypher script: %w", err)
	}
	return nil
}

var cypherEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// cypherString quotes s as a single-quoted Cypher string literal.
func cypherString(s string) string {
	return "'" + cypherEscaper.Replace(s) + "'"
}

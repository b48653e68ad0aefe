package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/ric/internal/storage"
)

// cliEnvVars are cleared so the host environment cannot leak into tests.
var cliEnvVars = []string{
	"RIC_CONFIG",
	"RIC_LOG_LEVEL",
	"RIC_LOG_FORMAT",
	"RIC_METRICS_ADDR",
	"RIC_STORE__BACKEND",
	"RIC_STORE__QUERY_TIMEOUT",
	"RIC_STORE__SQLITE__PATH",
	"RIC_RECOMMENDER__ALPHA",
	"RIC_RECOMMENDER__SCORE_LIMIT",
	"RIC_RECOMMENDER__RECOMMEND_LIMIT",
	"RIC_STORE__MAX_QPS",
	"RIC_TRACING__ENABLED",
	"NEO4J_URI",
	"NEO4J_USER",
	"NEO4J_PASSWORD",
	"NEO4J_DATABASE",
}

// setupCLIEnv isolates the working directory, HOME and environment, and
// points the sqlite backend at a fresh database. It returns the database path.
func setupCLIEnv(t *testing.T) string {
	t.Helper()

	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	for _, key := range cliEnvVars {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	dbPath := filepath.Join(t.TempDir(), "graph.db")
	t.Setenv("RIC_STORE__BACKEND", storage.BackendSQLite)
	t.Setenv("RIC_STORE__SQLITE__PATH", dbPath)
	t.Setenv("RIC_LOG_LEVEL", "error")
	return dbPath
}

// execute runs the root command with args and captures its output.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	cmd := NewRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// loadFixture writes a small pipeline history into the sqlite store:
//
//	s1: FastQC Trimmomatic MultiQC
//	s2: FastQC Trimmomatic
//	s3: FastQC MultiQC
//	s4: BWA-MEM MultiQC
func loadFixture(t *testing.T, dbPath string) {
	t.Helper()

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	seq := 0
	session := func(id, user string, tools ...string) storage.Session {
		s := storage.Session{ID: id, UserID: user}
		for _, tool := range tools {
			seq++
			s.Jobs = append(s.Jobs, storage.Job{
				ID:        fmt.Sprintf("job_%02d", seq),
				ToolID:    tool,
				Timestamp: base.Add(time.Duration(seq) * time.Minute),
			})
		}
		return s
	}

	ds := &storage.Dataset{
		Platform: "Galaxy Platform",
		Tools:    []string{"BWA-MEM", "FastQC", "MultiQC", "Trimmomatic"},
		Users:    []string{"u1", "u2"},
		Sessions: []storage.Session{
			session("s1", "u1", "FastQC", "Trimmomatic", "MultiQC"),
			session("s2", "u1", "FastQC", "Trimmomatic"),
			session("s3", "u2", "FastQC", "MultiQC"),
			session("s4", "u2", "BWA-MEM", "MultiQC"),
		},
	}

	ctx := context.Background()
	store := storage.NewSQLiteStore(dbPath, zap.NewNop())
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer store.Close(ctx)

	if err := store.Load(ctx, ds); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd()

	if root.Use != "ric" {
		t.Errorf("Expected Use='ric', got %q", root.Use)
	}

	for _, name := range []string{flagConfig, flagLogLevel, flagStore} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("Expected persistent flag --%s", name)
		}
	}

	want := []string{"recommend", "score", "tools", "seed", "serve", "config", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("Expected subcommand %q, got %v (err %v)", name, cmd, err)
		}
	}
}

func TestStoreFlagOverridesConfig(t *testing.T) {
	setupCLIEnv(t)

	_, _, err := execute(t, "tools", "--store", "bogus")
	if err == nil {
		t.Fatal("Expected error for unknown backend")
	}
}

func TestLogLevelFlagIsValidated(t *testing.T) {
	setupCLIEnv(t)

	_, _, err := execute(t, "tools", "--log-level", "loud")
	if err == nil {
		t.Fatal("Expected error for unknown log level")
	}
}

package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/khanglvm/ric/internal/config"
)

func TestConfigInit(t *testing.T) {
	setupCLIEnv(t)
	path := filepath.Join(t.TempDir(), "ric.yaml")

	stdout, _, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	require.Contains(t, stdout, "✓ Wrote "+path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// The written file loads back to the defaults.
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.Default().Recommender, cfg.Recommender)

	_, _, err = execute(t, "config", "init", "--config", path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "--force")

	_, _, err = execute(t, "config", "init", "--config", path, "--force")
	require.NoError(t, err)
	_, err = os.Stat(path + ".bak")
	require.NoError(t, err)
}

func TestConfigInitDefaultPath(t *testing.T) {
	setupCLIEnv(t)

	_, _, err := execute(t, "config", "init")
	require.NoError(t, err)

	path, err := config.DefaultPath()
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestConfigShowRedactsPassword(t *testing.T) {
	setupCLIEnv(t)
	t.Setenv("NEO4J_URI", "neo4j://localhost:7687")
	t.Setenv("NEO4J_USER", "neo4j")
	t.Setenv("NEO4J_PASSWORD", "hunter2")

	stdout, _, err := execute(t, "config", "show")
	require.NoError(t, err)
	require.Contains(t, stdout, "uri: neo4j://localhost:7687")
	require.Contains(t, stdout, redacted)
	require.False(t, strings.Contains(stdout, "hunter2"), "password leaked:\n%s", stdout)
}

func TestConfigShowMissingFile(t *testing.T) {
	setupCLIEnv(t)

	_, _, err := execute(t, "config", "show", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, config.ErrLoadConfig)
}

package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/khanglvm/ric/internal/version"
)

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, stdout, "Version:  "+version.Version)
	require.Contains(t, stdout, "Commit:   "+version.Commit)
}

func TestVersionJSON(t *testing.T) {
	stdout, _, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	require.Equal(t, version.Get(), info)
}

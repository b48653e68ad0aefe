package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecommendCommandFlags(t *testing.T) {
	cmd := NewRecommendCmd()

	if cmd.Use != "recommend [tool...]" {
		t.Errorf("Expected Use='recommend [tool...]', got %q", cmd.Use)
	}
	for _, name := range []string{"alpha", "limit", "memory", "json"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("Expected --%s flag to exist", name)
		}
	}
}

func TestRecommendJSON(t *testing.T) {
	dbPath := setupCLIEnv(t)
	loadFixture(t, dbPath)

	stdout, _, err := execute(t, "recommend", "FastQC", "Trimmomatic", "--json", "--memory", "2")
	require.NoError(t, err)

	var steps []stepOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &steps))
	require.Len(t, steps, 2)

	// FastQC: MultiQC and Trimmomatic each follow it in 2 of 3 sessions.
	first := steps[0]
	require.Equal(t, "FastQC", first.Tool)
	require.True(t, first.Known)
	require.Len(t, first.Recommendations, 3)
	require.Equal(t, "MultiQC", first.Recommendations[0].Tool)
	require.InDelta(t, 0.7*2.0/3.0, first.Recommendations[0].Weight, 1e-9)
	require.Equal(t, "Trimmomatic", first.Recommendations[1].Tool)
	require.Equal(t, "BWA-MEM", first.Recommendations[2].Tool)
	require.Len(t, first.Memory, 2)

	// Trimmomatic: FastQC in 2 of 2 sessions, MultiQC in 1 of 2.
	second := steps[1]
	require.Equal(t, "FastQC", second.Recommendations[0].Tool)
	require.InDelta(t, 0.7, second.Recommendations[0].Weight, 1e-9)
	require.Equal(t, "MultiQC", second.Recommendations[1].Tool)
	require.InDelta(t, 0.3*0.7*2.0/3.0+0.35, second.Recommendations[1].Weight, 1e-9)
	for _, rec := range second.Recommendations {
		require.NotEqual(t, "Trimmomatic", rec.Tool)
	}
}

func TestRecommendAlphaAndLimitFlags(t *testing.T) {
	dbPath := setupCLIEnv(t)
	loadFixture(t, dbPath)

	stdout, _, err := execute(t, "recommend", "FastQC", "--json", "--alpha", "0", "--limit", "1")
	require.NoError(t, err)

	var steps []stepOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &steps))
	require.Len(t, steps[0].Recommendations, 1)
	require.InDelta(t, 2.0/3.0, steps[0].Recommendations[0].Weight, 1e-9)
}

func TestRecommendDefaultSequenceText(t *testing.T) {
	dbPath := setupCLIEnv(t)
	loadFixture(t, dbPath)

	stdout, _, err := execute(t, "recommend")
	require.NoError(t, err)

	for _, want := range []string{
		"Step 1: FastQC",
		"Step 2: Trimmomatic",
		"Step 3: MultiQC",
		"Recommended next:",
		"Session memory:",
	} {
		require.Contains(t, stdout, want)
	}
}

func TestRecommendUnknownToolSuggestsMatches(t *testing.T) {
	dbPath := setupCLIEnv(t)
	loadFixture(t, dbPath)

	stdout, _, err := execute(t, "recommend", "fastqc", "--json")
	require.NoError(t, err)

	var steps []stepOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &steps))
	require.False(t, steps[0].Known)
	require.Contains(t, steps[0].DidYouMean, "FastQC")
	for _, rec := range steps[0].Recommendations {
		require.Zero(t, rec.Weight)
	}

	stdout, _, err = execute(t, "recommend", "fastqc")
	require.NoError(t, err)
	require.True(t, strings.Contains(stdout, "did you mean: FastQC"), stdout)
}

func TestRecommendEmptyStore(t *testing.T) {
	setupCLIEnv(t)

	_, _, err := execute(t, "recommend", "FastQC")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ric seed --load")
}

func TestRecommendRejectsBadAlpha(t *testing.T) {
	dbPath := setupCLIEnv(t)
	loadFixture(t, dbPath)

	_, _, err := execute(t, "recommend", "FastQC", "--alpha", "1.5")
	require.Error(t, err)
}

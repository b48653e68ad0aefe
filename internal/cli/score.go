package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/khanglvm/ric/internal/storage"
)

// NewScoreCmd creates the 'score' command.
func NewScoreCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "score <tool>",
		Short: "Show confidence scores of tools that follow a tool",
		Long: `Print the tools that co-occur with the given tool in historical sessions,
with the share of that tool's sessions that also contain them.

A tool without history prints nothing.`,
		Example: `  ric score FastQC
  ric score BWA-MEM --limit 3 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, args[0], limit, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum tools to show (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runScore(cmd *cobra.Command, tool string, limit int, jsonOutput bool) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer a.closeStore(ctx, store)

	if limit == 0 {
		limit = a.cfg.Recommender.ScoreLimit
	}
	scorer, err := a.newScorer(store, limit)
	if err != nil {
		return err
	}

	if a.cfg.Store.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Store.QueryTimeout)
		defer cancel()
	}

	scores, err := scorer.Score(ctx, tool)
	if err != nil {
		return fmt.Errorf("score %q: %w", tool, err)
	}

	if jsonOutput {
		if scores == nil {
			scores = []storage.ToolScore{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(scores)
	}

	out := cmd.OutOrStdout()
	if len(scores) == 0 {
		fmt.Fprintf(out, "No history for %s.\n", tool)
		return nil
	}

	fmt.Fprintf(out, "Tools run in the same sessions as %s:\n\n", tool)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tCONFIDENCE")
	for _, s := range scores {
		fmt.Fprintf(tw, "%s\t%.4f\n", s.Tool, s.Score)
	}
	return tw.Flush()
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/ric/internal/learning"
	"github.com/khanglvm/ric/internal/search"
	"github.com/khanglvm/ric/internal/storage"
)

// defaultSequence is replayed when no tools are given.
var defaultSequence = []string{"FastQC", "Trimmomatic", "MultiQC"}

// stepOutput is one step of a replayed session in --json mode.
type stepOutput struct {
	Step            int                       `json:"step"`
	Tool            string                    `json:"tool"`
	Known           bool                      `json:"known"`
	DidYouMean      []string                  `json:"did_you_mean,omitempty"`
	Recommendations []learning.Recommendation `json:"recommendations"`
	Memory          []learning.Recommendation `json:"memory"`
}

// NewRecommendCmd creates the 'recommend' command.
func NewRecommendCmd() *cobra.Command {
	var (
		alpha      float64
		limit      int
		memory     int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "recommend [tool...]",
		Short: "Replay a session and print recommendations after each tool",
		Long: `Replay a sequence of tools as one session and print, after each step,
the recommended next tools and the session's strongest weights.

Without arguments the sequence FastQC, Trimmomatic, MultiQC is used.
Tools missing from the catalog are still stepped (their weights only
decay) and reported with close matches.`,
		Example: `  # Replay the default session
  ric recommend

  # Replay a custom session with a stronger memory
  ric recommend BWA-MEM Samtools_sort Picard_MarkDuplicates --alpha 0.6

  # Machine-readable output against the embedded store
  ric recommend FastQC --store sqlite --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = defaultSequence
			}
			var alphaOverride *float64
			if cmd.Flags().Changed("alpha") {
				alphaOverride = &alpha
			}
			return runRecommend(cmd, args, alphaOverride, limit, memory, jsonOutput)
		},
	}

	cmd.Flags().Float64Var(&alpha, "alpha", learning.DefaultAlpha, "decay factor in [0, 1] (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 0, "recommendations per step (default from config)")
	cmd.Flags().IntVar(&memory, "memory", 5, "weights to show as session memory, 0 to hide")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runRecommend(cmd *cobra.Command, tools []string, alpha *float64, limit, memory int, jsonOutput bool) error {
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

	ids, err := store.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tool catalog: %w", err)
	}
	catalog, err := learning.NewCatalog(ids)
	if err != nil {
		if errors.Is(err, learning.ErrEmptyCatalog) {
			return fmt.Errorf("%w\n\n💡 Seed the store first: ric seed --load", err)
		}
		return err
	}

	indexer, err := search.NewIndexer()
	if err != nil {
		return err
	}
	defer indexer.Close()
	if err := indexer.IndexTools(ids); err != nil {
		return err
	}

	scorer, err := a.newScorer(store, a.cfg.Recommender.ScoreLimit)
	if err != nil {
		return err
	}

	if alpha == nil {
		alpha = &a.cfg.Recommender.Alpha
	}
	if limit == 0 {
		limit = a.cfg.Recommender.RecommendLimit
	}

	rec, err := learning.NewSessionRecommender(scorer, catalog,
		learning.WithAlpha(*alpha),
		learning.WithRecommendLimit(limit),
		learning.WithQueryTimeout(a.cfg.Store.QueryTimeout),
		learning.WithLogger(a.logger),
		learning.WithMetrics(a.metrics),
	)
	if err != nil {
		return err
	}

	a.logger.Debug("replaying session",
		zap.Strings("tools", tools),
		zap.Float64("alpha", rec.Alpha()),
		zap.String("store", store.Name()),
	)

	steps := make([]stepOutput, 0, len(tools))
	for i, tool := range tools {
		recs, err := rec.Step(ctx, tool)
		if err != nil {
			if storage.IsRetryable(err) {
				return fmt.Errorf("%w\n\n💡 The store timed out; retry, or raise store.query_timeout", err)
			}
			return err
		}

		out := stepOutput{
			Step:            i + 1,
			Tool:            tool,
			Known:           catalog.Contains(tool),
			Recommendations: recs,
		}
		if memory > 0 {
			out.Memory = rec.Memory(memory)
		}
		if !out.Known {
			out.DidYouMean = suggestTools(indexer, tool, a.logger)
		}

		if !jsonOutput {
			printStep(cmd.OutOrStdout(), out)
		}
		steps = append(steps, out)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(steps)
	}
	return nil
}

// suggestTools returns up to three catalog ids close to tool.
func suggestTools(indexer *search.Indexer, tool string, logger *zap.Logger) []string {
	suggestions, err := indexer.Suggest(tool, 3)
	if err != nil {
		logger.Warn("tool search failed", zap.String("tool", tool), zap.Error(err))
		return nil
	}
	names := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		names = append(names, s.Tool)
	}
	return names
}

func printStep(w io.Writer, out stepOutput) {
	fmt.Fprintf(w, "Step %d: %s\n", out.Step, out.Tool)
	if !out.Known {
		fmt.Fprintf(w, "  ⚠️  %s is not in the catalog", out.Tool)
		if len(out.DidYouMean) > 0 {
			fmt.Fprintf(w, " (did you mean: %s?)", strings.Join(out.DidYouMean, ", "))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "  Recommended next:")
	printRecommendations(w, out.Recommendations)

	if out.Memory != nil {
		fmt.Fprintln(w, "  Session memory:")
		printRecommendations(w, out.Memory)
	}
	fmt.Fprintln(w)
}

func printRecommendations(w io.Writer, recs []learning.Recommendation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, r := range recs {
		fmt.Fprintf(tw, "    %d.\t%s\t%.4f\n", i+1, r.Tool, r.Weight)
	}
	tw.Flush()
}

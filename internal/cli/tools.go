package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khanglvm/ric/internal/search"
)

// NewToolsCmd creates the 'tools' command.
func NewToolsCmd() *cobra.Command {
	var (
		query      string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "tools",
		Aliases: []string{"ls"},
		Short:   "List or search the tool catalog",
		Long: `List every tool in the graph store, or search the catalog by name.

Search matches whole words, prefixes and near misses, so "fastqc",
"haplo" and "trimomatic" all find their tools.`,
		Example: `  ric tools
  ric tools --search samtools
  ric tools --search trimomatic --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTools(cmd, query, limit, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&query, "search", "s", "", "search the catalog instead of listing it")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum search results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runTools(cmd *cobra.Command, query string, limit int, jsonOutput bool) error {
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

	tools, err := store.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}

	out := cmd.OutOrStdout()

	if query == "" {
		if jsonOutput {
			if tools == nil {
				tools = []string{}
			}
			return json.NewEncoder(out).Encode(tools)
		}
		if len(tools) == 0 {
			fmt.Fprintln(out, "No tools in the store.")
			fmt.Fprintln(out, "\nRun 'ric seed --load' to generate a synthetic history.")
			return nil
		}
		fmt.Fprintf(out, "Tools (%d):\n\n", len(tools))
		for _, t := range tools {
			fmt.Fprintf(out, "  • %s\n", t)
		}
		return nil
	}

	indexer, err := search.NewIndexer()
	if err != nil {
		return err
	}
	defer indexer.Close()
	if err := indexer.IndexTools(tools); err != nil {
		return err
	}

	suggestions, err := indexer.Suggest(query, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		if suggestions == nil {
			suggestions = []search.Suggestion{}
		}
		return json.NewEncoder(out).Encode(suggestions)
	}
	if len(suggestions) == 0 {
		fmt.Fprintf(out, "No tools match %q.\n", query)
		return nil
	}
	for _, s := range suggestions {
		fmt.Fprintf(out, "  • %s\n", s.Tool)
	}
	return nil
}

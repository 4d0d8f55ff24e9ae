package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hurou927/pg-relsub/internal/graph"
)

var (
	analyzeFormat string
	failOnCycle   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize the inferred relationship graph",
	Long:  `Infers relationships, then outputs components, dependency order, junction tables and self relations as text, or the whole graph as a Mermaid ER diagram.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cat, pool, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		if pool != nil {
			defer pool.Close()
		}

		g, err := loadGraph(ctx, cat)
		if err != nil {
			return err
		}

		// Include tables without any relationship
		tables, err := cat.Snapshot(ctx, cfg.Schemas)
		if err != nil {
			return fmt.Errorf("listing tables: %w", err)
		}
		for _, t := range tables {
			g.AddTables(t.FullName())
		}

		out := cmd.OutOrStdout()
		switch analyzeFormat {
		case "mermaid":
			err = graph.WriteMermaid(out, g)
		case "text":
			err = graph.WriteText(out, g)
		default:
			return fmt.Errorf("unknown format: %s (supported: mermaid, text)", analyzeFormat)
		}
		if err != nil {
			return err
		}

		if failOnCycle {
			return graph.ValidateCycles(graph.TopoSortAll(g))
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "text", "output format: text or mermaid")
	analyzeCmd.Flags().BoolVar(&failOnCycle, "fail-on-cycle", false, "exit non-zero when foreign keys form a cycle")
	rootCmd.AddCommand(analyzeCmd)
}

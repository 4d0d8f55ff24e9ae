package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hurou927/pg-relsub/internal/output"
	"github.com/hurou927/pg-relsub/internal/plan"
)

var (
	queryPath    string
	planFormat   string
	strict       bool
	ambiguity    string
	dedupe       bool
	allowRevisit bool
	maxDepth     int
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan the subscription filters for a nested query",
	Long: `Reads a nested query (YAML or JSON), resolves every nested relation against the
inferred relationships, and prints the row filters that must be watched to keep
the query result up to date. Many-to-many relations produce filters on their
junction table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := runPlan(cmd)
		if err != nil {
			return err
		}
		format, err := output.ParseFormat(planFormat, output.FormatText, output.FormatJSON, output.FormatYAML, output.FormatSQL)
		if err != nil {
			return err
		}
		return output.NewWriter(cmd.OutOrStdout(), format).WriteFilters(filters)
	},
}

// runPlan loads the query, infers the graph and plans. Flags override the
// planner section of the config when set.
func runPlan(cmd *cobra.Command) ([]plan.SubscriptionFilter, error) {
	ctx := cmd.Context()

	if queryPath == "" {
		return nil, fmt.Errorf("--query is required")
	}
	query, err := plan.LoadQuery(queryPath)
	if err != nil {
		return nil, err
	}

	opts := cfg.PlannerOptions()
	if cmd.Flags().Changed("strict") {
		opts.Strict = strict
	}
	if cmd.Flags().Changed("allow-revisit") {
		opts.AllowRevisit = allowRevisit
	}
	if cmd.Flags().Changed("max-depth") {
		opts.MaxDepth = maxDepth
	}
	if cmd.Flags().Changed("ambiguity") {
		if opts.Ambiguity, err = plan.ParseAmbiguityPolicy(ambiguity); err != nil {
			return nil, err
		}
	}
	opts.Logger = logger

	cat, pool, err := openCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		defer pool.Close()
	}

	g, err := loadGraph(ctx, cat)
	if err != nil {
		return nil, err
	}

	filters, err := plan.New(g, opts).Plan(query)
	if err != nil {
		return nil, fmt.Errorf("planning %s: %w", queryPath, err)
	}
	if dedupe {
		filters = plan.Dedupe(filters)
	}
	return filters, nil
}

func addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&queryPath, "query", "", "path to the nested query (YAML or JSON, required)")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on unresolved relations and ancestor loops instead of skipping them")
	cmd.Flags().StringVar(&ambiguity, "ambiguity", "first", "when a relation matches several relationships: first or error")
	cmd.Flags().BoolVar(&allowRevisit, "allow-revisit", false, "allow nested relations to return to an ancestor table")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum nesting depth (0 uses the default of 32)")
	cmd.Flags().BoolVar(&dedupe, "dedupe", false, "drop repeated filters")
}

func init() {
	addPlanFlags(planCmd)
	planCmd.Flags().StringVar(&planFormat, "format", "text", "output format: text, json, yaml or sql")
	rootCmd.AddCommand(planCmd)
}

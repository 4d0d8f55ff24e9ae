package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hurou927/pg-relsub/internal/db"
	"github.com/hurou927/pg-relsub/internal/probe"
)

var probeDryRun bool

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Count the rows currently matched by each planned filter",
	Long:  `Plans the query like "plan", then runs one count query per filtered table against the live database. With --dry-run the queries are printed instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filters, err := runPlan(cmd)
		if err != nil {
			return err
		}

		var prober *probe.Prober
		if probeDryRun {
			prober = probe.New(nil, logger, 1, true)
		} else {
			if err := cfg.ValidateForDatabase(); err != nil {
				return fmt.Errorf("probe needs a database: %w", err)
			}
			pool, err := db.NewPool(ctx, &cfg.Connection, logger)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer pool.Close()
			prober = probe.New(pool, logger, cfg.Inference.Concurrency, false)
		}

		results, err := prober.Probe(ctx, filters)
		if err != nil {
			return err
		}
		return probe.WriteSummary(cmd.OutOrStdout(), results, probeDryRun)
	},
}

func init() {
	addPlanFlags(probeCmd)
	probeCmd.Flags().BoolVar(&probeDryRun, "dry-run", false, "print the count queries without running them")
	rootCmd.AddCommand(probeCmd)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurou927/pg-relsub/internal/schema"
)

var dumpPath string

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write a catalog snapshot for offline use",
	Long:  `Reads tables, columns, keys and foreign keys of the configured schemas and writes them as YAML. The file can be passed to any other command with --snapshot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cat, pool, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		if pool != nil {
			defer pool.Close()
		}

		tables, err := cat.Snapshot(ctx, cfg.Schemas)
		if err != nil {
			return fmt.Errorf("reading catalog: %w", err)
		}

		if dumpPath == "" || dumpPath == "-" {
			return schema.WriteSnapshot(cmd.OutOrStdout(), tables)
		}

		f, err := os.Create(dumpPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		if err := schema.WriteSnapshot(f, tables); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing output file: %w", err)
		}
		logger.Info("wrote catalog snapshot", zap.Int("tables", len(tables)), zap.String("out", dumpPath))
		return nil
	},
}

func init() {
	dumpCmd.Flags().StringVar(&dumpPath, "out", "", "output file (default stdout)")
	rootCmd.AddCommand(dumpCmd)
}

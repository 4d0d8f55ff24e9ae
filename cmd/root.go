package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurou927/pg-relsub/internal/config"
	"github.com/hurou927/pg-relsub/internal/db"
	"github.com/hurou927/pg-relsub/internal/graph"
	"github.com/hurou927/pg-relsub/internal/logging"
	"github.com/hurou927/pg-relsub/internal/relation"
	"github.com/hurou927/pg-relsub/internal/schema"
)

var (
	cfgPath      string
	snapshotPath string
	logLevel     string
	cfg          *config.Config
	logger       = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "pg-relsub",
	Short: "Infer PostgreSQL relationships and plan subscription filters",
	Long: `pg-relsub reads foreign keys and keys from a PostgreSQL catalog (or a dumped
snapshot), infers many-to-one, one-to-one, one-to-many and many-to-many
relationships, and turns nested queries into the flat list of row filters
that must be watched to keep the query result up to date.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if snapshotPath != "" {
			cfg.Snapshot = snapshotPath
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		logger, err = logging.New(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&snapshotPath, "snapshot", "", "read the catalog from a YAML snapshot instead of a database")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// catalogSource is a Catalog that can also list whole tables.
type catalogSource interface {
	schema.Catalog
	Snapshot(ctx context.Context, schemas []string) ([]schema.Table, error)
}

// openCatalog returns the snapshot catalog when one is configured, otherwise
// a live PostgreSQL catalog. The returned pool is nil for snapshots.
func openCatalog(ctx context.Context) (catalogSource, *pgxpool.Pool, error) {
	if cfg.Snapshot != "" {
		cat, err := schema.LoadSnapshot(cfg.Snapshot)
		if err != nil {
			return nil, nil, fmt.Errorf("loading snapshot: %w", err)
		}
		logger.Debug("using catalog snapshot", zap.String("path", cfg.Snapshot))
		return cat, nil, nil
	}

	if err := cfg.ValidateForDatabase(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w (or pass --snapshot)", err)
	}
	pool, err := db.NewPool(ctx, &cfg.Connection, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	return schema.NewPGCatalog(pool), pool, nil
}

// loadGraph infers relationships for the configured schemas.
func loadGraph(ctx context.Context, cat schema.Catalog) (*graph.Graph, error) {
	rels, err := relation.Infer(ctx, cat, cfg.Schemas,
		relation.WithConcurrency(cfg.Inference.Concurrency),
		relation.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("inferring relationships: %w", err)
	}
	return graph.New(rels), nil
}

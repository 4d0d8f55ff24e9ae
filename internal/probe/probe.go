// Package probe checks a planned filter list against live data by counting
// the rows each table currently has under its filters.
package probe

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hurou927/pg-relsub/internal/output"
	"github.com/hurou927/pg-relsub/internal/plan"
)

// Querier is the subset of pgxpool.Pool used by the prober.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Result is the row count of one table under its filters.
type Result struct {
	Schema string
	Table  string
	Query  string
	Args   []any
	Rows   int64
}

// Prober runs one count query per filtered table.
type Prober struct {
	q           Querier
	log         *zap.Logger
	concurrency int
	dryRun      bool
}

// New creates a new Prober. A dry run only builds the queries.
func New(q Querier, log *zap.Logger, concurrency int, dryRun bool) *Prober {
	if log == nil {
		log = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Prober{q: q, log: log, concurrency: concurrency, dryRun: dryRun}
}

// Probe counts matching rows for each table in filters, in order of the
// table's first appearance.
func (p *Prober) Probe(ctx context.Context, filters []plan.SubscriptionFilter) ([]Result, error) {
	conds, err := output.GroupByTable(filters)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(conds))
	for i, c := range conds {
		results[i] = Result{
			Schema: c.Schema,
			Table:  c.Table,
			Query:  buildCountQuery(c),
			Args:   c.Args,
		}
	}
	if p.dryRun {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range results {
		r := &results[i]
		g.Go(func() error {
			p.log.Debug("probing table", zap.String("query", r.Query), zap.Any("args", r.Args))
			if err := p.q.QueryRow(gctx, r.Query, r.Args...).Scan(&r.Rows); err != nil {
				return fmt.Errorf("probing %s.%s: %w", r.Schema, r.Table, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func buildCountQuery(c output.TableCondition) string {
	return fmt.Sprintf("SELECT count(*) FROM %s WHERE %s", output.QuoteTable(c.Schema, c.Table), c.SQL)
}

// WriteSummary writes one line per result.
func WriteSummary(w io.Writer, results []Result, dryRun bool) error {
	for _, r := range results {
		var err error
		if dryRun {
			_, err = fmt.Fprintf(w, "[probe] %s.%s: %s (args: %v)\n", r.Schema, r.Table, r.Query, r.Args)
		} else {
			_, err = fmt.Fprintf(w, "  %s.%s: %d rows\n", r.Schema, r.Table, r.Rows)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

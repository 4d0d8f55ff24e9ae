package relation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hurou927/pg-relsub/internal/schema"
)

type inferOptions struct {
	concurrency int
	logger      *zap.Logger
}

// Option configures Infer.
type Option func(*inferOptions)

// WithConcurrency bounds the number of concurrent key-constraint reads.
func WithConcurrency(n int) Option {
	return func(o *inferOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger sets the logger used for pipeline diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *inferOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Infer reads the catalog once and returns every relationship touching
// schemas: ManyToOne and OneToOne from the foreign keys, their OneToMany
// inverses, and ManyToMany pairs through junction tables. Any catalog error
// fails the whole call.
func Infer(ctx context.Context, cat schema.Catalog, schemas []string, opts ...Option) ([]Relationship, error) {
	o := inferOptions{concurrency: 4, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	fks, err := cat.ListForeignKeys(ctx, schemas)
	if err != nil {
		return nil, fmt.Errorf("listing foreign keys: %w", asCatalogErr("list foreign keys", err))
	}
	for _, fk := range fks {
		if err := schema.CheckForeignKey(fk); err != nil {
			return nil, &schema.CatalogError{Op: "list foreign keys", Err: err}
		}
	}

	keys, err := loadKeys(ctx, cat, fks, o.concurrency)
	if err != nil {
		return nil, err
	}

	classified := Classify(fks, keys)
	inverses := Invert(classified)
	junctions := DetectJunctions(classified, primaryKeys(keys))

	o.logger.Debug("inferred relationships",
		zap.Strings("schemas", schemas),
		zap.Int("foreign_keys", len(fks)),
		zap.Int("inverses", len(inverses)),
		zap.Int("many_to_many", len(junctions)),
	)

	rels := make([]Relationship, 0, len(classified)+len(inverses)+len(junctions))
	rels = append(rels, classified...)
	rels = append(rels, inverses...)
	rels = append(rels, junctions...)
	Sort(rels)
	return rels, nil
}

// loadKeys fetches key constraints for every distinct FK source table.
func loadKeys(ctx context.Context, cat schema.Catalog, fks []schema.ForeignKey, limit int) (map[string][]schema.KeyConstraint, error) {
	type tableRef struct{ schema, table string }
	var tables []tableRef
	seen := make(map[string]bool)
	for _, fk := range fks {
		if seen[fk.Source()] {
			continue
		}
		seen[fk.Source()] = true
		tables = append(tables, tableRef{fk.SourceSchema, fk.SourceTable})
	}

	var mu sync.Mutex
	keys := make(map[string][]schema.KeyConstraint, len(tables))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, t := range tables {
		g.Go(func() error {
			ks, err := cat.ListKeyConstraints(gctx, t.schema, t.table)
			if err != nil {
				return fmt.Errorf("listing keys of %s.%s: %w", t.schema, t.table, asCatalogErr("list key constraints", err))
			}
			mu.Lock()
			keys[t.schema+"."+t.table] = ks
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}

// asCatalogErr makes sure errors from foreign Catalog implementations still
// match schema.ErrCatalogAccess.
func asCatalogErr(op string, err error) error {
	if schema.IsCatalogAccessErr(err) {
		return err
	}
	return &schema.CatalogError{Op: op, Err: err}
}

func primaryKeys(keys map[string][]schema.KeyConstraint) map[string]schema.ColumnSet {
	pks := make(map[string]schema.ColumnSet, len(keys))
	for name, ks := range keys {
		for _, k := range ks {
			if k.Kind == schema.KeyPrimary {
				pks[name] = k.Columns
				break
			}
		}
	}
	return pks
}

// Sort orders relationships by source schema, source table, constraint
// name, then cardinality and target so output is reproducible.
func Sort(rels []Relationship) {
	sort.SliceStable(rels, func(i, j int) bool {
		return Less(rels[i], rels[j])
	})
}

// Less is the ordering used by Sort.
func Less(a, b Relationship) bool {
	if a.SourceSchema != b.SourceSchema {
		return a.SourceSchema < b.SourceSchema
	}
	if a.SourceTable != b.SourceTable {
		return a.SourceTable < b.SourceTable
	}
	if a.ConstraintName != b.ConstraintName {
		return a.ConstraintName < b.ConstraintName
	}
	if a.Cardinality != b.Cardinality {
		return a.Cardinality < b.Cardinality
	}
	if a.Target() != b.Target() {
		return a.Target() < b.Target()
	}
	return junctionFrom(a) < junctionFrom(b)
}

func junctionFrom(r Relationship) string {
	if r.Junction == nil {
		return ""
	}
	return r.Junction.FromConstraint
}

// Package plan resolves a nested query against the relationship graph and
// produces the flat list of row filters that must be watched to keep the
// query's result up to date.
package plan

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hurou927/pg-relsub/internal/graph"
	"github.com/hurou927/pg-relsub/internal/relation"
	"github.com/hurou927/pg-relsub/internal/schema"
)

// SubscriptionFilter is a row-change condition on one table.
type SubscriptionFilter struct {
	Schema string `json:"schema" yaml:"schema"`
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
	Op     string `json:"op" yaml:"op"`
	Value  any    `json:"value" yaml:"value"`
}

// FullName returns the schema-qualified table name.
func (f SubscriptionFilter) FullName() string {
	return f.Schema + "." + f.Table
}

// AmbiguityPolicy decides what happens when a nested relation matches more
// than one relationship, e.g. two foreign keys between the same tables.
type AmbiguityPolicy string

const (
	// AmbiguityFirst picks the first candidate in graph order: constraint
	// name, then cardinality, then the other table's name.
	AmbiguityFirst AmbiguityPolicy = "first"
	// AmbiguityError fails planning with ErrAmbiguousRelationship.
	AmbiguityError AmbiguityPolicy = "error"
)

// ParseAmbiguityPolicy parses "first" or "error". Empty means "first".
func ParseAmbiguityPolicy(s string) (AmbiguityPolicy, error) {
	switch p := AmbiguityPolicy(s); p {
	case "":
		return AmbiguityFirst, nil
	case AmbiguityFirst, AmbiguityError:
		return p, nil
	}
	return "", fmt.Errorf("unknown ambiguity policy %q (supported: first, error)", s)
}

// DefaultMaxDepth bounds the nesting depth of a query tree.
const DefaultMaxDepth = 32

// Options configure a Planner. The zero value is lenient: unresolved
// relations and relations looping back to an ancestor table are skipped
// together with their subtree, and ambiguous matches take the first candidate.
type Options struct {
	// Strict turns unresolved relations and ancestor loops into errors.
	Strict bool
	// Ambiguity selects the policy for relations with several candidates.
	Ambiguity AmbiguityPolicy
	// AllowRevisit disables the ancestor-path guard; MaxDepth still applies.
	AllowRevisit bool
	// MaxDepth bounds nesting; zero means DefaultMaxDepth.
	MaxDepth int
	// DefaultSchema qualifies a root table given without schema; zero means "public".
	DefaultSchema string
	Logger        *zap.Logger
}

// Planner resolves query trees against one relationship graph. It holds no
// mutable state and may be shared between goroutines.
type Planner struct {
	g    *graph.Graph
	opts Options
	log  *zap.Logger
}

// New returns a Planner over g.
func New(g *graph.Graph, opts Options) *Planner {
	if opts.Ambiguity == "" {
		opts.Ambiguity = AmbiguityFirst
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.DefaultSchema == "" {
		opts.DefaultSchema = "public"
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{g: g, opts: opts, log: log}
}

// Plan validates root and returns the filters covering it and every
// reachable nested node, in depth-first pre-order. Duplicates are kept.
func (p *Planner) Plan(root *QueryNode) ([]SubscriptionFilter, error) {
	if err := root.Validate(); err != nil {
		return nil, err
	}

	schemaName, table := root.Schema, root.Table
	if schemaName == "" {
		schemaName, table = schema.SplitName(root.Table)
		if schemaName == "" {
			schemaName = p.opts.DefaultSchema
		}
	}

	w := &walk{p: p, path: map[string]bool{}}
	if err := w.visit(schemaName, table, root.Filters, root.Nested, 0); err != nil {
		return nil, err
	}
	return w.out, nil
}

type walk struct {
	p    *Planner
	out  []SubscriptionFilter
	path map[string]bool
}

func (w *walk) emit(schemaName, table, column string, f Filter) {
	w.out = append(w.out, SubscriptionFilter{
		Schema: schemaName,
		Table:  table,
		Column: column,
		Op:     f.Op,
		Value:  f.Value,
	})
}

func (w *walk) visit(schemaName, table string, filters []Filter, nested []QueryNode, depth int) error {
	if depth > w.p.opts.MaxDepth {
		return fmt.Errorf("%w: more than %d levels at %s.%s", ErrMaxDepth, w.p.opts.MaxDepth, schemaName, table)
	}

	for _, f := range filters {
		w.emit(schemaName, table, f.Column, f)
	}

	current := schemaName + "." + table
	w.path[current] = true
	defer delete(w.path, current)

	for i := range nested {
		child := &nested[i]
		rel, dir, err := w.resolve(schemaName, table, child)
		if err != nil {
			return err
		}
		if dir == graph.NoMatch {
			continue
		}

		childSchema, childTable := rel.TargetSchema, rel.TargetTable
		if dir == graph.Backward {
			childSchema, childTable = rel.SourceSchema, rel.SourceTable
		}

		if !w.p.opts.AllowRevisit && w.path[childSchema+"."+childTable] {
			if w.p.opts.Strict {
				return fmt.Errorf("%w: %s from %s returns to %s.%s", ErrRelationCycle, child.Relation, current, childSchema, childTable)
			}
			w.p.log.Debug("skipping relation that returns to an ancestor table",
				zap.String("from", current), zap.String("relation", child.Relation))
			continue
		}

		if rel.Cardinality == relation.ManyToMany {
			col := rel.Junction.FromColumns[0]
			if dir == graph.Backward {
				col = rel.Junction.ToColumns[0]
			}
			for _, f := range filters {
				w.emit(rel.Junction.Schema, rel.Junction.Table, col, f)
			}
		} else {
			col := rel.TargetColumns[0]
			if dir == graph.Backward {
				col = rel.SourceColumns[0]
			}
			for _, f := range filters {
				w.emit(childSchema, childTable, col, f)
			}
		}

		if err := w.visit(childSchema, childTable, child.Filters, child.Nested, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// resolve picks the relationship used to reach child from schemaName.table.
// NoMatch with a nil error means the child is skipped.
func (w *walk) resolve(schemaName, table string, child *QueryNode) (relation.Relationship, graph.Direction, error) {
	from := schemaName + "." + table
	cands, dir := w.p.g.Lookup(schemaName, table, child.Relation, child.Constraint)

	switch {
	case len(cands) == 0:
		if w.p.opts.Strict {
			return relation.Relationship{}, graph.NoMatch,
				fmt.Errorf("%w: %q from %s", ErrUnresolvedRelation, child.Relation, from)
		}
		w.p.log.Debug("skipping unresolved relation",
			zap.String("from", from), zap.String("relation", child.Relation))
		return relation.Relationship{}, graph.NoMatch, nil

	case len(cands) > 1:
		names := make([]string, len(cands))
		for i, c := range cands {
			names[i] = c.ConstraintName
		}
		if w.p.opts.Ambiguity == AmbiguityError {
			return relation.Relationship{}, graph.NoMatch,
				fmt.Errorf("%w: %q from %s matches %v; set constraint to choose one",
					ErrAmbiguousRelationship, child.Relation, from, names)
		}
		w.p.log.Debug("ambiguous relation, using first candidate",
			zap.String("from", from), zap.String("relation", child.Relation),
			zap.Strings("candidates", names))
	}

	w.p.log.Debug("resolved relation",
		zap.String("from", from), zap.String("relation", child.Relation),
		zap.String("constraint", cands[0].ConstraintName),
		zap.String("cardinality", string(cands[0].Cardinality)),
		zap.Stringer("direction", dir))
	return cands[0], dir, nil
}

// Dedupe drops repeated filters, keeping the first occurrence.
func Dedupe(filters []SubscriptionFilter) []SubscriptionFilter {
	seen := make(map[string]bool, len(filters))
	var out []SubscriptionFilter
	for _, f := range filters {
		key := fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%#v", f.Schema, f.Table, f.Column, f.Op, f.Value)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

package graph

import (
	"sort"

	"github.com/hurou927/pg-relsub/internal/relation"
	"github.com/hurou927/pg-relsub/internal/schema"
)

// Direction tells how a lookup matched a relationship.
type Direction int

const (
	// NoMatch means no relationship matched.
	NoMatch Direction = iota
	// Forward means the relationship's source is the table looked up from.
	Forward
	// Backward means the relationship's target is the table looked up from.
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	}
	return "none"
}

// Graph is the queryable union of inferred relationships, indexed by
// "schema.table" on both ends.
type Graph struct {
	// Tables holds every table that appears on either end of a relationship.
	Tables map[string]bool

	rels []relation.Relationship

	// from maps source full name -> relationship indexes
	from map[string][]int
	// to maps target full name -> relationship indexes
	to map[string][]int

	// adjacency for undirected connectivity
	Adjacency map[string]map[string]bool
}

// New indexes rels. The input is copied and sorted with relation.Sort.
func New(rels []relation.Relationship) *Graph {
	g := &Graph{
		Tables:    make(map[string]bool),
		rels:      append([]relation.Relationship(nil), rels...),
		from:      make(map[string][]int),
		to:        make(map[string][]int),
		Adjacency: make(map[string]map[string]bool),
	}
	relation.Sort(g.rels)

	for i, r := range g.rels {
		src, dst := r.Source(), r.Target()
		g.addTable(src)
		g.addTable(dst)
		g.from[src] = append(g.from[src], i)
		g.to[dst] = append(g.to[dst], i)
		if src != dst {
			g.Adjacency[src][dst] = true
			g.Adjacency[dst][src] = true
		}
	}

	for _, idx := range g.to {
		g.sortBySource(idx)
	}

	return g
}

func (g *Graph) addTable(name string) {
	if g.Tables[name] {
		return
	}
	g.Tables[name] = true
	g.Adjacency[name] = make(map[string]bool)
}

// sortBySource orders an index list by constraint name, then cardinality,
// then the relationship's source table. Lists in g.from are already in that
// order because g.rels is sorted by source first.
func (g *Graph) sortBySource(idx []int) {
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := g.rels[idx[i]], g.rels[idx[j]]
		if a.ConstraintName != b.ConstraintName {
			return a.ConstraintName < b.ConstraintName
		}
		if a.Cardinality != b.Cardinality {
			return a.Cardinality < b.Cardinality
		}
		return a.Source() < b.Source()
	})
}

// Relationships returns every relationship, grouped by source schema/table
// then constraint name. Cardinalities narrow the result when given.
func (g *Graph) Relationships(cards ...relation.Cardinality) []relation.Relationship {
	return relation.Filter(append([]relation.Relationship(nil), g.rels...), cards...)
}

// From returns the relationships whose source is schemaName.table.
func (g *Graph) From(schemaName, table string) []relation.Relationship {
	return g.collect(g.from[schemaName+"."+table])
}

// To returns the relationships whose target is schemaName.table.
func (g *Graph) To(schemaName, table string) []relation.Relationship {
	return g.collect(g.to[schemaName+"."+table])
}

func (g *Graph) collect(idx []int) []relation.Relationship {
	out := make([]relation.Relationship, len(idx))
	for i, n := range idx {
		out[i] = g.rels[n]
	}
	return out
}

// Lookup returns the relationships linking schemaName.table to the table
// named by relationName ("table" or "schema.table"). Relationships whose
// source is the given table are tried first; only if none match are the
// ones targeting it considered. A non-empty constraint narrows the match to
// that constraint name. Candidates keep the order of From/To.
func (g *Graph) Lookup(schemaName, table, relationName, constraint string) ([]relation.Relationship, Direction) {
	wantSchema, wantTable := schema.SplitName(relationName)

	matches := func(s, t, name string) bool {
		if t != wantTable || (wantSchema != "" && s != wantSchema) {
			return false
		}
		return constraint == "" || name == constraint
	}

	var out []relation.Relationship
	for _, r := range g.From(schemaName, table) {
		if matches(r.TargetSchema, r.TargetTable, r.ConstraintName) {
			out = append(out, r)
		}
	}
	if len(out) > 0 {
		return out, Forward
	}

	for _, r := range g.To(schemaName, table) {
		if matches(r.SourceSchema, r.SourceTable, r.ConstraintName) {
			out = append(out, r)
		}
	}
	if len(out) > 0 {
		return out, Backward
	}
	return nil, NoMatch
}

// TableNames returns all table names sorted.
func (g *Graph) TableNames() []string {
	names := make([]string, 0, len(g.Tables))
	for name := range g.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddTables registers tables that may have no relationships, so they show
// up in components and topological order.
func (g *Graph) AddTables(names ...string) {
	for _, name := range names {
		g.addTable(name)
	}
}

// dependencyEdges returns child -> parents following FK direction (the
// ManyToOne and OneToOne records), skipping self relations.
func (g *Graph) dependencyEdges() map[string][]string {
	parents := make(map[string][]string)
	seen := make(map[[2]string]bool)
	for _, r := range g.rels {
		if r.Cardinality != relation.ManyToOne && r.Cardinality != relation.OneToOne {
			continue
		}
		if r.IsSelfRelation {
			continue
		}
		key := [2]string{r.Source(), r.Target()}
		if seen[key] {
			continue
		}
		seen[key] = true
		parents[r.Source()] = append(parents[r.Source()], r.Target())
	}
	return parents
}

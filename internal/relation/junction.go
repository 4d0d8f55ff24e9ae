package relation

import (
	"sort"

	"github.com/hurou927/pg-relsub/internal/schema"
)

// JunctionNameSep joins the two leg constraint names of a ManyToMany record.
const JunctionNameSep = "__"

// DetectJunctions finds tables with two or more ManyToOne legs whose source
// columns all lie inside the table's primary key, and emits a pair of
// ManyToMany relationships (A->B and B->A) for every two such legs.
// primaryKeys maps "schema.table" to the primary key columns.
//
// Only each leg's own columns have to be covered by the key; the key may
// hold extra columns. Tables with three or more legs yield one pair per
// combination.
func DetectJunctions(rels []Relationship, primaryKeys map[string]schema.ColumnSet) []Relationship {
	groups := make(map[string][]Relationship)
	for _, r := range rels {
		if r.Cardinality != ManyToOne {
			continue
		}
		groups[r.Source()] = append(groups[r.Source()], r)
	}

	tables := make([]string, 0, len(groups))
	for name, legs := range groups {
		if len(legs) >= 2 {
			tables = append(tables, name)
		}
	}
	sort.Strings(tables)

	var out []Relationship
	for _, name := range tables {
		pk, ok := primaryKeys[name]
		if !ok || len(pk) == 0 {
			continue
		}
		legs := groups[name]
		sort.SliceStable(legs, func(i, j int) bool { return legs[i].ConstraintName < legs[j].ConstraintName })

		for i := range legs {
			for j := i + 1; j < len(legs); j++ {
				r1, r2 := legs[i], legs[j]
				if r1.ConstraintName >= r2.ConstraintName {
					continue
				}
				if !r1.SourceColumns.SubsetOf(pk) || !r2.SourceColumns.SubsetOf(pk) {
					continue
				}
				out = append(out, manyToMany(r1, r2), manyToMany(r2, r1))
			}
		}
	}
	return out
}

// manyToMany builds the from->to record of the pair. The constraint name is
// always built from the lexically smaller leg first so both directions share
// one identity.
func manyToMany(from, to Relationship) Relationship {
	first, second := from.ConstraintName, to.ConstraintName
	if second < first {
		first, second = second, first
	}
	return Relationship{
		SourceSchema:   from.TargetSchema,
		SourceTable:    from.TargetTable,
		SourceColumns:  from.TargetColumns,
		TargetSchema:   to.TargetSchema,
		TargetTable:    to.TargetTable,
		TargetColumns:  to.TargetColumns,
		Cardinality:    ManyToMany,
		ConstraintName: first + JunctionNameSep + second,
		IsSelfRelation: from.Target() == to.Target(),
		Junction: &Junction{
			Schema:         from.SourceSchema,
			Table:          from.SourceTable,
			FromConstraint: from.ConstraintName,
			FromColumns:    from.SourceColumns,
			ToConstraint:   to.ConstraintName,
			ToColumns:      to.SourceColumns,
		},
	}
}

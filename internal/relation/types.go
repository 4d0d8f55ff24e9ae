// Package relation infers typed relationships from foreign key constraints:
// many-to-one and one-to-one edges, their one-to-many inverses, and
// many-to-many edges through junction tables.
package relation

import (
	"fmt"

	"github.com/hurou927/pg-relsub/internal/schema"
)

// Cardinality is the shape of a relationship.
type Cardinality string

const (
	ManyToOne  Cardinality = "many_to_one"
	OneToMany  Cardinality = "one_to_many"
	OneToOne   Cardinality = "one_to_one"
	ManyToMany Cardinality = "many_to_many"
)

// ParseCardinality accepts the snake_case names above.
func ParseCardinality(s string) (Cardinality, error) {
	switch c := Cardinality(s); c {
	case ManyToOne, OneToMany, OneToOne, ManyToMany:
		return c, nil
	}
	return "", fmt.Errorf("unknown cardinality %q", s)
}

// Junction describes the linking table of a many-to-many relationship.
// FromConstraint/FromColumns belong to the junction leg pointing at the
// relationship's source table, To* to the leg pointing at its target.
type Junction struct {
	Schema         string           `json:"schema" yaml:"schema"`
	Table          string           `json:"table" yaml:"table"`
	FromConstraint string           `json:"from_constraint" yaml:"from_constraint"`
	FromColumns    schema.ColumnSet `json:"from_columns" yaml:"from_columns,flow"`
	ToConstraint   string           `json:"to_constraint" yaml:"to_constraint"`
	ToColumns      schema.ColumnSet `json:"to_columns" yaml:"to_columns,flow"`
}

// FullName returns the schema-qualified junction table name.
func (j *Junction) FullName() string {
	return j.Schema + "." + j.Table
}

// Relationship is a directed edge between two tables.
type Relationship struct {
	SourceSchema   string           `json:"source_schema" yaml:"source_schema"`
	SourceTable    string           `json:"source_table" yaml:"source_table"`
	SourceColumns  schema.ColumnSet `json:"source_columns" yaml:"source_columns,flow"`
	TargetSchema   string           `json:"target_schema" yaml:"target_schema"`
	TargetTable    string           `json:"target_table" yaml:"target_table"`
	TargetColumns  schema.ColumnSet `json:"target_columns" yaml:"target_columns,flow"`
	Cardinality    Cardinality      `json:"cardinality" yaml:"cardinality"`
	ConstraintName string           `json:"constraint_name" yaml:"constraint_name"`
	IsSelfRelation bool             `json:"is_self_relation" yaml:"is_self_relation"`
	Junction       *Junction        `json:"junction,omitempty" yaml:"junction,omitempty"`
}

// Source returns the schema-qualified source table name.
func (r Relationship) Source() string {
	return r.SourceSchema + "." + r.SourceTable
}

// Target returns the schema-qualified target table name.
func (r Relationship) Target() string {
	return r.TargetSchema + "." + r.TargetTable
}

func (r Relationship) String() string {
	s := fmt.Sprintf("%s(%v) -> %s(%v) [%s %s]", r.Source(), []string(r.SourceColumns),
		r.Target(), []string(r.TargetColumns), r.Cardinality, r.ConstraintName)
	if r.Junction != nil {
		s += " via " + r.Junction.FullName()
	}
	return s
}

// Filter keeps the relationships with one of the given cardinalities.
// No cardinalities means no filtering.
func Filter(rels []Relationship, cards ...Cardinality) []Relationship {
	if len(cards) == 0 {
		return rels
	}
	keep := make(map[Cardinality]bool, len(cards))
	for _, c := range cards {
		keep[c] = true
	}
	var out []Relationship
	for _, r := range rels {
		if keep[r.Cardinality] {
			out = append(out, r)
		}
	}
	return out
}

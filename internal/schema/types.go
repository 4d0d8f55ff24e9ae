package schema

import (
	"sort"
	"strings"
)

// ColumnSet is an ordered list of column names. Order pairs columns
// positionally with a counterpart set; coverage checks ignore it.
type ColumnSet []string

// Equal reports whether both sets hold the same columns, ignoring order.
func (c ColumnSet) Equal(other ColumnSet) bool {
	if len(c) != len(other) {
		return false
	}
	return c.SubsetOf(other) && other.SubsetOf(c)
}

// SubsetOf reports whether every column of c is present in other.
func (c ColumnSet) SubsetOf(other ColumnSet) bool {
	set := make(map[string]struct{}, len(other))
	for _, col := range other {
		set[col] = struct{}{}
	}
	for _, col := range c {
		if _, ok := set[col]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns a sorted copy of the set.
func (c ColumnSet) Sorted() ColumnSet {
	out := append(ColumnSet(nil), c...)
	sort.Strings(out)
	return out
}

// Column represents a database column.
type Column struct {
	Name     string `yaml:"name"`
	DataType string `yaml:"type,omitempty"` // PostgreSQL type name (e.g. "int4", "text", "bool")
	Nullable bool   `yaml:"nullable,omitempty"`
	OrdPos   int    `yaml:"-"` // ordinal position (1-based)
}

// KeyKind distinguishes primary keys from unique constraints.
type KeyKind string

const (
	KeyPrimary KeyKind = "primary"
	KeyUnique  KeyKind = "unique"
)

// KeyConstraint is a primary or unique key of a table.
type KeyConstraint struct {
	Schema  string    `yaml:"-"`
	Table   string    `yaml:"-"`
	Name    string    `yaml:"name,omitempty"`
	Columns ColumnSet `yaml:"columns,flow"`
	Kind    KeyKind   `yaml:"-"`
}

// ForeignKey represents a foreign key constraint read from the catalog.
type ForeignKey struct {
	Name          string    `yaml:"name"`
	SourceSchema  string    `yaml:"-"`
	SourceTable   string    `yaml:"-"`
	SourceColumns ColumnSet `yaml:"columns,flow"`
	TargetSchema  string    `yaml:"target_schema,omitempty"`
	TargetTable   string    `yaml:"target_table"`
	TargetColumns ColumnSet `yaml:"target_columns,flow"`
	IsSelfRef     bool      `yaml:"-"`
}

// Source returns the schema-qualified source table name.
func (fk ForeignKey) Source() string {
	return fk.SourceSchema + "." + fk.SourceTable
}

// Target returns the schema-qualified target table name.
func (fk ForeignKey) Target() string {
	return fk.TargetSchema + "." + fk.TargetTable
}

// Table represents a database table with its columns, keys, and FKs.
type Table struct {
	Schema      string          `yaml:"schema"`
	Name        string          `yaml:"name"`
	Columns     []Column        `yaml:"columns,omitempty"`
	PrimaryKey  *KeyConstraint  `yaml:"primary_key,omitempty"`
	UniqueKeys  []KeyConstraint `yaml:"unique_keys,omitempty"`
	ForeignKeys []ForeignKey    `yaml:"foreign_keys,omitempty"`
}

// FullName returns schema-qualified table name.
func (t *Table) FullName() string {
	return t.Schema + "." + t.Name
}

// ColumnNames returns all column names in ordinal order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// PKColumnNames returns the primary key column names, or nil if no PK.
func (t *Table) PKColumnNames() ColumnSet {
	if t.PrimaryKey == nil {
		return nil
	}
	return t.PrimaryKey.Columns
}

// Keys returns the primary key (if any) followed by the unique keys.
func (t *Table) Keys() []KeyConstraint {
	var keys []KeyConstraint
	if t.PrimaryKey != nil {
		keys = append(keys, *t.PrimaryKey)
	}
	return append(keys, t.UniqueKeys...)
}

// SplitName splits "schema.table" into its parts. A bare name returns an
// empty schema.
func SplitName(name string) (schemaName, table string) {
	if before, after, ok := strings.Cut(name, "."); ok {
		return before, after
	}
	return "", name
}

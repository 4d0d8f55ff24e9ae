package plan

import (
	"fmt"
	"os"
	"slices"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Operators accepted in filters.
var Operators = []string{"eq", "neq", "gt", "gte", "lt", "lte", "like", "ilike", "in", "is"}

// Filter is one (column, operator, value) condition of a query node.
type Filter struct {
	Column string `json:"column" yaml:"column"`
	Op     string `json:"op" yaml:"op"`
	Value  any    `json:"value" yaml:"value"`
}

// QueryNode is one level of a nested query. The root names its table with
// Schema/Table; nested nodes name a relation ("table" or "schema.table")
// reached from their parent. Constraint optionally pins the foreign key
// (or junction pair) used to reach a nested relation.
type QueryNode struct {
	Schema     string      `json:"schema,omitempty" yaml:"schema,omitempty"`
	Table      string      `json:"table,omitempty" yaml:"table,omitempty"`
	Relation   string      `json:"relation,omitempty" yaml:"relation,omitempty"`
	Constraint string      `json:"constraint,omitempty" yaml:"constraint,omitempty"`
	Filters    []Filter    `json:"filters,omitempty" yaml:"filters,omitempty"`
	Nested     []QueryNode `json:"nested,omitempty" yaml:"nested,omitempty"`
}

// Validate checks the whole tree and reports every problem at once.
func (q *QueryNode) Validate() error {
	var errs error
	if q.Table == "" {
		errs = multierr.Append(errs, fmt.Errorf("root: table is required"))
	}
	if q.Relation != "" {
		errs = multierr.Append(errs, fmt.Errorf("root: relation is only valid on nested nodes"))
	}
	errs = multierr.Append(errs, validateFilters("root", q.Filters))
	for i := range q.Nested {
		errs = multierr.Append(errs, q.Nested[i].validateNested(fmt.Sprintf("nested[%d]", i)))
	}
	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, errs)
	}
	return nil
}

func (q *QueryNode) validateNested(path string) error {
	var errs error
	if q.Relation == "" {
		errs = multierr.Append(errs, fmt.Errorf("%s: relation is required", path))
	}
	if q.Schema != "" || q.Table != "" {
		errs = multierr.Append(errs, fmt.Errorf("%s: schema/table are only valid on the root", path))
	}
	errs = multierr.Append(errs, validateFilters(path, q.Filters))
	for i := range q.Nested {
		errs = multierr.Append(errs, q.Nested[i].validateNested(fmt.Sprintf("%s.nested[%d]", path, i)))
	}
	return errs
}

func validateFilters(path string, filters []Filter) error {
	var errs error
	for i, f := range filters {
		if f.Column == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s.filters[%d]: column is required", path, i))
		}
		if !slices.Contains(Operators, f.Op) {
			errs = multierr.Append(errs, fmt.Errorf("%s.filters[%d]: unknown operator %q", path, i, f.Op))
		}
	}
	return errs
}

// ParseQuery decodes a query document. YAML is a superset of JSON, so both
// formats are accepted. The result is validated.
func ParseQuery(data []byte) (*QueryNode, error) {
	var q QueryNode
	if err := yaml.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

// LoadQuery reads and parses a query document from path.
func LoadQuery(path string) (*QueryNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	return ParseQuery(data)
}

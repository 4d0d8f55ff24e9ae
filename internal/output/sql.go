package output

import (
	"fmt"
	"strings"

	"github.com/hurou927/pg-relsub/internal/plan"
)

var comparison = map[string]string{
	"eq":    "=",
	"neq":   "<>",
	"gt":    ">",
	"gte":   ">=",
	"lt":    "<",
	"lte":   "<=",
	"like":  "LIKE",
	"ilike": "ILIKE",
}

// Predicate builds a parameterized condition for f. Placeholders start at
// argIdx; the next free index is returned.
func Predicate(f plan.SubscriptionFilter, argIdx int) (string, []any, int, error) {
	col := QuoteIdent(f.Column)

	if op, ok := comparison[f.Op]; ok {
		return fmt.Sprintf("%s %s $%d", col, op, argIdx), []any{f.Value}, argIdx + 1, nil
	}

	switch f.Op {
	case "in":
		vals, ok := f.Value.([]any)
		if !ok {
			vals = []any{f.Value}
		}
		// Single column IN: col IN ($1, $2, ...)
		placeholders := make([]string, len(vals))
		for i := range vals {
			placeholders[i] = fmt.Sprintf("$%d", argIdx)
			argIdx++
		}
		if len(vals) == 0 {
			return "FALSE", nil, argIdx, nil
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), vals, argIdx, nil
	case "is":
		kw, err := isKeyword(f.Value)
		if err != nil {
			return "", nil, argIdx, err
		}
		return fmt.Sprintf("%s IS %s", col, kw), nil, argIdx, nil
	}
	return "", nil, argIdx, fmt.Errorf("unsupported operator %q", f.Op)
}

// LiteralPredicate renders f with its value inlined, for display only.
func LiteralPredicate(f plan.SubscriptionFilter) (string, error) {
	col := QuoteIdent(f.Column)

	if op, ok := comparison[f.Op]; ok {
		return fmt.Sprintf("%s %s %s", col, op, QuoteLiteral(f.Value)), nil
	}

	switch f.Op {
	case "in":
		vals, ok := f.Value.([]any)
		if !ok {
			vals = []any{f.Value}
		}
		if len(vals) == 0 {
			return "FALSE", nil
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = QuoteLiteral(v)
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(parts, ", ")), nil
	case "is":
		kw, err := isKeyword(f.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s IS %s", col, kw), nil
	}
	return "", fmt.Errorf("unsupported operator %q", f.Op)
}

func isKeyword(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		switch kw := strings.ToUpper(t); kw {
		case "NULL", "TRUE", "FALSE", "UNKNOWN", "NOT NULL":
			return kw, nil
		}
	}
	return "", fmt.Errorf("operator is expects null, true, false or unknown, got %v", v)
}

// TableCondition is the disjunction of all filters on one table.
type TableCondition struct {
	Schema string
	Table  string
	SQL    string
	Args   []any
}

// GroupByTable ORs together the filters of each table, in order of first
// appearance, with parameter numbering restarting for each table.
func GroupByTable(filters []plan.SubscriptionFilter) ([]TableCondition, error) {
	var order []string
	byTable := make(map[string][]plan.SubscriptionFilter)
	for _, f := range filters {
		if _, ok := byTable[f.FullName()]; !ok {
			order = append(order, f.FullName())
		}
		byTable[f.FullName()] = append(byTable[f.FullName()], f)
	}

	conds := make([]TableCondition, 0, len(order))
	for _, name := range order {
		fs := byTable[name]
		var parts []string
		var args []any
		argIdx := 1
		for _, f := range fs {
			sql, a, next, err := Predicate(f, argIdx)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", name, f.Column, err)
			}
			parts = append(parts, sql)
			args = append(args, a...)
			argIdx = next
		}
		cond := strings.Join(parts, " OR ")
		if len(parts) > 1 {
			cond = "(" + cond + ")"
		}
		conds = append(conds, TableCondition{Schema: fs[0].Schema, Table: fs[0].Table, SQL: cond, Args: args})
	}
	return conds, nil
}

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hurou927/pg-relsub/internal/plan"
	"github.com/hurou927/pg-relsub/internal/relation"
)

// Format selects how results are written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatSQL  Format = "sql"
)

// ParseFormat validates a format name against the allowed set.
func ParseFormat(s string, allowed ...Format) (Format, error) {
	for _, f := range allowed {
		if string(f) == s {
			return f, nil
		}
	}
	names := make([]string, len(allowed))
	for i, f := range allowed {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unknown format: %s (supported: %s)", s, strings.Join(names, ", "))
}

// Writer writes planner and inference results.
type Writer struct {
	w      io.Writer
	format Format
}

// NewWriter creates a new output writer.
func NewWriter(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// WriteFilters writes a filter list. The text form is one tab-separated
// row per filter; the sql form is one WHERE condition per table.
func (ow *Writer) WriteFilters(filters []plan.SubscriptionFilter) error {
	switch ow.format {
	case FormatJSON, FormatYAML:
		if filters == nil {
			filters = []plan.SubscriptionFilter{}
		}
		return ow.encode(filters)
	case FormatSQL:
		return ow.writeFilterSQL(filters)
	default:
		for _, f := range filters {
			row := []string{f.Schema, f.Table, f.Column, f.Op, EscapeCopyValue(f.Value)}
			if _, err := fmt.Fprintln(ow.w, strings.Join(row, "\t")); err != nil {
				return err
			}
		}
		return nil
	}
}

func (ow *Writer) writeFilterSQL(filters []plan.SubscriptionFilter) error {
	var order []string
	byTable := make(map[string][]string)
	for _, f := range filters {
		pred, err := LiteralPredicate(f)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", f.FullName(), f.Column, err)
		}
		key := QuoteTable(f.Schema, f.Table)
		if _, ok := byTable[key]; !ok {
			order = append(order, key)
		}
		byTable[key] = append(byTable[key], pred)
	}

	for _, table := range order {
		if _, err := fmt.Fprintf(ow.w, "%s WHERE %s;\n", table, strings.Join(byTable[table], " OR ")); err != nil {
			return err
		}
	}
	return nil
}

// WriteRelationships writes a relationship list.
func (ow *Writer) WriteRelationships(rels []relation.Relationship) error {
	switch ow.format {
	case FormatJSON, FormatYAML:
		if rels == nil {
			rels = []relation.Relationship{}
		}
		return ow.encode(rels)
	default:
		for _, r := range rels {
			junction := `\N`
			if r.Junction != nil {
				junction = r.Junction.FullName()
			}
			row := []string{
				r.Source(), strings.Join(r.SourceColumns, ","),
				r.Target(), strings.Join(r.TargetColumns, ","),
				string(r.Cardinality), r.ConstraintName,
				EscapeCopyValue(r.IsSelfRelation), junction,
			}
			if _, err := fmt.Fprintln(ow.w, strings.Join(row, "\t")); err != nil {
				return err
			}
		}
		return nil
	}
}

func (ow *Writer) encode(v any) error {
	if ow.format == FormatYAML {
		enc := yaml.NewEncoder(ow.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(ow.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

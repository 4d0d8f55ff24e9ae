package schema

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// MemoryCatalog serves catalog reads from an in-memory table list. It is
// used for fixtures and for offline runs against a dumped snapshot.
type MemoryCatalog struct {
	tables map[string]*Table
	names  []string
}

// NewMemoryCatalog indexes tables by full name. Missing FK source fields and
// key owners are filled in from the enclosing table.
func NewMemoryCatalog(tables []Table) (*MemoryCatalog, error) {
	c := &MemoryCatalog{tables: make(map[string]*Table, len(tables))}
	for i := range tables {
		tbl := normalizeTable(tables[i])
		name := tbl.FullName()
		if _, dup := c.tables[name]; dup {
			return nil, catalogErr("load snapshot", fmt.Errorf("%w: table %s listed twice", ErrInconsistentCatalog, name))
		}
		for _, fk := range tbl.ForeignKeys {
			if err := CheckForeignKey(fk); err != nil {
				return nil, catalogErr("load snapshot", err)
			}
		}
		c.tables[name] = &tbl
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c, nil
}

func normalizeTable(t Table) Table {
	if t.Schema == "" {
		t.Schema = "public"
	}
	if t.PrimaryKey != nil {
		pk := *t.PrimaryKey
		pk.Schema, pk.Table, pk.Kind = t.Schema, t.Name, KeyPrimary
		t.PrimaryKey = &pk
	}
	uks := make([]KeyConstraint, len(t.UniqueKeys))
	for i, uk := range t.UniqueKeys {
		uk.Schema, uk.Table, uk.Kind = t.Schema, t.Name, KeyUnique
		uks[i] = uk
	}
	t.UniqueKeys = uks
	fks := make([]ForeignKey, len(t.ForeignKeys))
	for i, fk := range t.ForeignKeys {
		fk.SourceSchema, fk.SourceTable = t.Schema, t.Name
		if fk.TargetSchema == "" {
			fk.TargetSchema = t.Schema
		}
		fk.IsSelfRef = fk.SourceSchema == fk.TargetSchema && fk.SourceTable == fk.TargetTable
		fks[i] = fk
	}
	t.ForeignKeys = fks
	return t
}

// ListForeignKeys returns FKs with either endpoint in schemas, ordered by
// source table then constraint name.
func (c *MemoryCatalog) ListForeignKeys(_ context.Context, schemas []string) ([]ForeignKey, error) {
	var fks []ForeignKey
	for _, name := range c.names {
		for _, fk := range c.tables[name].ForeignKeys {
			if slices.Contains(schemas, fk.SourceSchema) || slices.Contains(schemas, fk.TargetSchema) {
				fks = append(fks, fk)
			}
		}
	}
	sort.SliceStable(fks, func(i, j int) bool {
		if fks[i].Source() != fks[j].Source() {
			return fks[i].Source() < fks[j].Source()
		}
		return fks[i].Name < fks[j].Name
	})
	return fks, nil
}

// ListKeyConstraints returns the keys of one table. Unknown tables have none.
func (c *MemoryCatalog) ListKeyConstraints(_ context.Context, schemaName, table string) ([]KeyConstraint, error) {
	tbl, ok := c.tables[schemaName+"."+table]
	if !ok {
		return nil, nil
	}
	return tbl.Keys(), nil
}

// Tables returns the indexed tables sorted by full name.
func (c *MemoryCatalog) Tables() []Table {
	out := make([]Table, len(c.names))
	for i, name := range c.names {
		out[i] = *c.tables[name]
	}
	return out
}

// Snapshot returns the tables that live in schemas, plus the outside tables
// holding an FK into them, trimmed to those FKs.
func (c *MemoryCatalog) Snapshot(_ context.Context, schemas []string) ([]Table, error) {
	var out []Table
	for _, t := range c.Tables() {
		if slices.Contains(schemas, t.Schema) {
			out = append(out, t)
			continue
		}
		var inbound []ForeignKey
		for _, fk := range t.ForeignKeys {
			if slices.Contains(schemas, fk.TargetSchema) {
				inbound = append(inbound, fk)
			}
		}
		if len(inbound) > 0 {
			t.ForeignKeys = inbound
			out = append(out, t)
		}
	}
	return out, nil
}

type snapshotFile struct {
	Tables []Table `yaml:"tables"`
}

// LoadSnapshot reads a YAML snapshot written by WriteSnapshot.
func LoadSnapshot(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, catalogErr("read snapshot", err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot decodes a YAML snapshot.
func ParseSnapshot(data []byte) (*MemoryCatalog, error) {
	var f snapshotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, catalogErr("parse snapshot", err)
	}
	return NewMemoryCatalog(f.Tables)
}

// WriteSnapshot encodes tables as a YAML snapshot.
func WriteSnapshot(w io.Writer, tables []Table) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snapshotFile{Tables: tables}); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return enc.Close()
}

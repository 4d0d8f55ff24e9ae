package schema

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgxpool.Pool used for catalog reads.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGCatalog reads foreign keys and keys from the PostgreSQL system catalogs.
type PGCatalog struct {
	q Querier
}

// NewPGCatalog returns a Catalog backed by q (usually a *pgxpool.Pool).
func NewPGCatalog(q Querier) *PGCatalog {
	return &PGCatalog{q: q}
}

const foreignKeysQuery = `
	SELECT
		con.conname AS fk_name,
		cn.nspname AS source_schema,
		cc.relname AS source_table,
		ca.attname AS source_column,
		pn.nspname AS target_schema,
		pc.relname AS target_table,
		pa.attname AS target_column,
		u.ord AS key_position
	FROM pg_constraint con
	JOIN pg_class cc ON cc.oid = con.conrelid
	JOIN pg_namespace cn ON cn.oid = cc.relnamespace
	JOIN pg_class pc ON pc.oid = con.confrelid
	JOIN pg_namespace pn ON pn.oid = pc.relnamespace
	CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS u(source_attnum, target_attnum, ord)
	JOIN pg_attribute ca ON ca.attrelid = cc.oid AND ca.attnum = u.source_attnum
	JOIN pg_attribute pa ON pa.attrelid = pc.oid AND pa.attnum = u.target_attnum
	WHERE con.contype = 'f'
		AND (cn.nspname = ANY($1) OR pn.nspname = ANY($1))
	ORDER BY cn.nspname, cc.relname, con.conname, u.ord
`

// ListForeignKeys returns FKs with either endpoint in schemas, so that
// relationships crossing a schema boundary are visible from both sides.
func (c *PGCatalog) ListForeignKeys(ctx context.Context, schemas []string) ([]ForeignKey, error) {
	rows, err := c.q.Query(ctx, foreignKeysQuery, schemas)
	if err != nil {
		return nil, catalogErr("list foreign keys", err)
	}
	defer rows.Close()

	// Collect FK columns grouped by (schema, table, constraint name)
	type fkEntry struct {
		name         string
		sourceSchema string
		sourceTable  string
		sourceCol    string
		targetSchema string
		targetTable  string
		targetCol    string
	}

	byKey := make(map[string][]fkEntry)
	var order []string

	for rows.Next() {
		var e fkEntry
		var keyPos int
		if err := rows.Scan(&e.name, &e.sourceSchema, &e.sourceTable, &e.sourceCol,
			&e.targetSchema, &e.targetTable, &e.targetCol, &keyPos); err != nil {
			return nil, catalogErr("scan foreign key", err)
		}
		key := e.sourceSchema + "." + e.sourceTable + "." + e.name
		if _, exists := byKey[key]; !exists {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], e)
	}
	if err := rows.Err(); err != nil {
		return nil, catalogErr("list foreign keys", err)
	}

	fks := make([]ForeignKey, 0, len(order))
	for _, key := range order {
		entries := byKey[key]
		first := entries[0]
		fk := ForeignKey{
			Name:         first.name,
			SourceSchema: first.sourceSchema,
			SourceTable:  first.sourceTable,
			TargetSchema: first.targetSchema,
			TargetTable:  first.targetTable,
		}
		for _, e := range entries {
			if e.targetSchema != first.targetSchema || e.targetTable != first.targetTable {
				return nil, catalogErr("list foreign keys",
					fmt.Errorf("%w: constraint %s spans several tables", ErrInconsistentCatalog, key))
			}
			fk.SourceColumns = append(fk.SourceColumns, e.sourceCol)
			fk.TargetColumns = append(fk.TargetColumns, e.targetCol)
		}
		fk.IsSelfRef = fk.SourceSchema == fk.TargetSchema && fk.SourceTable == fk.TargetTable
		if err := CheckForeignKey(fk); err != nil {
			return nil, catalogErr("list foreign keys", err)
		}
		fks = append(fks, fk)
	}

	return fks, nil
}

const keyConstraintsQuery = `
	SELECT
		n.nspname AS schema_name,
		c.relname AS table_name,
		con.conname AS key_name,
		con.contype::text AS key_type,
		a.attname AS column_name,
		u.ord AS key_position
	FROM pg_constraint con
	JOIN pg_class c ON c.oid = con.conrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	CROSS JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS u(attnum, ord)
	JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = u.attnum
	WHERE con.contype IN ('p', 'u')
		AND n.nspname = ANY($1)
		AND ($2::text IS NULL OR c.relname = $2)
	ORDER BY n.nspname, c.relname, con.contype, con.conname, u.ord
`

// ListKeyConstraints returns the primary and unique keys of one table.
func (c *PGCatalog) ListKeyConstraints(ctx context.Context, schemaName, table string) ([]KeyConstraint, error) {
	keys, err := c.queryKeys(ctx, []string{schemaName}, &table)
	if err != nil {
		return nil, catalogErr("list key constraints", err)
	}
	return keys, nil
}

func (c *PGCatalog) queryKeys(ctx context.Context, schemas []string, table *string) ([]KeyConstraint, error) {
	rows, err := c.q.Query(ctx, keyConstraintsQuery, schemas, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []KeyConstraint
	index := make(map[string]int)
	for rows.Next() {
		var schemaName, tableName, keyName, keyType, colName string
		var keyPos int
		if err := rows.Scan(&schemaName, &tableName, &keyName, &keyType, &colName, &keyPos); err != nil {
			return nil, err
		}

		id := schemaName + "." + tableName + "." + keyName
		i, ok := index[id]
		if !ok {
			kind := KeyUnique
			if keyType == "p" {
				kind = KeyPrimary
			}
			keys = append(keys, KeyConstraint{
				Schema: schemaName,
				Table:  tableName,
				Name:   keyName,
				Kind:   kind,
			})
			i = len(keys) - 1
			index[id] = i
		}
		keys[i].Columns = append(keys[i].Columns, colName)
	}

	return keys, rows.Err()
}

// Snapshot queries PostgreSQL catalogs and returns all tables in schemas
// with columns, keys, and FKs, sorted by full name. Tables outside schemas
// that hold an FK into them are included with their keys and those FKs
// only, so a snapshot infers the same relationships as the live catalog.
func (c *PGCatalog) Snapshot(ctx context.Context, schemas []string) ([]Table, error) {
	tables, err := c.queryTablesAndColumns(ctx, schemas)
	if err != nil {
		return nil, catalogErr("query tables and columns", err)
	}

	fks, err := c.ListForeignKeys(ctx, schemas)
	if err != nil {
		return nil, err
	}

	var outside []string
	inbound := make(map[string]bool)
	for _, fk := range fks {
		if _, ok := tables[fk.Source()]; ok {
			continue
		}
		inbound[fk.Source()] = true
		if !slices.Contains(outside, fk.SourceSchema) {
			outside = append(outside, fk.SourceSchema)
		}
	}

	keySchemas := schemas
	if len(outside) > 0 {
		extra, err := c.queryTablesAndColumns(ctx, outside)
		if err != nil {
			return nil, catalogErr("query tables and columns", err)
		}
		for name, tbl := range extra {
			if inbound[name] {
				tables[name] = tbl
			}
		}
		keySchemas = append(slices.Clone(schemas), outside...)
	}

	keys, err := c.queryKeys(ctx, keySchemas, nil)
	if err != nil {
		return nil, catalogErr("query key constraints", err)
	}
	for _, k := range keys {
		tbl, ok := tables[k.Schema+"."+k.Table]
		if !ok {
			continue
		}
		if k.Kind == KeyPrimary {
			pk := k
			tbl.PrimaryKey = &pk
		} else {
			tbl.UniqueKeys = append(tbl.UniqueKeys, k)
		}
	}

	for _, fk := range fks {
		if tbl, ok := tables[fk.Source()]; ok {
			tbl.ForeignKeys = append(tbl.ForeignKeys, fk)
		}
	}

	out := make([]Table, 0, len(tables))
	for _, tbl := range tables {
		out = append(out, *tbl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out, nil
}

const columnsQuery = `
	SELECT
		n.nspname AS schema_name,
		c.relname AS table_name,
		a.attname AS column_name,
		t.typname AS data_type,
		NOT a.attnotnull AS is_nullable,
		a.attnum AS ordinal_position
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	JOIN pg_attribute a ON a.attrelid = c.oid
	JOIN pg_type t ON t.oid = a.atttypid
	WHERE c.relkind IN ('r', 'p')
		AND a.attnum > 0
		AND NOT a.attisdropped
		AND n.nspname = ANY($1)
	ORDER BY n.nspname, c.relname, a.attnum
`

type columnRow struct {
	SchemaName      string `db:"schema_name"`
	TableName       string `db:"table_name"`
	ColumnName      string `db:"column_name"`
	DataType        string `db:"data_type"`
	IsNullable      bool   `db:"is_nullable"`
	OrdinalPosition int    `db:"ordinal_position"`
}

// queryTablesAndColumns returns the ordinary and partitioned tables of
// schemas keyed by full name, columns in ordinal order.
func (c *PGCatalog) queryTablesAndColumns(ctx context.Context, schemas []string) (map[string]*Table, error) {
	rows, err := c.q.Query(ctx, columnsQuery, schemas)
	if err != nil {
		return nil, err
	}
	cols, err := pgx.CollectRows(rows, pgx.RowToStructByName[columnRow])
	if err != nil {
		return nil, err
	}

	tables := make(map[string]*Table)
	for _, col := range cols {
		name := col.SchemaName + "." + col.TableName
		if tables[name] == nil {
			tables[name] = &Table{Schema: col.SchemaName, Name: col.TableName}
		}
		tables[name].Columns = append(tables[name].Columns, Column{
			Name:     col.ColumnName,
			DataType: col.DataType,
			Nullable: col.IsNullable,
			OrdPos:   col.OrdinalPosition,
		})
	}
	return tables, nil
}

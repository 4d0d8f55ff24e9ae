package schema_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/pg-relsub/internal/schema"
	"github.com/hurou927/pg-relsub/internal/testutil"
)

func TestNewMemoryCatalog_Normalizes(t *testing.T) {
	cat := testutil.Catalog(t, schema.Table{
		Name:       "employees",
		PrimaryKey: testutil.PK("id"),
		ForeignKeys: []schema.ForeignKey{
			testutil.FK("employees_manager_id_fkey", "manager_id", "employees", "id"),
		},
	})

	tables := cat.Tables()
	require.Len(t, tables, 1)
	tbl := tables[0]
	assert.Equal(t, "public", tbl.Schema)
	assert.Equal(t, schema.KeyPrimary, tbl.PrimaryKey.Kind)
	assert.Equal(t, "employees", tbl.PrimaryKey.Table)

	fk := tbl.ForeignKeys[0]
	assert.Equal(t, "public.employees", fk.Source())
	assert.Equal(t, "public.employees", fk.Target())
	assert.True(t, fk.IsSelfRef)
}

func TestNewMemoryCatalog_Inconsistent(t *testing.T) {
	tests := []struct {
		name   string
		tables []schema.Table
		want   string
	}{
		{
			name:   "duplicate table",
			tables: []schema.Table{{Name: "users"}, {Schema: "public", Name: "users"}},
			want:   "public.users listed twice",
		},
		{
			name: "column count mismatch",
			tables: []schema.Table{{Name: "members", ForeignKeys: []schema.ForeignKey{{
				Name: "members_fk", SourceColumns: schema.ColumnSet{"a", "b"},
				TargetTable: "users", TargetColumns: schema.ColumnSet{"id"},
			}}}},
			want: "members_fk",
		},
		{
			name: "empty columns",
			tables: []schema.Table{{Name: "members", ForeignKeys: []schema.ForeignKey{{
				Name: "members_fk", TargetTable: "users",
			}}}},
			want: "members_fk",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.NewMemoryCatalog(tt.tables)
			require.Error(t, err)
			assert.ErrorIs(t, err, schema.ErrInconsistentCatalog)
			assert.True(t, schema.IsCatalogAccessErr(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMemoryCatalog_ListForeignKeys(t *testing.T) {
	cat := testutil.Catalog(t,
		schema.Table{Schema: "auth", Name: "accounts", PrimaryKey: testutil.PK("id")},
		schema.Table{
			Schema: "billing", Name: "invoices", PrimaryKey: testutil.PK("id"),
			ForeignKeys: []schema.ForeignKey{{
				Name: "invoices_account_id_fkey", SourceColumns: schema.ColumnSet{"account_id"},
				TargetSchema: "auth", TargetTable: "accounts", TargetColumns: schema.ColumnSet{"id"},
			}},
		},
		schema.Table{Schema: "audit", Name: "events", PrimaryKey: testutil.PK("id")},
	)
	ctx := context.Background()

	// Either endpoint in the requested schemas is enough.
	for _, schemas := range [][]string{{"auth"}, {"billing"}, {"auth", "billing"}} {
		fks, err := cat.ListForeignKeys(ctx, schemas)
		require.NoError(t, err)
		require.Len(t, fks, 1, "schemas %v", schemas)
		assert.Equal(t, "billing.invoices", fks[0].Source())
		assert.Equal(t, "auth.accounts", fks[0].Target())
	}

	fks, err := cat.ListForeignKeys(ctx, []string{"audit"})
	require.NoError(t, err)
	assert.Empty(t, fks)
}

func TestMemoryCatalog_ListKeyConstraints(t *testing.T) {
	cat := testutil.Catalog(t, testutil.MembersSchema()...)
	ctx := context.Background()

	keys, err := cat.ListKeyConstraints(ctx, "public", "members")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, schema.ColumnSet{"user_id", "org_id"}, keys[0].Columns)
	assert.Equal(t, schema.KeyPrimary, keys[0].Kind)

	keys, err = cat.ListKeyConstraints(ctx, "public", "missing")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSnapshotRoundTrip(t *testing.T) {
	cat := testutil.Catalog(t, testutil.MembersSchema()...)
	ctx := context.Background()

	tables, err := cat.Snapshot(ctx, []string{"public"})
	require.NoError(t, err)
	require.Len(t, tables, 4)

	var buf bytes.Buffer
	require.NoError(t, schema.WriteSnapshot(&buf, tables))
	assert.Contains(t, buf.String(), "tables:\n")
	assert.Contains(t, buf.String(), "columns: [user_id, org_id]")

	loaded, err := schema.ParseSnapshot(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, cat.Tables(), loaded.Tables())

	none, err := cat.Snapshot(ctx, []string{"billing"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParseSnapshot_Errors(t *testing.T) {
	_, err := schema.ParseSnapshot([]byte("tables: ["))
	require.Error(t, err)
	assert.True(t, schema.IsCatalogAccessErr(err))

	_, err = schema.LoadSnapshot("does-not-exist.yaml")
	require.Error(t, err)
	var catErr *schema.CatalogError
	require.True(t, errors.As(err, &catErr))
	assert.Equal(t, "read snapshot", catErr.Op)
}

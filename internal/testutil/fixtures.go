// Package testutil provides shared schema fixtures for tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hurou927/pg-relsub/internal/schema"
)

// MembersSchema is the users/organizations/members/projects schema:
//
//	users(id)
//	organizations(id)
//	members(user_id -> users.id, org_id -> organizations.id, PK(user_id, org_id))
//	projects(id, organization_id -> organizations.id)
func MembersSchema() []schema.Table {
	return []schema.Table{
		{
			Schema:     "public",
			Name:       "users",
			Columns:    []schema.Column{{Name: "id", DataType: "int8"}, {Name: "email", DataType: "text"}},
			PrimaryKey: &schema.KeyConstraint{Name: "users_pkey", Columns: schema.ColumnSet{"id"}},
		},
		{
			Schema:     "public",
			Name:       "organizations",
			Columns:    []schema.Column{{Name: "id", DataType: "int8"}, {Name: "name", DataType: "text"}},
			PrimaryKey: &schema.KeyConstraint{Name: "organizations_pkey", Columns: schema.ColumnSet{"id"}},
		},
		{
			Schema:     "public",
			Name:       "members",
			Columns:    []schema.Column{{Name: "user_id", DataType: "int8"}, {Name: "org_id", DataType: "int8"}},
			PrimaryKey: &schema.KeyConstraint{Name: "members_pkey", Columns: schema.ColumnSet{"user_id", "org_id"}},
			ForeignKeys: []schema.ForeignKey{
				{Name: "members_org_id_fkey", SourceColumns: schema.ColumnSet{"org_id"}, TargetTable: "organizations", TargetColumns: schema.ColumnSet{"id"}},
				{Name: "members_user_id_fkey", SourceColumns: schema.ColumnSet{"user_id"}, TargetTable: "users", TargetColumns: schema.ColumnSet{"id"}},
			},
		},
		{
			Schema:     "public",
			Name:       "projects",
			Columns:    []schema.Column{{Name: "id", DataType: "int8"}, {Name: "organization_id", DataType: "int8", Nullable: true}},
			PrimaryKey: &schema.KeyConstraint{Name: "projects_pkey", Columns: schema.ColumnSet{"id"}},
			ForeignKeys: []schema.ForeignKey{
				{Name: "projects_organization_id_fkey", SourceColumns: schema.ColumnSet{"organization_id"}, TargetTable: "organizations", TargetColumns: schema.ColumnSet{"id"}},
			},
		},
	}
}

// Catalog builds a MemoryCatalog from tables, failing the test on error.
func Catalog(t testing.TB, tables ...schema.Table) *schema.MemoryCatalog {
	t.Helper()
	cat, err := schema.NewMemoryCatalog(tables)
	require.NoError(t, err)
	return cat
}

// FK is a shorthand for a single-column foreign key.
func FK(name, column, target, targetColumn string) schema.ForeignKey {
	return schema.ForeignKey{
		Name:          name,
		SourceColumns: schema.ColumnSet{column},
		TargetTable:   target,
		TargetColumns: schema.ColumnSet{targetColumn},
	}
}

// PK is a shorthand for a primary key.
func PK(columns ...string) *schema.KeyConstraint {
	return &schema.KeyConstraint{Columns: columns}
}

// InSchema returns copies of tables moved to schemaName. Foreign keys without
// an explicit target schema follow their table.
func InSchema(schemaName string, tables []schema.Table) []schema.Table {
	out := make([]schema.Table, len(tables))
	for i, t := range tables {
		t.Schema = schemaName
		out[i] = t
	}
	return out
}

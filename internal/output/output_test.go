package output_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/pg-relsub/internal/output"
	"github.com/hurou927/pg-relsub/internal/plan"
	"github.com/hurou927/pg-relsub/internal/relation"
	"github.com/hurou927/pg-relsub/internal/schema"
)

var filters = []plan.SubscriptionFilter{
	{Schema: "public", Table: "users", Column: "id", Op: "eq", Value: 10},
	{Schema: "public", Table: "members", Column: "user_id", Op: "eq", Value: 10},
	{Schema: "public", Table: "users", Column: "email", Op: "like", Value: "o'hara%"},
}

func TestEscapeCopyValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, `\N`},
		{true, "t"},
		{false, "f"},
		{"tab\there", `tab\there`},
		{"back\\slash", `back\\slash`},
		{"line\nbreak", `line\nbreak`},
		{42, "42"},
		{[]byte{0xde, 0xad}, `\\xdead`},
		{[]any{1, "a"}, "{1,a}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, output.EscapeCopyValue(tt.in))
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"we""ird"`, output.QuoteIdent(`we"ird`))
	assert.Equal(t, `"public"."users"`, output.QuoteTable("public", "users"))
	assert.Equal(t, `"my.schema"."nul"`, output.QuoteTable("my.schema", "nu\x00l"))
	assert.Equal(t, `'o''hara'`, output.QuoteLiteral("o'hara"))
	assert.Equal(t, "NULL", output.QuoteLiteral(nil))
	assert.Equal(t, "1.5", output.QuoteLiteral(1.5))
	assert.Equal(t, "ARRAY[1, 'x']", output.QuoteLiteral([]any{1, "x"}))
}

func TestPredicate(t *testing.T) {
	tests := []struct {
		name     string
		filter   plan.SubscriptionFilter
		argIdx   int
		wantSQL  string
		wantArgs []any
		wantNext int
	}{
		{"eq", plan.SubscriptionFilter{Column: "id", Op: "eq", Value: 1}, 1, `"id" = $1`, []any{1}, 2},
		{"neq", plan.SubscriptionFilter{Column: "id", Op: "neq", Value: 1}, 3, `"id" <> $3`, []any{1}, 4},
		{"ilike", plan.SubscriptionFilter{Column: "name", Op: "ilike", Value: "a%"}, 1, `"name" ILIKE $1`, []any{"a%"}, 2},
		{"in", plan.SubscriptionFilter{Column: "id", Op: "in", Value: []any{1, 2, 3}}, 2, `"id" IN ($2, $3, $4)`, []any{1, 2, 3}, 5},
		{"in scalar", plan.SubscriptionFilter{Column: "id", Op: "in", Value: 7}, 1, `"id" IN ($1)`, []any{7}, 2},
		{"in empty", plan.SubscriptionFilter{Column: "id", Op: "in", Value: []any{}}, 1, "FALSE", nil, 1},
		{"is null", plan.SubscriptionFilter{Column: "deleted_at", Op: "is", Value: nil}, 1, `"deleted_at" IS NULL`, nil, 1},
		{"is true", plan.SubscriptionFilter{Column: "active", Op: "is", Value: "true"}, 1, `"active" IS TRUE`, nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, next, err := output.Predicate(tt.filter, tt.argIdx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
			assert.Equal(t, tt.wantNext, next)
		})
	}

	_, _, _, err := output.Predicate(plan.SubscriptionFilter{Column: "a", Op: "is", Value: 3}, 1)
	assert.Error(t, err)
	_, _, _, err = output.Predicate(plan.SubscriptionFilter{Column: "a", Op: "between", Value: 3}, 1)
	assert.Error(t, err)
}

func TestGroupByTable(t *testing.T) {
	conds, err := output.GroupByTable(filters)
	require.NoError(t, err)
	require.Len(t, conds, 2)

	assert.Equal(t, "users", conds[0].Table)
	assert.Equal(t, `("id" = $1 OR "email" LIKE $2)`, conds[0].SQL)
	assert.Equal(t, []any{10, "o'hara%"}, conds[0].Args)

	assert.Equal(t, "members", conds[1].Table)
	assert.Equal(t, `"user_id" = $1`, conds[1].SQL)
}

func TestWriteFilters(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, output.NewWriter(&buf, output.FormatText).WriteFilters(filters[:2]))
		assert.Equal(t, "public\tusers\tid\teq\t10\npublic\tmembers\tuser_id\teq\t10\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, output.NewWriter(&buf, output.FormatJSON).WriteFilters(filters[:1]))
		var got []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, []map[string]any{{"schema": "public", "table": "users", "column": "id", "op": "eq", "value": float64(10)}}, got)
	})

	t.Run("empty json is an array", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, output.NewWriter(&buf, output.FormatJSON).WriteFilters(nil))
		assert.Equal(t, "[]\n", buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, output.NewWriter(&buf, output.FormatYAML).WriteFilters(filters[1:2]))
		assert.Equal(t, "- schema: public\n  table: members\n  column: user_id\n  op: eq\n  value: 10\n", buf.String())
	})

	t.Run("sql", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, output.NewWriter(&buf, output.FormatSQL).WriteFilters(filters))
		assert.Equal(t,
			`"public"."users" WHERE "id" = 10 OR "email" LIKE 'o''hara%';`+"\n"+
				`"public"."members" WHERE "user_id" = 10;`+"\n",
			buf.String())
	})
}

func TestWriteRelationships(t *testing.T) {
	rels := []relation.Relationship{
		{
			SourceSchema: "public", SourceTable: "users", SourceColumns: schema.ColumnSet{"id"},
			TargetSchema: "public", TargetTable: "organizations", TargetColumns: schema.ColumnSet{"id"},
			Cardinality: relation.ManyToMany, ConstraintName: "a__b",
			Junction: &relation.Junction{Schema: "public", Table: "members"},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, output.NewWriter(&buf, output.FormatText).WriteRelationships(rels))
	assert.Equal(t, "public.users\tid\tpublic.organizations\tid\tmany_to_many\ta__b\tf\tpublic.members\n", buf.String())
}

func TestParseFormat(t *testing.T) {
	f, err := output.ParseFormat("sql", output.FormatText, output.FormatSQL)
	require.NoError(t, err)
	assert.Equal(t, output.FormatSQL, f)

	_, err = output.ParseFormat("csv", output.FormatText, output.FormatSQL)
	assert.EqualError(t, err, "unknown format: csv (supported: text, sql)")
}

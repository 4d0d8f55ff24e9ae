package graph_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/pg-relsub/internal/graph"
	"github.com/hurou927/pg-relsub/internal/relation"
	"github.com/hurou927/pg-relsub/internal/schema"
	"github.com/hurou927/pg-relsub/internal/testutil"
)

func membersGraph(t *testing.T) *graph.Graph {
	t.Helper()
	rels, err := relation.Infer(context.Background(), testutil.Catalog(t, testutil.MembersSchema()...), []string{"public"})
	require.NoError(t, err)
	return graph.New(rels)
}

func targets(rels []relation.Relationship) []string {
	out := make([]string, len(rels))
	for i, r := range rels {
		out[i] = r.TargetTable + ":" + string(r.Cardinality)
	}
	return out
}

func TestGraph_FromAndTo(t *testing.T) {
	g := membersGraph(t)

	assert.Equal(t, []string{
		"members:one_to_many",
		"users:many_to_many",
		"projects:one_to_many",
	}, targets(g.From("public", "organizations")))

	to := g.To("public", "organizations")
	var sources []string
	for _, r := range to {
		sources = append(sources, r.SourceTable+":"+string(r.Cardinality))
	}
	assert.Equal(t, []string{
		"members:many_to_one",
		"users:many_to_many",
		"projects:many_to_one",
	}, sources)

	assert.Empty(t, g.From("public", "missing"))
}

func TestGraph_RelationshipsFilter(t *testing.T) {
	g := membersGraph(t)
	assert.Len(t, g.Relationships(), 8)
	assert.Len(t, g.Relationships(relation.ManyToMany), 2)
	assert.Len(t, g.Relationships(relation.ManyToOne, relation.OneToMany), 6)
}

func TestGraph_Lookup(t *testing.T) {
	g := membersGraph(t)

	tests := []struct {
		name       string
		from       string
		relation   string
		constraint string
		wantDir    graph.Direction
		wantCards  []relation.Cardinality
	}{
		{"one to many", "users", "members", "", graph.Forward, []relation.Cardinality{relation.OneToMany}},
		{"many to many", "users", "organizations", "", graph.Forward, []relation.Cardinality{relation.ManyToMany}},
		{"qualified name", "projects", "public.organizations", "", graph.Forward, []relation.Cardinality{relation.ManyToOne}},
		{"wrong schema", "projects", "other.organizations", "", graph.NoMatch, nil},
		{"unknown", "users", "invoices", "", graph.NoMatch, nil},
		{"constraint hint", "organizations", "members", "members_org_id_fkey", graph.Forward, []relation.Cardinality{relation.OneToMany}},
		{"constraint hint mismatch", "organizations", "members", "nope", graph.NoMatch, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, dir := g.Lookup("public", tt.from, tt.relation, tt.constraint)
			assert.Equal(t, tt.wantDir, dir)
			var cards []relation.Cardinality
			for _, r := range got {
				cards = append(cards, r.Cardinality)
			}
			assert.Equal(t, tt.wantCards, cards)
		})
	}
}

func TestGraph_LookupOneToOneFromEitherEnd(t *testing.T) {
	tables := []schema.Table{
		{Name: "users", PrimaryKey: testutil.PK("id")},
		{
			Name:        "profiles",
			PrimaryKey:  testutil.PK("user_id"),
			ForeignKeys: []schema.ForeignKey{testutil.FK("profiles_user_id_fkey", "user_id", "users", "id")},
		},
	}
	rels, err := relation.Infer(context.Background(), testutil.Catalog(t, tables...), []string{"public"})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	g := graph.New(rels)

	got, dir := g.Lookup("public", "profiles", "users", "")
	require.Len(t, got, 1)
	assert.Equal(t, graph.Forward, dir)

	got, dir = g.Lookup("public", "users", "profiles", "")
	require.Len(t, got, 1)
	assert.Equal(t, graph.Backward, dir)
	assert.Equal(t, relation.OneToOne, got[0].Cardinality)
}

func TestGraph_LookupAmbiguous(t *testing.T) {
	tables := []schema.Table{
		{Name: "users", PrimaryKey: testutil.PK("id")},
		{
			Name:       "messages",
			PrimaryKey: testutil.PK("id"),
			ForeignKeys: []schema.ForeignKey{
				testutil.FK("messages_sender_id_fkey", "sender_id", "users", "id"),
				testutil.FK("messages_recipient_id_fkey", "recipient_id", "users", "id"),
			},
		},
	}
	rels, err := relation.Infer(context.Background(), testutil.Catalog(t, tables...), []string{"public"})
	require.NoError(t, err)
	g := graph.New(rels)

	got, dir := g.Lookup("public", "users", "messages", "")
	assert.Equal(t, graph.Forward, dir)
	require.Len(t, got, 2)
	assert.Equal(t, "messages_recipient_id_fkey", got[0].ConstraintName)
	assert.Equal(t, "messages_sender_id_fkey", got[1].ConstraintName)
}

func TestTopoSortAndComponents(t *testing.T) {
	g := membersGraph(t)
	g.AddTables("public.audit_log")

	comps := graph.FindComponents(g)
	require.Len(t, comps, 2)
	assert.Equal(t, []string{"public.audit_log"}, comps[0].Tables)
	assert.Equal(t, []string{"public.members", "public.organizations", "public.projects", "public.users"}, comps[1].Tables)

	res := graph.TopoSortAll(g)
	assert.False(t, res.HasCycle)
	assert.NoError(t, graph.ValidateCycles(res))
	pos := make(map[string]int)
	for i, name := range res.Order {
		pos[name] = i
	}
	assert.Less(t, pos["public.users"], pos["public.members"])
	assert.Less(t, pos["public.organizations"], pos["public.members"])
	assert.Less(t, pos["public.organizations"], pos["public.projects"])
}

func TestTopoSort_Cycle(t *testing.T) {
	tables := []schema.Table{
		{Name: "a", PrimaryKey: testutil.PK("id"), ForeignKeys: []schema.ForeignKey{testutil.FK("a_b_fkey", "b_id", "b", "id")}},
		{Name: "b", PrimaryKey: testutil.PK("id"), ForeignKeys: []schema.ForeignKey{testutil.FK("b_a_fkey", "a_id", "a", "id")}},
	}
	rels, err := relation.Infer(context.Background(), testutil.Catalog(t, tables...), []string{"public"})
	require.NoError(t, err)

	res := graph.TopoSortAll(graph.New(rels))
	assert.True(t, res.HasCycle)
	assert.Equal(t, []string{"public.a", "public.b"}, res.CycleTables)
	assert.Error(t, graph.ValidateCycles(res))
}

func TestWriteMermaid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, graph.WriteMermaid(&buf, membersGraph(t)))

	want := `erDiagram
    public_members }o--|| public_organizations : "org_id"
    public_members }o--|| public_users : "user_id"
    public_organizations }o--o{ public_users : "via members"
    public_projects }o--|| public_organizations : "organization_id"
`
	assert.Equal(t, want, buf.String())
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, graph.WriteText(&buf, membersGraph(t)))

	out := buf.String()
	assert.Contains(t, out, "Tables: 4\n")
	assert.Contains(t, out, "Relationships: 8 (many_to_one 3, one_to_one 0, one_to_many 3, many_to_many 2)")
	assert.Contains(t, out, "Junction tables: [public.members]")
	assert.NotContains(t, out, "WARNING")
}

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/pg-relsub/internal/schema"
	"github.com/hurou927/pg-relsub/internal/testutil"
)

// writeFixtures writes the members snapshot and a users->organizations query
// into a fresh working directory.
func writeFixtures(t *testing.T, tables ...schema.Table) (snapshot, query string) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	if len(tables) == 0 {
		tables = testutil.MembersSchema()
	}
	snapshot = filepath.Join(dir, "snapshot.yaml")
	f, err := os.Create(snapshot)
	require.NoError(t, err)
	require.NoError(t, schema.WriteSnapshot(f, testutil.Catalog(t, tables...).Tables()))
	require.NoError(t, f.Close())

	query = filepath.Join(dir, "query.yaml")
	require.NoError(t, os.WriteFile(query, []byte(`
table: users
filters:
  - {column: id, op: eq, value: 10}
nested:
  - relation: organizations
`), 0o644))
	return snapshot, query
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	for _, k := range []string{"PGHOST", "POSTGRES_HOST", "RELSUB_SNAPSHOT"} {
		t.Setenv(k, "")
	}
	snapshot, query := writeFixtures(t)

	t.Run("plan", func(t *testing.T) {
		out, err := run(t, "plan", "--snapshot", snapshot, "--query", query)
		require.NoError(t, err)
		assert.Equal(t, "public\tusers\tid\teq\t10\npublic\tmembers\tuser_id\teq\t10\n", out)
	})

	t.Run("plan sql", func(t *testing.T) {
		out, err := run(t, "plan", "--snapshot", snapshot, "--query", query, "--format", "sql")
		require.NoError(t, err)
		assert.Equal(t, `"public"."users" WHERE "id" = 10;`+"\n"+`"public"."members" WHERE "user_id" = 10;`+"\n", out)
		planFormat = "text"
	})

	t.Run("relationships", func(t *testing.T) {
		out, err := run(t, "relationships", "--snapshot", snapshot, "--cardinality", "many_to_many")
		require.NoError(t, err)
		assert.Equal(t,
			"public.organizations\tid\tpublic.users\tid\tmany_to_many\tmembers_org_id_fkey__members_user_id_fkey\tf\tpublic.members\n"+
				"public.users\tid\tpublic.organizations\tid\tmany_to_many\tmembers_org_id_fkey__members_user_id_fkey\tf\tpublic.members\n",
			out)
	})

	t.Run("probe dry run", func(t *testing.T) {
		out, err := run(t, "probe", "--snapshot", snapshot, "--query", query, "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, out, `[probe] public.members: SELECT count(*) FROM "public"."members" WHERE "user_id" = $1 (args: [10])`)
	})

	t.Run("analyze fails on unknown format", func(t *testing.T) {
		_, err := run(t, "analyze", "--snapshot", snapshot, "--format", "dot")
		assert.ErrorContains(t, err, "unknown format: dot")
		analyzeFormat = "text"
	})

	t.Run("missing database", func(t *testing.T) {
		snapshotPath = ""
		_, err := run(t, "relationships")
		assert.ErrorContains(t, err, "or pass --snapshot")
	})
}

func TestPlan_ConfiguredSchema(t *testing.T) {
	for _, k := range []string{"PGHOST", "POSTGRES_HOST", "RELSUB_SNAPSHOT"} {
		t.Setenv(k, "")
	}
	snapshot, query := writeFixtures(t, testutil.InSchema("app", testutil.MembersSchema())...)
	require.NoError(t, os.WriteFile("config.yaml", []byte("schemas: [app]\n"), 0o644))
	t.Cleanup(func() { cfgPath = "" })

	out, err := run(t, "plan", "--config", "config.yaml", "--snapshot", snapshot, "--query", query)
	require.NoError(t, err)
	assert.Equal(t, "app\tusers\tid\teq\t10\napp\tmembers\tuser_id\teq\t10\n", out)
}

func TestDump(t *testing.T) {
	for _, k := range []string{"PGHOST", "POSTGRES_HOST", "RELSUB_SNAPSHOT"} {
		t.Setenv(k, "")
	}
	snapshot, _ := writeFixtures(t)
	dest := filepath.Join(t.TempDir(), "dump.yaml")
	t.Cleanup(func() { dumpPath = "" })

	_, err := run(t, "dump", "--snapshot", snapshot, "--out", dest)
	require.NoError(t, err)

	loaded, err := schema.LoadSnapshot(dest)
	require.NoError(t, err)
	assert.Equal(t, testutil.Catalog(t, testutil.MembersSchema()...).Tables(), loaded.Tables())

	_, err = run(t, "dump", "--snapshot", snapshot, "--out", filepath.Join(t.TempDir(), "missing", "dump.yaml"))
	assert.ErrorContains(t, err, "creating output file")
}

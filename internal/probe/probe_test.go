package probe_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/pg-relsub/internal/plan"
	"github.com/hurou927/pg-relsub/internal/probe"
)

type fakeRow struct {
	n   int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.n
	return nil
}

type fakeQuerier struct {
	mu      sync.Mutex
	counts  map[string]int64
	err     error
	queries []string
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queries = append(q.queries, sql)
	return fakeRow{n: q.counts[sql], err: q.err}
}

var filters = []plan.SubscriptionFilter{
	{Schema: "public", Table: "users", Column: "id", Op: "eq", Value: 10},
	{Schema: "public", Table: "members", Column: "user_id", Op: "eq", Value: 10},
}

const (
	usersQuery   = `SELECT count(*) FROM "public"."users" WHERE "id" = $1`
	membersQuery = `SELECT count(*) FROM "public"."members" WHERE "user_id" = $1`
)

func TestProbe(t *testing.T) {
	q := &fakeQuerier{counts: map[string]int64{usersQuery: 1, membersQuery: 3}}

	results, err := probe.New(q, nil, 2, false).Probe(context.Background(), filters)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "users", results[0].Table)
	assert.Equal(t, int64(1), results[0].Rows)
	assert.Equal(t, "members", results[1].Table)
	assert.Equal(t, int64(3), results[1].Rows)
	assert.ElementsMatch(t, []string{usersQuery, membersQuery}, q.queries)

	var buf bytes.Buffer
	require.NoError(t, probe.WriteSummary(&buf, results, false))
	assert.Equal(t, "  public.users: 1 rows\n  public.members: 3 rows\n", buf.String())
}

func TestProbe_DryRunSkipsQueries(t *testing.T) {
	q := &fakeQuerier{}
	results, err := probe.New(q, nil, 1, true).Probe(context.Background(), filters)
	require.NoError(t, err)
	assert.Empty(t, q.queries)
	assert.Equal(t, usersQuery, results[0].Query)
	assert.Equal(t, []any{10}, results[0].Args)
}

func TestProbe_Error(t *testing.T) {
	q := &fakeQuerier{err: errors.New("relation does not exist")}
	_, err := probe.New(q, nil, 1, false).Probe(context.Background(), filters[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probing public.users")
}

package sqlstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/toolwire/pkg/store"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.sqlite")
	st, err := Open(context.Background(), "sqlite:file:"+path+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// exerciseJournal runs the same assertions against every backend.
func exerciseJournal(t *testing.T, st *Store) {
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)
	recs := []store.InvocationRecord{
		{ID: "a1", Tool: "add", Arguments: json.RawMessage(`{"a":5,"b":3}`), Status: 200, DurationMS: 1, CreatedAt: base},
		{ID: "a2", Tool: "add", Arguments: json.RawMessage(`{"a":"x","b":3}`), Status: 400, ErrorCode: "invalid_arguments", CreatedAt: base.Add(time.Second)},
		{ID: "s1", Tool: "subtract", Arguments: json.RawMessage(`{"a":5,"b":3}`), Status: 200, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, r := range recs {
		_, err := st.Append(ctx, r)
		require.NoError(t, err)
	}

	adds, err := st.List(ctx, "add", 10)
	require.NoError(t, err)
	require.Len(t, adds, 2)
	assert.Equal(t, "a2", adds[0].ID)
	assert.Equal(t, "invalid_arguments", adds[0].ErrorCode)
	assert.Equal(t, 400, adds[0].Status)
	assert.JSONEq(t, `{"a":5,"b":3}`, string(adds[1].Arguments))
	assert.True(t, base.Equal(adds[1].CreatedAt), "created_at=%s", adds[1].CreatedAt)

	all, err := st.List(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s1", all[0].ID)

	_, err = st.Append(ctx, recs[0])
	assert.Error(t, err, "duplicate id must fail")
}

func TestSQLiteJournal(t *testing.T) {
	exerciseJournal(t, openSQLite(t))
}

func TestSQLiteMigrateIdempotent(t *testing.T) {
	st := openSQLite(t)
	require.NoError(t, st.Migrate(context.Background()))
	assert.Equal(t, SQLite, st.Dialect())
}

func TestAppendDefaults(t *testing.T) {
	st := openSQLite(t)
	rec, err := st.Append(context.Background(), store.InvocationRecord{ID: "x", Tool: "add", Status: 404})
	require.NoError(t, err)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, "null", string(rec.Arguments))

	_, err = st.Append(context.Background(), store.InvocationRecord{Tool: "add"})
	assert.Error(t, err)
}

func TestParseDSN(t *testing.T) {
	cases := []struct {
		in      string
		driver  string
		dialect Dialect
		wantErr bool
	}{
		{in: "sqlite:file:x.db", driver: "sqlite3", dialect: SQLite},
		{in: "sqlite:", driver: "sqlite3", dialect: SQLite},
		{in: "postgres://u:p@localhost:5432/db?sslmode=disable", driver: "pgx", dialect: Postgres},
		{in: "postgresql://localhost/db", driver: "pgx", dialect: Postgres},
		{in: "host=localhost user=toolwire dbname=toolwire", driver: "pgx", dialect: Postgres},
		{in: "mysql://localhost/db", wantErr: true},
		{in: "journal.db", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		drv, _, dialect, err := parseDSN(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.driver, drv, tc.in)
		assert.Equal(t, tc.dialect, dialect, tc.in)
	}
}

func TestStatementsFollowDialect(t *testing.T) {
	rec := store.InvocationRecord{ID: "a1", Tool: "add", Arguments: json.RawMessage(`{}`), Status: 200, CreatedAt: time.UnixMicro(42)}

	q, args := insertStmt(Postgres, rec)
	assert.Equal(t, `INSERT INTO "invocations" ("id", "tool", "arguments", "status", "error_code", "duration_ms", "created_at") VALUES ($1, $2, $3, $4, $5, $6, $7)`, q)
	assert.Equal(t, []any{"a1", "add", "{}", 200, "", int64(0), int64(42)}, args)

	q, _ = insertStmt(SQLite, rec)
	assert.NotContains(t, q, "$")
	assert.Equal(t, 7, strings.Count(q, "?"))

	q, args = listStmt(Postgres, "add", 0)
	assert.Contains(t, q, `WHERE "tool" = $1`)
	assert.Contains(t, q, "LIMIT 100")
	assert.Equal(t, []any{"add"}, args)

	q, args = listStmt(SQLite, "", 5)
	assert.NotContains(t, q, "WHERE")
	assert.Contains(t, q, "LIMIT 5")
	assert.Empty(t, args)
}

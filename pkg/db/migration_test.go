package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableColumns(t *testing.T, conn *sql.DB, table string) map[string]bool {
	t.Helper()
	rows, err := conn.Query("PRAGMA table_info(" + table + ")")
	require.NoError(t, err)
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dfltVal interface{}
		require.NoError(t, rows.Scan(&cid, &colName, &ctype, &notnull, &dfltVal, &pk))
		cols[colName] = true
	}
	require.NoError(t, rows.Err())
	return cols
}

func TestInitDBCreatesSchema(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer conn.Close()
	conn.SetMaxOpenConns(1)

	require.NoError(t, InitDB(conn))

	for _, table := range []string{"words", "senses", "examples", "tags", "sense_tags", "phrases",
		"phrase_tags", "relationship_candidates", "resolver_runs", "active_run", "relationships",
		"phrase_links", "phrase_states"} {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s missing", table)
	}

	rel := tableColumns(t, conn, "relationships")
	for _, col := range []string{"run_id", "sense_a_id", "sense_b_id", "score", "bucket", "source_ids", "merge_status", "low_precision"} {
		assert.True(t, rel[col], "relationships.%s missing", col)
	}
}

func TestInitDBIsRepeatable(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer conn.Close()
	conn.SetMaxOpenConns(1)

	require.NoError(t, InitDB(conn))
	require.NoError(t, InitDB(conn))
}

func TestRelationshipsRejectNonCanonicalPairs(t *testing.T) {
	conn := setupTestDB(t)
	a := mustSense(t, conn, "cool", "k:cool")
	b := mustSense(t, conn, "hip", "k:hip")
	require.NoError(t, CreateRun(conn, "run-1", 0))

	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	_, err := conn.Exec(`INSERT INTO relationships (run_id, sense_a_id, sense_b_id, score, bucket, source_ids, merge_status)
		VALUES ('run-1', ?, ?, 0.9, 'direct', 'x', 'single')`, hi, lo)
	assert.Error(t, err)

	_, err = conn.Exec(`INSERT INTO relationships (run_id, sense_a_id, sense_b_id, score, bucket, source_ids, merge_status)
		VALUES ('run-1', ?, ?, 1.2, 'direct', 'x', 'single')`, lo, hi)
	assert.Error(t, err, "score above 1 must be rejected")
}

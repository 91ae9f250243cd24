package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesFileAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	require.NoError(t, err, "database file was not created")

	for _, table := range []string{"runs", "firings"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %q", table)
	}
}

func TestOpen_ReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")

	for i := range 3 {
		s, err := Open(path)
		require.NoError(t, err, "open %d", i)
		_, err = s.db.Exec(`INSERT INTO runs (id, plan_name, seq, before_fingerprint, after_fingerprint,
			before_plan, after_plan, after_plan_json, steps, engine_version, ir_version)
			VALUES (?, 'chain', ?, '', '', '', '', '{}', 0, '', '')`, fmt.Sprintf("run-%d", i), i+1)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count))
	assert.Equal(t, 3, count)
}

func TestOpen_MissingDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "trace.db"))
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	assert.NoError(t, (&Store{}).Close())

	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_ = s.Close()
}

func TestDB_Usable(t *testing.T) {
	s := createTestStore(t)
	require.NotNil(t, s.DB())
	assert.NoError(t, s.DB().Ping())
}

func TestOpen_ConnectionSettings(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", fmt.Sprint(schemaVersion())},
	}

	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			got, err := s.pragma(tt.pragma)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchema_Columns(t *testing.T) {
	s := createTestStore(t)

	tests := map[string][]string{
		"runs": {
			"id", "plan_name", "seq", "before_fingerprint", "after_fingerprint",
			"before_plan", "after_plan", "after_plan_json", "steps", "engine_version", "ir_version",
		},
		"firings": {
			"id", "run_id", "seq", "rule", "group_id", "node_id",
			"before_fingerprint", "after_fingerprint", "before_plan", "after_plan",
		},
	}

	for table, want := range tests {
		t.Run(table, func(t *testing.T) {
			assert.Subset(t, tableColumns(t, s.db, table), want)
		})
	}
}

func TestMigrate_UpgradesUnversionedStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")

	// A store written before migrations existed: base schema only.
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Contains(t, tableIndexes(t, s.db, "runs"), "idx_runs_plan_name")
	version, err := s.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(schemaVersion()), version)
}

func TestConstraint_FiringsRequireRun(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO firings (run_id, seq, rule, group_id, node_id, before_fingerprint, after_fingerprint, before_plan, after_plan)
		VALUES ('missing', 1, 'r', 0, 'n', '', '', '', '')
	`)
	assert.Error(t, err, "expected foreign key violation for firing without run")
}

func tableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	require.NoError(t, err)
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		columns = append(columns, name)
	}
	require.NoError(t, rows.Err())
	return columns
}

func tableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	require.NoError(t, err)
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		indexes = append(indexes, name)
	}
	require.NoError(t, rows.Err())
	return indexes
}

package migrations

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := migrationFiles(PostgresFS, "postgres")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_rounds.sql", "002_orders.sql", "003_referrals.sql"}, pg)

	ch, err := migrationFiles(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_fills.sql", "002_round_volume.sql"}, ch)
	for _, name := range ch {
		sql, err := readMigration(ClickhouseFS, "clickhouse", name)
		require.NoError(t, err)
		assert.NoError(t, validateNoSemicolonInStrings(sql), name)
		assert.NotEmpty(t, splitStatements(sql), name)
	}
}

func TestMigrationFiles_Ordering(t *testing.T) {
	sql := &fstest.MapFile{Data: []byte("SELECT 1;")}
	tests := []struct {
		name    string
		files   []string
		want    []string
		wantErr string
	}{
		{"sorted", []string{"002_orders.sql", "001_rounds.sql", "README.md"}, []string{"001_rounds.sql", "002_orders.sql"}, ""},
		{"gap", []string{"001_rounds.sql", "003_referrals.sql"}, nil, "expected version 002"},
		{"repeat", []string{"001_rounds.sql", "001_orders.sql"}, nil, "expected version 002"},
		{"bad name", []string{"1_rounds.sql"}, nil, "want NNN_name.sql"},
		{"upper case", []string{"001_Rounds.sql"}, nil, "want NNN_name.sql"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{}
			for _, f := range tt.files {
				fsys["postgres/"+f] = sql
			}
			got, err := migrationFiles(fsys, "postgres")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `
-- comment; with semicolon
CREATE TABLE a (x UInt8) ENGINE = Memory;

CREATE VIEW b AS SELECT x FROM a;
`
	stmts := splitStatements(sql)
	require.Len(t, stmts, 2)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE a"))
	assert.True(t, strings.HasPrefix(stmts[1], "CREATE VIEW b"))
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings(`SELECT 'it''s'; SELECT 1;`))
	assert.Error(t, validateNoSemicolonInStrings(`SELECT 'a;b';`))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/acdm")
	require.NoError(t, err)
	assert.Equal(t, "acdm", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
	_, err = databaseFromDSN("clickhouse://localhost:9000/acdm;DROP")
	assert.Error(t, err)
	_, err = databaseFromDSN("clickhouse://localhost:9000/acdm-fills")
	assert.Error(t, err)
}

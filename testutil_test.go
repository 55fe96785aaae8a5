package auth

import (
	"database/sql"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB opens an in-memory sqlite database and applies the embedded
// migrations, so tests run against the exact schema the package ships.
func setupTestDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	migrations := GetMigrationsFS()
	entries, err := fs.ReadDir(migrations, "data/sql/migrations")
	require.NoError(t, err)

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		contents, err := fs.ReadFile(migrations, "data/sql/migrations/"+entry.Name())
		require.NoError(t, err)
		_, err = db.Exec(string(contents))
		require.NoError(t, err, "migration %s", entry.Name())
	}

	cleanup := func() {
		_ = db.Close()
		_ = sqldb.Close()
	}

	return db, cleanup
}

func setupRepoManager(t *testing.T) (RepositoryManager, *bun.DB, func()) {
	t.Helper()

	db, cleanup := setupTestDB(t)
	repo := NewRepositoryManager(db)
	require.NoError(t, repo.Validate())

	return repo, db, cleanup
}

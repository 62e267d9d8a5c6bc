package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fwojciec/subgrab/sqlite"
	"github.com/stretchr/testify/require"
)

func TestDB_Open(t *testing.T) {
	t.Parallel()

	t.Run("creates schema on first open", func(t *testing.T) {
		t.Parallel()

		db := sqlite.NewDB(":memory:")
		err := db.Open()
		require.NoError(t, err)
		defer db.Close()

		ctx := context.Background()

		var postCount int
		err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&postCount)
		require.NoError(t, err)

		var commentCount int
		err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments").Scan(&commentCount)
		require.NoError(t, err)
	})

	t.Run("returns error for invalid path", func(t *testing.T) {
		t.Parallel()

		db := sqlite.NewDB("/nonexistent/path/db.sqlite")
		err := db.Open()
		require.Error(t, err)
	})

	t.Run("enables WAL mode for file-based databases", func(t *testing.T) {
		t.Parallel()

		db := sqlite.NewDB(filepath.Join(t.TempDir(), "test.db"))
		err := db.Open()
		require.NoError(t, err)
		defer db.Close()

		var journalMode string
		err = db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&journalMode)
		require.NoError(t, err)
		require.Equal(t, "wal", journalMode)
	})
}

func TestDBPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, filepath.Join("data", "golang", "subgrab.db"), sqlite.DBPath("data", "golang"))
	require.Equal(t, filepath.Join("data", "golang", "images"), sqlite.ImagesDir("data", "golang"))
}

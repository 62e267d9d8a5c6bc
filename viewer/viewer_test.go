package viewer_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/subgrab"
	"github.com/fwojciec/subgrab/sqlite"
	"github.com/fwojciec/subgrab/viewer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*viewer.Manager, *sqlite.Store, string) {
	t.Helper()
	db := sqlite.NewDB(":memory:")
	require.NoError(t, db.Open())
	t.Cleanup(func() { db.Close() })

	store := sqlite.NewStore(db)
	imageDir := t.TempDir()
	return viewer.NewManager(store, imageDir), store, imageDir
}

func seedPosts(t *testing.T, store *sqlite.Store, n int) {
	t.Helper()
	posts := make([]*subgrab.Post, 0, n)
	for i := 1; i <= n; i++ {
		posts = append(posts, &subgrab.Post{
			ID:         fmt.Sprintf("p%d", i),
			Title:      fmt.Sprintf("post %d", i),
			CreatedUTC: int64(i * 100),
		})
	}
	_, err := store.SavePosts(context.Background(), posts)
	require.NoError(t, err)
}

func TestManager_Chunk(t *testing.T) {
	t.Parallel()

	t.Run("pages newest first", func(t *testing.T) {
		t.Parallel()

		mgr, store, _ := newTestManager(t)
		seedPosts(t, store, 7)

		chunk, err := mgr.Chunk(context.Background(), 1, 3)
		require.NoError(t, err)
		require.Len(t, chunk.Posts, 3)
		assert.Equal(t, 1, chunk.ID)
		assert.True(t, chunk.HasMore)
		assert.Equal(t, "p7", chunk.Posts[0].ID)
		assert.Equal(t, "p6", chunk.Posts[1].ID)
		assert.Equal(t, "p5", chunk.Posts[2].ID)
	})

	t.Run("last page is partial without more", func(t *testing.T) {
		t.Parallel()

		mgr, store, _ := newTestManager(t)
		seedPosts(t, store, 7)

		chunk, err := mgr.Chunk(context.Background(), 3, 3)
		require.NoError(t, err)
		require.Len(t, chunk.Posts, 1)
		assert.Equal(t, "p1", chunk.Posts[0].ID)
		assert.False(t, chunk.HasMore)
	})

	t.Run("page past the end is empty, not an error", func(t *testing.T) {
		t.Parallel()

		mgr, store, _ := newTestManager(t)
		seedPosts(t, store, 7)

		chunk, err := mgr.Chunk(context.Background(), 99, 3)
		require.NoError(t, err)
		assert.Empty(t, chunk.Posts)
		assert.False(t, chunk.HasMore)
	})

	t.Run("invalid size falls back to the default", func(t *testing.T) {
		t.Parallel()

		mgr, store, _ := newTestManager(t)
		seedPosts(t, store, 7)

		chunk, err := mgr.Chunk(context.Background(), 1, 0)
		require.NoError(t, err)
		assert.Len(t, chunk.Posts, viewer.DefaultChunkSize)
	})

	t.Run("rejects non-positive page numbers", func(t *testing.T) {
		t.Parallel()

		mgr, _, _ := newTestManager(t)

		_, err := mgr.Chunk(context.Background(), 0, 3)
		require.Error(t, err)
		assert.Equal(t, subgrab.EINVALID, subgrab.ErrorCode(err))
	})

	t.Run("attaches comment trees and counts", func(t *testing.T) {
		t.Parallel()

		mgr, store, _ := newTestManager(t)
		seedPosts(t, store, 1)
		_, err := store.SaveComments(context.Background(), []*subgrab.Comment{
			{ID: "c1", PostID: "p1", Text: "top", CreatedUTC: 100},
			{ID: "c2", PostID: "p1", ParentID: "c1", Text: "reply", CreatedUTC: 90},
		})
		require.NoError(t, err)

		chunk, err := mgr.Chunk(context.Background(), 1, 5)
		require.NoError(t, err)
		require.Len(t, chunk.Posts, 1)

		post := chunk.Posts[0]
		assert.Equal(t, 2, post.CommentCount)
		require.Len(t, post.Comments, 1)
		assert.Equal(t, "c1", post.Comments[0].ID)
		require.Len(t, post.Comments[0].Replies, 1)
		assert.Equal(t, "c2", post.Comments[0].Replies[0].ID)
	})
}

func TestManager_TotalChunks(t *testing.T) {
	t.Parallel()

	mgr, store, _ := newTestManager(t)
	seedPosts(t, store, 7)

	total, err := mgr.TotalChunks(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	total, err = mgr.TotalChunks(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestManager_PostComments(t *testing.T) {
	t.Parallel()

	t.Run("builds trees and drops orphans", func(t *testing.T) {
		t.Parallel()

		mgr, store, _ := newTestManager(t)
		seedPosts(t, store, 1)
		_, err := store.SaveComments(context.Background(), []*subgrab.Comment{
			{ID: "c1", PostID: "p1", Text: "top", CreatedUTC: 100},
			{ID: "orphan", PostID: "p1", ParentID: "missing", Text: "lost", CreatedUTC: 90},
		})
		require.NoError(t, err)

		trees, err := mgr.PostComments(context.Background(), "p1")
		require.NoError(t, err)
		require.Len(t, trees, 1)
		assert.Equal(t, "c1", trees[0].ID)
	})

	t.Run("unknown post yields empty trees", func(t *testing.T) {
		t.Parallel()

		mgr, _, _ := newTestManager(t)

		trees, err := mgr.PostComments(context.Background(), "nope")
		require.NoError(t, err)
		assert.Empty(t, trees)
	})
}

func TestManager_ImagePath(t *testing.T) {
	t.Parallel()

	mgr, _, imageDir := newTestManager(t)
	require.NoError(t, os.WriteFile(filepath.Join(imageDir, "p1.jpg"), []byte("img"), 0o644))

	t.Run("resolves existing images", func(t *testing.T) {
		t.Parallel()
		path, err := mgr.ImagePath("p1.jpg")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(imageDir, "p1.jpg"), path)
	})

	t.Run("rejects traversal", func(t *testing.T) {
		t.Parallel()
		_, err := mgr.ImagePath("../secret.jpg")
		require.Error(t, err)
		assert.Equal(t, subgrab.EINVALID, subgrab.ErrorCode(err))
	})

	t.Run("missing image is not found", func(t *testing.T) {
		t.Parallel()
		_, err := mgr.ImagePath("nope.jpg")
		require.Error(t, err)
		assert.Equal(t, subgrab.ENOTFOUND, subgrab.ErrorCode(err))
	})
}

func TestManager_Invalidate(t *testing.T) {
	t.Parallel()

	mgr, store, _ := newTestManager(t)
	seedPosts(t, store, 1)

	total, err := mgr.TotalChunks(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, err = store.SavePosts(context.Background(), []*subgrab.Post{
		{ID: "extra", Title: "later", CreatedUTC: 999},
	})
	require.NoError(t, err)

	// The snapshot is cached until invalidated.
	chunk, err := mgr.Chunk(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Len(t, chunk.Posts, 1)

	mgr.Invalidate()

	chunk, err = mgr.Chunk(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Len(t, chunk.Posts, 2)
}

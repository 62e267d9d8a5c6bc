package subgrab

import "context"

// Store is the durable, deduplicated post/comment persistence for one
// subreddit. Saves are merges: a record whose id already exists is
// refreshed in place (latest write wins), never duplicated, and existing
// records are never lost. Saving the same batch twice changes nothing
// after the first application.
//
// A store is single-writer per subreddit; stores for different subreddits
// own disjoint state and need no coordination.
type Store interface {
	// SavePosts merges a batch into the post table and returns how many
	// records were new to the store. Empty input is a no-op returning 0.
	// A failed save leaves the prior persisted state intact and returns
	// ESTORAGE.
	SavePosts(ctx context.Context, posts []*Post) (int, error)

	// SaveComments is SavePosts for comments, keyed by comment id.
	SaveComments(ctx context.Context, comments []*Comment) (int, error)

	// LoadPosts returns up to limit posts ordered newest first. Zero limit
	// means all. A never-written store yields an empty slice, not an error.
	LoadPosts(ctx context.Context, limit int) ([]*Post, error)

	// LoadComments returns comments ordered newest first, optionally
	// filtered to one post. Empty postID means all posts.
	LoadComments(ctx context.Context, postID string, limit int) ([]*Comment, error)

	// TotalPosts returns the post count, 0 for a never-written store.
	TotalPosts(ctx context.Context) (int, error)

	// TotalComments returns the comment count.
	TotalComments(ctx context.Context) (int, error)
}

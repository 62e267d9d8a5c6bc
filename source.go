package subgrab

import (
	"context"
	"iter"
)

// Source fetches posts and comments for one subreddit. Implementations
// normalize their upstream's native schema into the canonical Post/Comment
// shapes at this boundary; schema drift never leaks upward.
//
// The yielded sequences are lazy and restartable: ranging again starts a
// fresh query. Pagination cursors are internal bookkeeping for a single
// call. A sequence ends by yielding a nil record with a non-nil error when
// the upstream is unreachable or returns an unrecoverable status after
// retries (EUNAVAILABLE); individual malformed records are skipped with a
// logged warning instead.
type Source interface {
	// FetchPosts yields posts in the backend's listing order, truncated
	// to opts.Limit and filtered to the exclusive Before/After window.
	FetchPosts(ctx context.Context, opts FetchOptions) iter.Seq2[*Post, error]

	// FetchComments yields the full comment tree for a post as known to
	// the upstream, draining any "load more" pagination unless opts.Limit
	// truncates it first. Yields ENOTFOUND if the post id is unknown.
	FetchComments(ctx context.Context, postID string, opts FetchOptions) iter.Seq2[*Comment, error]

	// ExtractImageURL returns the first image URL found in free text, or
	// the empty string.
	ExtractImageURL(text string) string

	// DownloadImage fetches url to the deterministic local path derived
	// from (itemID, kind) and returns that path. Idempotent: an existing
	// file is returned without re-fetching. Returns the empty string on
	// failure, never an error; callers treat it as "no image available".
	DownloadImage(ctx context.Context, url, itemID string, kind ContentKind) string

	// Name returns the stable identifier of this backend, used for
	// selection and logging only.
	Name() string
}

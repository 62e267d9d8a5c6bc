package scrape_test

import (
	"context"
	"iter"
	"sync"
	"testing"

	"github.com/fwojciec/subgrab"
	"github.com/fwojciec/subgrab/mock"
	"github.com/fwojciec/subgrab/scrape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore collects saved batches while reporting everything as new,
// and records the order of save calls.
type memoryStore struct {
	mu       sync.Mutex
	posts    []*subgrab.Post
	comments []*subgrab.Comment
	saves    []string
}

func (s *memoryStore) asMock() *mock.Store {
	return &mock.Store{
		SavePostsFn: func(_ context.Context, posts []*subgrab.Post) (int, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.posts = append(s.posts, posts...)
			s.saves = append(s.saves, "posts")
			return len(posts), nil
		},
		SaveCommentsFn: func(_ context.Context, comments []*subgrab.Comment) (int, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.comments = append(s.comments, comments...)
			s.saves = append(s.saves, "comments")
			return len(comments), nil
		},
	}
}

func postsFixture(ids ...string) []*subgrab.Post {
	posts := make([]*subgrab.Post, 0, len(ids))
	for i, id := range ids {
		posts = append(posts, &subgrab.Post{ID: id, Title: "post " + id, CreatedUTC: int64(100 - i)})
	}
	return posts
}

func TestScraper_Run(t *testing.T) {
	t.Parallel()

	t.Run("scrapes a fresh subreddit end to end", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		source := &mock.Source{
			FetchPostsFn: func(_ context.Context, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
				return mock.Posts(postsFixture("p1", "p2"))
			},
			FetchCommentsFn: func(_ context.Context, postID string, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
				return mock.Comments([]*subgrab.Comment{
					{ID: "c-" + postID, PostID: postID, Text: "hi"},
				})
			},
		}

		scraper := &scrape.Scraper{Source: source, Store: store.asMock(), Subreddit: "golang", CommentLimit: -1}
		result, err := scraper.Run(context.Background(), subgrab.FetchOptions{}, nil)

		require.NoError(t, err)
		assert.NotEmpty(t, result.ID)
		assert.Equal(t, "golang", result.Subreddit)
		assert.Equal(t, 2, result.PostsCount)
		assert.Equal(t, 2, result.CommentsCount)
		assert.Zero(t, result.ErrorsCount)
		assert.NotNil(t, result.EndTime)
		assert.Len(t, store.posts, 2)
		assert.Len(t, store.comments, 2)
	})

	t.Run("writes posts then comments exactly once each", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		source := &mock.Source{
			FetchPostsFn: func(_ context.Context, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
				return mock.Posts(postsFixture("p1", "p2", "p3", "p4", "p5"))
			},
			FetchCommentsFn: func(_ context.Context, postID string, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
				return mock.Comments([]*subgrab.Comment{{ID: "c-" + postID, PostID: postID}})
			},
		}

		scraper := &scrape.Scraper{Source: source, Store: store.asMock(), Subreddit: "golang", CommentLimit: -1}
		result, err := scraper.Run(context.Background(), subgrab.FetchOptions{}, nil)

		require.NoError(t, err)
		assert.Equal(t, 5, result.PostsCount)
		assert.Equal(t, []string{"posts", "comments"}, store.saves, "one full-batch write each, posts first")
		assert.Len(t, store.posts, 5)
		assert.Len(t, store.comments, 5)
	})

	t.Run("keeps the post when its comments fail", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		source := &mock.Source{
			FetchPostsFn: func(_ context.Context, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
				return mock.Posts(postsFixture("p1", "p2"))
			},
			FetchCommentsFn: func(_ context.Context, postID string, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
				if postID == "p1" {
					return mock.CommentsErr(nil, subgrab.Errorf(subgrab.EUNAVAILABLE, "thread gone"))
				}
				return mock.Comments([]*subgrab.Comment{{ID: "c1", PostID: postID}})
			},
		}

		var failed []string
		scraper := &scrape.Scraper{Source: source, Store: store.asMock(), Subreddit: "golang", CommentLimit: -1}
		result, err := scraper.Run(context.Background(), subgrab.FetchOptions{}, func(e scrape.ProgressEvent) {
			if e.Type == scrape.ProgressPostFailed {
				failed = append(failed, e.PostID)
			}
		})

		require.NoError(t, err)
		assert.Equal(t, 2, result.PostsCount, "both posts survive")
		assert.Equal(t, 1, result.CommentsCount)
		assert.Equal(t, 1, result.ErrorsCount)
		assert.Equal(t, []string{"p1"}, failed)
		assert.Len(t, store.posts, 2)
	})

	t.Run("persists nothing when the post stream fails", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		source := &mock.Source{
			FetchPostsFn: func(_ context.Context, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
				return mock.PostsErr(postsFixture("p1"), subgrab.Errorf(subgrab.EUNAVAILABLE, "listing down"))
			},
			FetchCommentsFn: func(_ context.Context, postID string, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
				return mock.Comments([]*subgrab.Comment{{ID: "c1", PostID: postID}})
			},
		}

		scraper := &scrape.Scraper{Source: source, Store: store.asMock(), Subreddit: "golang", CommentLimit: -1}
		result, err := scraper.Run(context.Background(), subgrab.FetchOptions{}, nil)

		require.Error(t, err)
		assert.Equal(t, subgrab.EUNAVAILABLE, subgrab.ErrorCode(err))
		assert.Empty(t, store.posts, "an interrupted run leaves no partial mutation")
		assert.Empty(t, store.comments)
		assert.Empty(t, store.saves)
		assert.NotNil(t, result.EndTime, "end time is set on the error path")
	})

	t.Run("counts fetched items even when the store reports nothing new", func(t *testing.T) {
		t.Parallel()

		store := &mock.Store{
			SavePostsFn: func(_ context.Context, _ []*subgrab.Post) (int, error) {
				return 0, nil
			},
			SaveCommentsFn: func(_ context.Context, _ []*subgrab.Comment) (int, error) {
				return 0, nil
			},
		}
		source := &mock.Source{
			FetchPostsFn: func(_ context.Context, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
				return mock.Posts(postsFixture("p1", "p2"))
			},
			FetchCommentsFn: func(_ context.Context, postID string, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
				return mock.Comments([]*subgrab.Comment{{ID: "c-" + postID, PostID: postID}})
			},
		}

		scraper := &scrape.Scraper{Source: source, Store: store, Subreddit: "golang", CommentLimit: -1}
		result, err := scraper.Run(context.Background(), subgrab.FetchOptions{}, nil)

		require.NoError(t, err)
		assert.Equal(t, 2, result.PostsCount, "counts reflect fetched items, not store deltas")
		assert.Equal(t, 2, result.CommentsCount)
	})

	t.Run("skips comment fetching when the limit is zero", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		source := &mock.Source{
			FetchPostsFn: func(_ context.Context, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
				return mock.Posts(postsFixture("p1"))
			},
			FetchCommentsFn: func(_ context.Context, postID string, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
				t.Errorf("unexpected comment fetch for %s", postID)
				return mock.Comments(nil)
			},
		}

		scraper := &scrape.Scraper{Source: source, Store: store.asMock(), Subreddit: "golang"}
		result, err := scraper.Run(context.Background(), subgrab.FetchOptions{}, nil)

		require.NoError(t, err)
		assert.Equal(t, 1, result.PostsCount)
		assert.Zero(t, result.CommentsCount)
		assert.Len(t, store.posts, 1)
	})

	t.Run("skips image downloads when disabled", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		posts := postsFixture("p1")
		posts[0].ImageURL = "https://i.redd.it/a.jpg"

		source := &mock.Source{
			FetchPostsFn: func(_ context.Context, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
				return mock.Posts(posts)
			},
			DownloadImageFn: func(_ context.Context, _, itemID string, _ subgrab.ContentKind) string {
				t.Errorf("unexpected download for %s", itemID)
				return ""
			},
		}

		scraper := &scrape.Scraper{Source: source, Store: store.asMock(), Subreddit: "golang", SkipImages: true}
		result, err := scraper.Run(context.Background(), subgrab.FetchOptions{}, nil)

		require.NoError(t, err)
		assert.Zero(t, result.ImagesCount)
		assert.Zero(t, result.ErrorsCount)
		assert.Empty(t, store.posts[0].ImagePath)
	})

	t.Run("counts a failed image download as an error", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		posts := postsFixture("p1")
		posts[0].ImageURL = "https://i.redd.it/gone.jpg"

		source := &mock.Source{
			FetchPostsFn: func(_ context.Context, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
				return mock.Posts(posts)
			},
			DownloadImageFn: func(_ context.Context, _, _ string, _ subgrab.ContentKind) string {
				return ""
			},
		}

		scraper := &scrape.Scraper{Source: source, Store: store.asMock(), Subreddit: "golang"}
		result, err := scraper.Run(context.Background(), subgrab.FetchOptions{}, nil)

		require.NoError(t, err)
		assert.Zero(t, result.ImagesCount)
		assert.Equal(t, 1, result.ErrorsCount)
	})

	t.Run("downloads post and comment images", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		posts := postsFixture("p1")
		posts[0].ImageURL = "https://i.redd.it/a.jpg"

		source := &mock.Source{
			FetchPostsFn: func(_ context.Context, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
				return mock.Posts(posts)
			},
			FetchCommentsFn: func(_ context.Context, postID string, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
				return mock.Comments([]*subgrab.Comment{
					{ID: "c1", PostID: postID, ImageURL: "https://i.redd.it/b.png"},
					{ID: "c2", PostID: postID},
				})
			},
			DownloadImageFn: func(_ context.Context, url, itemID string, kind subgrab.ContentKind) string {
				if kind == subgrab.KindComment {
					return "/imgs/comment_" + itemID + ".png"
				}
				return "/imgs/" + itemID + ".jpg"
			},
		}

		scraper := &scrape.Scraper{Source: source, Store: store.asMock(), Subreddit: "golang", CommentLimit: -1}
		result, err := scraper.Run(context.Background(), subgrab.FetchOptions{}, nil)

		require.NoError(t, err)
		assert.Equal(t, 2, result.ImagesCount)
		require.Len(t, store.posts, 1)
		assert.Equal(t, "/imgs/p1.jpg", store.posts[0].ImagePath)
		require.Len(t, store.comments, 2)
		assert.Equal(t, "/imgs/comment_c1.png", store.comments[0].ImagePath)
		assert.Empty(t, store.comments[1].ImagePath)
	})

	t.Run("bounds each thread by the comment limit", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		source := &mock.Source{
			FetchPostsFn: func(_ context.Context, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
				assert.Equal(t, 2, opts.Limit)
				return mock.Posts(postsFixture("p1"))
			},
			FetchCommentsFn: func(_ context.Context, _ string, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
				assert.Equal(t, 10, opts.Limit, "threads get their own bound, not the post limit")
				return mock.Comments(nil)
			},
		}

		scraper := &scrape.Scraper{Source: source, Store: store.asMock(), Subreddit: "golang", CommentLimit: 10}
		_, err := scraper.Run(context.Background(), subgrab.FetchOptions{Limit: 2}, nil)
		require.NoError(t, err)
	})

	t.Run("full-tree fetches pass no limit to the source", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		source := &mock.Source{
			FetchPostsFn: func(_ context.Context, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
				return mock.Posts(postsFixture("p1"))
			},
			FetchCommentsFn: func(_ context.Context, _ string, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
				assert.Zero(t, opts.Limit)
				return mock.Comments(nil)
			},
		}

		scraper := &scrape.Scraper{Source: source, Store: store.asMock(), Subreddit: "golang", CommentLimit: -1}
		_, err := scraper.Run(context.Background(), subgrab.FetchOptions{}, nil)
		require.NoError(t, err)
	})

	t.Run("emits progress events in order", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		source := &mock.Source{
			FetchPostsFn: func(_ context.Context, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
				return mock.Posts(postsFixture("p1"))
			},
			FetchCommentsFn: func(_ context.Context, _ string, _ subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
				return mock.Comments(nil)
			},
		}

		var events []scrape.ProgressType
		scraper := &scrape.Scraper{Source: source, Store: store.asMock(), Subreddit: "golang", CommentLimit: -1}
		_, err := scraper.Run(context.Background(), subgrab.FetchOptions{}, func(e scrape.ProgressEvent) {
			events = append(events, e.Type)
		})

		require.NoError(t, err)
		assert.Equal(t, []scrape.ProgressType{
			scrape.ProgressStarted,
			scrape.ProgressPostScraped,
			scrape.ProgressFinished,
		}, events)
	})
}

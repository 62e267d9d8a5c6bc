// Package scrape provides the ingestion orchestration. It walks a
// source's post stream, pulls the comment tree and images for each post,
// and merges everything into the store in one batched write at the end
// of the run.
package scrape

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/subgrab"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultImageWorkers bounds concurrent image downloads per post.
const DefaultImageWorkers = 4

// Scraper orchestrates one subreddit's ingestion run.
type Scraper struct {
	Source       subgrab.Source
	Store        subgrab.Store
	Logger       *slog.Logger
	Subreddit    string
	ImageWorkers int

	// CommentLimit bounds each post's comment stream: a positive value
	// truncates the thread, zero skips comment fetching entirely, and a
	// negative value fetches the full tree.
	CommentLimit int

	// SkipImages disables image downloads for the run.
	SkipImages bool
}

// ProgressEvent reports progress during a scrape run.
type ProgressEvent struct {
	Type     ProgressType
	PostID   string
	Posts    int
	Comments int
	Error    error
}

// ProgressType indicates the type of progress event.
type ProgressType int

const (
	ProgressStarted ProgressType = iota
	ProgressPostScraped
	ProgressPostFailed
	ProgressFinished
)

// ProgressFunc is a callback for reporting scrape progress.
type ProgressFunc func(event ProgressEvent)

// Run executes one scrape pass and returns its summary. Everything is
// collected in memory and written through one SavePosts call followed by
// one SaveComments call, so an interrupted run persists nothing: a
// failure of the post stream aborts before any write. A failure while
// fetching one post's comments is counted and skipped, keeping the post.
// Result counts reflect fetched items, not store deltas; the merge store
// decides what is new. The returned result always has its end time set.
func (s *Scraper) Run(ctx context.Context, opts subgrab.FetchOptions, progress ProgressFunc) (*subgrab.ScrapeResult, error) {
	result := &subgrab.ScrapeResult{
		ID:        uuid.New().String(),
		Subreddit: s.Subreddit,
		StartTime: time.Now().UTC(),
	}
	defer result.Complete()

	logger := s.logger()
	logger.Info("scrape started", "run_id", result.ID, "subreddit", s.Subreddit, "source", s.Source.Name())

	if progress != nil {
		progress(ProgressEvent{Type: ProgressStarted})
	}

	var posts []*subgrab.Post
	var comments []*subgrab.Comment

	for post, err := range s.Source.FetchPosts(ctx, opts) {
		if err != nil {
			result.ErrorsCount++
			logger.Error("scrape aborted, nothing persisted", "run_id", result.ID, "error", err)
			return result, err
		}
		result.PostsCount++

		var postComments []*subgrab.Comment
		if s.CommentLimit != 0 {
			var commentsErr error
			postComments, commentsErr = s.scrapeComments(ctx, post.ID, opts)
			if commentsErr != nil {
				result.ErrorsCount++
				logger.Warn("comments failed, keeping post", "post_id", post.ID, "error", commentsErr)
				if progress != nil {
					progress(ProgressEvent{Type: ProgressPostFailed, PostID: post.ID, Error: commentsErr})
				}
			}
		}
		result.CommentsCount += len(postComments)

		s.downloadImages(ctx, post, postComments, result)

		posts = append(posts, post)
		comments = append(comments, postComments...)

		if progress != nil {
			progress(ProgressEvent{
				Type:     ProgressPostScraped,
				PostID:   post.ID,
				Posts:    result.PostsCount,
				Comments: result.CommentsCount,
			})
		}
	}

	if len(posts) > 0 {
		if _, err := s.Store.SavePosts(ctx, posts); err != nil {
			result.ErrorsCount++
			logger.Error("post save failed", "run_id", result.ID, "error", err)
			return result, err
		}
	}
	if len(comments) > 0 {
		if _, err := s.Store.SaveComments(ctx, comments); err != nil {
			result.ErrorsCount++
			logger.Error("comment save failed", "run_id", result.ID, "error", err)
			return result, err
		}
	}

	if progress != nil {
		progress(ProgressEvent{Type: ProgressFinished, Posts: result.PostsCount, Comments: result.CommentsCount})
	}

	logger.Info("scrape finished",
		"run_id", result.ID,
		"posts", result.PostsCount,
		"comments", result.CommentsCount,
		"images", result.ImagesCount,
		"errors", result.ErrorsCount,
	)
	return result, nil
}

// scrapeComments drains one post's comment stream. opts.Limit bounds
// posts, not threads; each thread gets its own CommentLimit bound, with
// negative meaning unbounded.
func (s *Scraper) scrapeComments(ctx context.Context, postID string, opts subgrab.FetchOptions) ([]*subgrab.Comment, error) {
	commentOpts := subgrab.FetchOptions{Sort: opts.Sort}
	if s.CommentLimit > 0 {
		commentOpts.Limit = s.CommentLimit
	}

	var comments []*subgrab.Comment
	for comment, err := range s.Source.FetchComments(ctx, postID, commentOpts) {
		if err != nil {
			return comments, err
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

// downloadImages fills ImagePath on the post and its comments through a
// bounded worker pool. Downloads never fail the run; a URL that couldn't
// be fetched leaves the path empty and bumps the error counter.
func (s *Scraper) downloadImages(ctx context.Context, post *subgrab.Post, comments []*subgrab.Comment, result *subgrab.ScrapeResult) {
	if s.SkipImages {
		return
	}

	workers := s.ImageWorkers
	if workers <= 0 {
		workers = DefaultImageWorkers
	}

	var g errgroup.Group
	g.SetLimit(workers)

	if post.ImageURL != "" {
		g.Go(func() error {
			post.ImagePath = s.Source.DownloadImage(ctx, post.ImageURL, post.ID, subgrab.KindPost)
			return nil
		})
	}
	for _, comment := range comments {
		if comment.ImageURL == "" {
			continue
		}
		g.Go(func() error {
			comment.ImagePath = s.Source.DownloadImage(ctx, comment.ImageURL, comment.ID, subgrab.KindComment)
			return nil
		})
	}
	_ = g.Wait()

	if post.ImageURL != "" {
		if post.ImagePath != "" {
			result.ImagesCount++
		} else {
			result.ErrorsCount++
		}
	}
	for _, comment := range comments {
		if comment.ImageURL == "" {
			continue
		}
		if comment.ImagePath != "" {
			result.ImagesCount++
		} else {
			result.ErrorsCount++
		}
	}
}

func (s *Scraper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Package slog provides logging decorators for the domain interfaces.
package slog

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/fwojciec/subgrab"
)

// Ensure LoggingSource implements subgrab.Source.
var _ subgrab.Source = (*LoggingSource)(nil)

// LoggingSource wraps a Source with logging for fetch operations.
type LoggingSource struct {
	next   subgrab.Source
	logger *slog.Logger
}

// NewLoggingSource creates a new LoggingSource.
func NewLoggingSource(next subgrab.Source, logger *slog.Logger) *LoggingSource {
	return &LoggingSource{next: next, logger: logger}
}

// FetchPosts delegates to the wrapped source and logs the drained stream.
// The log line is emitted when the consumer stops ranging, so the count
// reflects what was actually consumed.
func (s *LoggingSource) FetchPosts(ctx context.Context, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
	return func(yield func(*subgrab.Post, error) bool) {
		begin := time.Now()
		count := 0
		var streamErr error
		for post, err := range s.next.FetchPosts(ctx, opts) {
			if err != nil {
				streamErr = err
			} else {
				count++
			}
			if !yield(post, err) {
				break
			}
		}
		s.logger.Info("fetch posts",
			"source", s.next.Name(),
			"count", count,
			"duration", time.Since(begin),
			"err", streamErr,
		)
	}
}

// FetchComments delegates to the wrapped source and logs the drained stream.
func (s *LoggingSource) FetchComments(ctx context.Context, postID string, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
	return func(yield func(*subgrab.Comment, error) bool) {
		begin := time.Now()
		count := 0
		var streamErr error
		for comment, err := range s.next.FetchComments(ctx, postID, opts) {
			if err != nil {
				streamErr = err
			} else {
				count++
			}
			if !yield(comment, err) {
				break
			}
		}
		s.logger.Info("fetch comments",
			"source", s.next.Name(),
			"post_id", postID,
			"count", count,
			"duration", time.Since(begin),
			"err", streamErr,
		)
	}
}

// ExtractImageURL delegates to the wrapped source.
func (s *LoggingSource) ExtractImageURL(text string) string {
	return s.next.ExtractImageURL(text)
}

// DownloadImage delegates to the wrapped source and logs the outcome.
func (s *LoggingSource) DownloadImage(ctx context.Context, url, itemID string, kind subgrab.ContentKind) (path string) {
	defer func(begin time.Time) {
		s.logger.Debug("download image",
			"url", url,
			"item_id", itemID,
			"path", path,
			"duration", time.Since(begin),
		)
	}(time.Now())
	return s.next.DownloadImage(ctx, url, itemID, kind)
}

// Name delegates to the wrapped source.
func (s *LoggingSource) Name() string {
	return s.next.Name()
}

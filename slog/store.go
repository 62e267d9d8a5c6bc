package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/subgrab"
)

// Ensure LoggingStore implements subgrab.Store.
var _ subgrab.Store = (*LoggingStore)(nil)

// LoggingStore wraps a Store with logging for save operations. Loads are
// delegated silently.
type LoggingStore struct {
	next   subgrab.Store
	logger *slog.Logger
}

// NewLoggingStore creates a new LoggingStore.
func NewLoggingStore(next subgrab.Store, logger *slog.Logger) *LoggingStore {
	return &LoggingStore{next: next, logger: logger}
}

// SavePosts delegates to the wrapped store and logs the merge outcome.
func (s *LoggingStore) SavePosts(ctx context.Context, posts []*subgrab.Post) (added int, err error) {
	defer func(begin time.Time) {
		s.logger.Info("save posts",
			"batch", len(posts),
			"added", added,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.SavePosts(ctx, posts)
}

// SaveComments delegates to the wrapped store and logs the merge outcome.
func (s *LoggingStore) SaveComments(ctx context.Context, comments []*subgrab.Comment) (added int, err error) {
	defer func(begin time.Time) {
		s.logger.Info("save comments",
			"batch", len(comments),
			"added", added,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.SaveComments(ctx, comments)
}

// LoadPosts delegates to the wrapped store.
func (s *LoggingStore) LoadPosts(ctx context.Context, limit int) ([]*subgrab.Post, error) {
	return s.next.LoadPosts(ctx, limit)
}

// LoadComments delegates to the wrapped store.
func (s *LoggingStore) LoadComments(ctx context.Context, postID string, limit int) ([]*subgrab.Comment, error) {
	return s.next.LoadComments(ctx, postID, limit)
}

// TotalPosts delegates to the wrapped store.
func (s *LoggingStore) TotalPosts(ctx context.Context) (int, error) {
	return s.next.TotalPosts(ctx)
}

// TotalComments delegates to the wrapped store.
func (s *LoggingStore) TotalComments(ctx context.Context) (int, error) {
	return s.next.TotalComments(ctx)
}

package mock

import (
	"context"

	"github.com/fwojciec/subgrab"
)

var _ subgrab.Store = (*Store)(nil)

// Store is a mock implementation of subgrab.Store.
type Store struct {
	SavePostsFn     func(ctx context.Context, posts []*subgrab.Post) (int, error)
	SaveCommentsFn  func(ctx context.Context, comments []*subgrab.Comment) (int, error)
	LoadPostsFn     func(ctx context.Context, limit int) ([]*subgrab.Post, error)
	LoadCommentsFn  func(ctx context.Context, postID string, limit int) ([]*subgrab.Comment, error)
	TotalPostsFn    func(ctx context.Context) (int, error)
	TotalCommentsFn func(ctx context.Context) (int, error)
}

func (s *Store) SavePosts(ctx context.Context, posts []*subgrab.Post) (int, error) {
	return s.SavePostsFn(ctx, posts)
}

func (s *Store) SaveComments(ctx context.Context, comments []*subgrab.Comment) (int, error) {
	return s.SaveCommentsFn(ctx, comments)
}

func (s *Store) LoadPosts(ctx context.Context, limit int) ([]*subgrab.Post, error) {
	return s.LoadPostsFn(ctx, limit)
}

func (s *Store) LoadComments(ctx context.Context, postID string, limit int) ([]*subgrab.Comment, error) {
	return s.LoadCommentsFn(ctx, postID, limit)
}

func (s *Store) TotalPosts(ctx context.Context) (int, error) {
	return s.TotalPostsFn(ctx)
}

func (s *Store) TotalComments(ctx context.Context) (int, error) {
	return s.TotalCommentsFn(ctx)
}

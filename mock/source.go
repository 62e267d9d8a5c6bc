// Package mock provides function-field mock implementations of the
// subgrab interfaces for use in tests.
package mock

import (
	"context"
	"iter"

	"github.com/fwojciec/subgrab"
)

var _ subgrab.Source = (*Source)(nil)

// Source is a mock implementation of subgrab.Source.
type Source struct {
	FetchPostsFn      func(ctx context.Context, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error]
	FetchCommentsFn   func(ctx context.Context, postID string, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error]
	ExtractImageURLFn func(text string) string
	DownloadImageFn   func(ctx context.Context, url, itemID string, kind subgrab.ContentKind) string
	NameFn            func() string
}

func (s *Source) FetchPosts(ctx context.Context, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
	return s.FetchPostsFn(ctx, opts)
}

func (s *Source) FetchComments(ctx context.Context, postID string, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
	return s.FetchCommentsFn(ctx, postID, opts)
}

func (s *Source) ExtractImageURL(text string) string {
	if s.ExtractImageURLFn == nil {
		return ""
	}
	return s.ExtractImageURLFn(text)
}

func (s *Source) DownloadImage(ctx context.Context, url, itemID string, kind subgrab.ContentKind) string {
	if s.DownloadImageFn == nil {
		return ""
	}
	return s.DownloadImageFn(ctx, url, itemID, kind)
}

func (s *Source) Name() string {
	if s.NameFn == nil {
		return "mock"
	}
	return s.NameFn()
}

// Posts adapts a fixed slice into the sequence FetchPostsFn returns.
func Posts(posts []*subgrab.Post) iter.Seq2[*subgrab.Post, error] {
	return func(yield func(*subgrab.Post, error) bool) {
		for _, p := range posts {
			if !yield(p, nil) {
				return
			}
		}
	}
}

// Comments adapts a fixed slice into the sequence FetchCommentsFn
// returns.
func Comments(comments []*subgrab.Comment) iter.Seq2[*subgrab.Comment, error] {
	return func(yield func(*subgrab.Comment, error) bool) {
		for _, c := range comments {
			if !yield(c, nil) {
				return
			}
		}
	}
}

// PostsErr yields the given posts and then a terminal error.
func PostsErr(posts []*subgrab.Post, err error) iter.Seq2[*subgrab.Post, error] {
	return func(yield func(*subgrab.Post, error) bool) {
		for _, p := range posts {
			if !yield(p, nil) {
				return
			}
		}
		yield(nil, err)
	}
}

// CommentsErr yields the given comments and then a terminal error.
func CommentsErr(comments []*subgrab.Comment, err error) iter.Seq2[*subgrab.Comment, error] {
	return func(yield func(*subgrab.Comment, error) bool) {
		for _, c := range comments {
			if !yield(c, nil) {
				return
			}
		}
		yield(nil, err)
	}
}

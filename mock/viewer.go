package mock

import (
	"context"

	"github.com/fwojciec/subgrab"
)

var _ subgrab.Viewer = (*Viewer)(nil)

// Viewer is a mock implementation of subgrab.Viewer.
type Viewer struct {
	ChunkFn        func(ctx context.Context, n, size int) (*subgrab.Chunk, error)
	TotalChunksFn  func(ctx context.Context, size int) (int, error)
	PostCommentsFn func(ctx context.Context, postID string) ([]*subgrab.CommentNode, error)
	ImagePathFn    func(filename string) (string, error)
}

func (v *Viewer) Chunk(ctx context.Context, n, size int) (*subgrab.Chunk, error) {
	return v.ChunkFn(ctx, n, size)
}

func (v *Viewer) TotalChunks(ctx context.Context, size int) (int, error) {
	return v.TotalChunksFn(ctx, size)
}

func (v *Viewer) PostComments(ctx context.Context, postID string) ([]*subgrab.CommentNode, error) {
	return v.PostCommentsFn(ctx, postID)
}

func (v *Viewer) ImagePath(filename string) (string, error) {
	return v.ImagePathFn(filename)
}

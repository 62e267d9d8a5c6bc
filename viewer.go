package subgrab

import "context"

// PostView is a post prepared for presentation: image reduced to a
// filename, comments reconstructed into trees.
type PostView struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Image        string         `json:"image,omitempty"`
	Text         string         `json:"text"`
	CreatedTime  string         `json:"created_time"`
	Comments     []*CommentNode `json:"comments"`
	CommentCount int            `json:"comment_count"`
}

// Chunk is a fixed-size page of posts returned to the viewer. A request
// past the end yields an empty post list rather than an error, so clients
// can stop infinite scroll gracefully.
type Chunk struct {
	ID      int         `json:"id"`
	Posts   []*PostView `json:"posts"`
	HasMore bool        `json:"has_more"`
}

// Viewer is the read API consumed identically by every front end.
type Viewer interface {
	// Chunk returns page n (1-based) of size posts, newest first.
	Chunk(ctx context.Context, n, size int) (*Chunk, error)

	// TotalChunks returns how many pages of the given size exist.
	TotalChunks(ctx context.Context, size int) (int, error)

	// PostComments returns the reconstructed comment trees for one post.
	PostComments(ctx context.Context, postID string) ([]*CommentNode, error)

	// ImagePath resolves a bare image filename to a local path. Returns
	// ENOTFOUND if the image doesn't exist and EINVALID for filenames
	// that escape the image directory.
	ImagePath(filename string) (string, error)
}

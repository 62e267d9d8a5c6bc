// Package viewer assembles stored posts and comments into presentation
// pages. It reads through subgrab.Store and keeps a cached snapshot of the
// archive, reloading lazily after Invalidate.
package viewer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fwojciec/subgrab"
)

// DefaultChunkSize is the page size used when a client asks for none or
// an invalid one.
const DefaultChunkSize = 5

// Ensure Manager implements subgrab.Viewer at compile time.
var _ subgrab.Viewer = (*Manager)(nil)

// Manager implements subgrab.Viewer over a Store. Safe for concurrent
// use.
type Manager struct {
	store    subgrab.Store
	imageDir string

	mu       sync.RWMutex
	loaded   bool
	posts    []*subgrab.Post
	comments map[string][]*subgrab.Comment
}

// NewManager creates a Manager serving images from imageDir.
func NewManager(store subgrab.Store, imageDir string) *Manager {
	return &Manager{
		store:    store,
		imageDir: imageDir,
	}
}

// Invalidate drops the cached snapshot. The next read reloads from the
// store. Call after a scrape finishes.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = false
	m.posts = nil
	m.comments = nil
}

// Chunk returns page n (1-based) of size posts, newest first. Pages past
// the end come back with an empty post list, not an error.
func (m *Manager) Chunk(ctx context.Context, n, size int) (*subgrab.Chunk, error) {
	if n < 1 {
		return nil, subgrab.Errorf(subgrab.EINVALID, "chunk number must be positive, got %d", n)
	}
	if size < 1 {
		size = DefaultChunkSize
	}

	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	start := (n - 1) * size
	end := min(start+size, len(m.posts))

	chunk := &subgrab.Chunk{
		ID:      n,
		Posts:   []*subgrab.PostView{},
		HasMore: end < len(m.posts),
	}
	for i := start; i < end; i++ {
		chunk.Posts = append(chunk.Posts, m.postView(m.posts[i]))
	}
	return chunk, nil
}

// TotalChunks returns how many pages of the given size exist.
func (m *Manager) TotalChunks(ctx context.Context, size int) (int, error) {
	if size < 1 {
		size = DefaultChunkSize
	}

	if err := m.ensureLoaded(ctx); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return (len(m.posts) + size - 1) / size, nil
}

// PostComments returns the reconstructed comment trees for one post.
func (m *Manager) PostComments(ctx context.Context, postID string) ([]*subgrab.CommentNode, error) {
	if postID == "" {
		return nil, subgrab.Errorf(subgrab.EINVALID, "post ID required")
	}

	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return subgrab.BuildCommentTree(m.comments[postID], postID, true), nil
}

// ImagePath resolves a bare image filename to its path under the image
// directory. Filenames that would escape the directory are rejected with
// EINVALID; missing images return ENOTFOUND.
func (m *Manager) ImagePath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", subgrab.Errorf(subgrab.EINVALID, "invalid image filename %q", filename)
	}
	path := filepath.Join(m.imageDir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", subgrab.Errorf(subgrab.ENOTFOUND, "image %q not found", filename)
	}
	return path, nil
}

func (m *Manager) ensureLoaded(ctx context.Context) error {
	m.mu.RLock()
	loaded := m.loaded
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}

	posts, err := m.store.LoadPosts(ctx, 0)
	if err != nil {
		return err
	}
	all, err := m.store.LoadComments(ctx, "", 0)
	if err != nil {
		return err
	}

	comments := make(map[string][]*subgrab.Comment)
	for _, c := range all {
		comments[c.PostID] = append(comments[c.PostID], c)
	}

	m.posts = posts
	m.comments = comments
	m.loaded = true
	return nil
}

func (m *Manager) postView(post *subgrab.Post) *subgrab.PostView {
	comments := m.comments[post.ID]
	return &subgrab.PostView{
		ID:           post.ID,
		Title:        post.Title,
		Image:        imageFilename(post.ImagePath),
		Text:         post.Text,
		CreatedTime:  post.CreatedTime,
		Comments:     subgrab.BuildCommentTree(comments, post.ID, true),
		CommentCount: len(comments),
	}
}

func imageFilename(imagePath string) string {
	if imagePath == "" {
		return ""
	}
	return filepath.Base(imagePath)
}

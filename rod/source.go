// Package rod implements subgrab.Source by driving a headless Chrome
// browser against Reddit's web UI. It is the fallback for subreddits the
// JSON API won't serve, at the cost of being much slower and capturing
// only what the feed actually renders.
package rod

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/fwojciec/subgrab"
	"github.com/fwojciec/subgrab/htmltomarkdown"
	"github.com/fwojciec/subgrab/images"
)

// DefaultBaseURL is the public Reddit web UI.
const DefaultBaseURL = "https://www.reddit.com"

// defaultScrollPasses bounds how far down the feed one FetchPosts call
// scrolls. Each pass loads roughly 25 more posts.
const defaultScrollPasses = 10

var _ subgrab.Source = (*Source)(nil)

// Source scrapes one subreddit through a rendered browser session.
type Source struct {
	subreddit    string
	images       *images.Service
	fetcher      subgrab.Fetcher
	conv         *htmltomarkdown.Converter
	logger       *slog.Logger
	baseURL      string
	scrollPasses int
}

// Option configures a Source.
type Option func(*Source)

// WithFetcher overrides the page fetcher. Without it a headless browser
// is launched lazily on first use.
func WithFetcher(f subgrab.Fetcher) Option {
	return func(s *Source) { s.fetcher = f }
}

// WithBaseURL overrides the web UI base URL.
func WithBaseURL(u string) Option {
	return func(s *Source) { s.baseURL = u }
}

// WithScrollPasses sets how many scroll passes one listing fetch makes.
func WithScrollPasses(n int) Option {
	return func(s *Source) { s.scrollPasses = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// NewSource creates a browser-backed source for one subreddit. The
// browser launches on the first fetch, not here, so construction never
// requires Chrome to be present.
func NewSource(subreddit string, imgs *images.Service, opts ...Option) *Source {
	s := &Source{
		subreddit:    subreddit,
		images:       imgs,
		conv:         htmltomarkdown.NewConverter(),
		logger:       slog.Default(),
		baseURL:      DefaultBaseURL,
		scrollPasses: defaultScrollPasses,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the backend identifier.
func (s *Source) Name() string {
	return "browser"
}

// ExtractImageURL delegates to the shared image service.
func (s *Source) ExtractImageURL(text string) string {
	return s.images.ExtractImageURL(text)
}

// DownloadImage delegates to the shared image service.
func (s *Source) DownloadImage(ctx context.Context, url, itemID string, kind subgrab.ContentKind) string {
	return s.images.DownloadImage(ctx, url, itemID, kind)
}

// Close releases the browser if one was launched.
func (s *Source) Close() error {
	if s.fetcher == nil {
		return nil
	}
	return s.fetcher.Close()
}

// FetchPosts renders the subreddit feed, scrolling to load more posts,
// and yields what the page contains. A browser session sees one
// contiguous slice of the feed, so a single scrolled render is the whole
// batch; there is no cursor to resume from.
func (s *Source) FetchPosts(ctx context.Context, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
	return func(yield func(*subgrab.Post, error) bool) {
		fetcher, err := s.ensureFetcher()
		if err != nil {
			yield(nil, err)
			return
		}

		sort := string(opts.Sort)
		if sort == "" {
			sort = string(subgrab.SortNew)
		}
		url := fmt.Sprintf("%s/r/%s/%s/", s.baseURL, s.subreddit, sort)
		if opts.Sort == subgrab.SortTop && opts.Time != "" {
			url += "?t=" + string(opts.Time)
		}

		html, err := fetcher.FetchScrolled(ctx, url, s.scrollPasses)
		if err != nil {
			yield(nil, err)
			return
		}

		posts, err := parseListing(html, s.conv)
		if err != nil {
			yield(nil, err)
			return
		}

		seen := make(map[string]bool)
		yielded := 0
		for _, post := range posts {
			if seen[post.ID] {
				continue
			}
			if !opts.InWindow(post.CreatedUTC) {
				continue
			}
			seen[post.ID] = true

			if post.ImageURL != "" {
				post.ImageURL = s.images.ExtractImageURL(post.ImageURL)
			}
			if post.ImageURL == "" {
				post.ImageURL = s.images.ExtractImageURL(post.Text)
			}

			if !yield(post, nil) {
				return
			}
			yielded++
			if opts.Limit > 0 && yielded >= opts.Limit {
				return
			}
		}
	}
}

// FetchComments renders the post page scrolled to the bottom and yields
// every comment the page contains.
func (s *Source) FetchComments(ctx context.Context, postID string, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
	return func(yield func(*subgrab.Comment, error) bool) {
		if postID == "" {
			yield(nil, subgrab.Errorf(subgrab.EINVALID, "post ID required"))
			return
		}

		fetcher, err := s.ensureFetcher()
		if err != nil {
			yield(nil, err)
			return
		}

		url := fmt.Sprintf("%s/r/%s/comments/%s/", s.baseURL, s.subreddit, postID)
		html, err := fetcher.FetchScrolled(ctx, url, s.scrollPasses)
		if err != nil {
			yield(nil, err)
			return
		}

		comments, err := parseComments(html, postID, s.conv)
		if err != nil {
			yield(nil, err)
			return
		}

		seen := make(map[string]bool)
		yielded := 0
		for _, comment := range comments {
			if seen[comment.ID] {
				continue
			}
			if !opts.InWindow(comment.CreatedUTC) {
				continue
			}
			seen[comment.ID] = true

			comment.ImageURL = s.images.ExtractImageURL(comment.Text)

			if !yield(comment, nil) {
				return
			}
			yielded++
			if opts.Limit > 0 && yielded >= opts.Limit {
				return
			}
		}
	}
}

func (s *Source) ensureFetcher() (subgrab.Fetcher, error) {
	if s.fetcher == nil {
		fetcher, err := NewFetcher()
		if err != nil {
			return nil, err
		}
		s.fetcher = NewLoggingFetcher(fetcher, s.logger)
	}
	return s.fetcher, nil
}

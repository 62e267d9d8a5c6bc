// Package pullpush implements subgrab.Source against the PullPush
// historical archive API. PullPush requires no authentication and serves
// fixed-size batches newest first, so pagination is driven by an exclusive
// created_utc cursor advanced after every batch.
package pullpush

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fwojciec/subgrab"
	"github.com/fwojciec/subgrab/images"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public PullPush search endpoint.
const DefaultBaseURL = "https://api.pullpush.io/reddit/search"

// pageSize is the maximum batch size PullPush serves per request. A batch
// shorter than this is treated as the end of the listing.
const pageSize = 100

// defaultRPS paces batch requests. PullPush is a free community service;
// one request per second keeps the scraper polite.
const defaultRPS = 1.0

// Ensure Source implements subgrab.Source at compile time.
var _ subgrab.Source = (*Source)(nil)

// Source fetches one subreddit's posts and comments from PullPush.
type Source struct {
	subreddit   string
	images      *images.Service
	client      *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
	baseURL     string
	retryDelays []time.Duration
}

// Option configures a Source.
type Option func(*Source)

// WithBaseURL points the source at a different endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(s *Source) { s.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

// WithPacing sets the request rate in requests per second.
func WithPacing(rps float64) Option {
	return func(s *Source) { s.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithRetryDelays sets the backoff delays between request retries. Useful
// for testing without waiting for real delays.
func WithRetryDelays(delays []time.Duration) Option {
	return func(s *Source) { s.retryDelays = delays }
}

// WithLogger sets the logger for skipped-record warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// NewSource creates a PullPush source for one subreddit.
func NewSource(subreddit string, imgs *images.Service, opts ...Option) *Source {
	s := &Source{
		subreddit:   subreddit,
		images:      imgs,
		client:      &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(defaultRPS), 1),
		logger:      slog.Default(),
		baseURL:     DefaultBaseURL,
		retryDelays: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the backend identifier.
func (s *Source) Name() string {
	return "pullpush"
}

// ExtractImageURL delegates to the shared image service.
func (s *Source) ExtractImageURL(text string) string {
	return s.images.ExtractImageURL(text)
}

// DownloadImage delegates to the shared image service.
func (s *Source) DownloadImage(ctx context.Context, url, itemID string, kind subgrab.ContentKind) string {
	return s.images.DownloadImage(ctx, url, itemID, kind)
}

// rawPost is PullPush's native submission shape. created_utc arrives as a
// float for some historical records.
type rawPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	CreatedUTC float64 `json:"created_utc"`
	URL        string  `json:"url"`
}

type rawComment struct {
	ID         string  `json:"id"`
	LinkID     string  `json:"link_id"`
	ParentID   string  `json:"parent_id"`
	Body       string  `json:"body"`
	CreatedUTC float64 `json:"created_utc"`
}

// FetchPosts yields posts newest first. Each batch request uses
// (oldest created_utc seen − 1) as the exclusive upper bound for the next,
// which guarantees forward progress even when many records share a
// timestamp; ids already yielded in this call are suppressed at batch
// boundaries.
func (s *Source) FetchPosts(ctx context.Context, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
	return func(yield func(*subgrab.Post, error) bool) {
		seen := make(map[string]bool)
		cursor := opts.Before
		yielded := 0

		for {
			if err := s.limiter.Wait(ctx); err != nil {
				yield(nil, err)
				return
			}

			var batch []rawPost
			if err := s.fetchBatch(ctx, "submission", s.postParams(cursor, opts.After), &batch); err != nil {
				yield(nil, err)
				return
			}
			if len(batch) == 0 {
				return
			}

			oldest := batch[0].CreatedUTC
			for _, p := range batch[1:] {
				if p.CreatedUTC < oldest {
					oldest = p.CreatedUTC
				}
			}
			cursor = int64(oldest) - 1

			newInBatch := 0
			for _, raw := range batch {
				if raw.ID == "" {
					s.logger.Warn("skipping malformed post record", "subreddit", s.subreddit)
					continue
				}
				if seen[raw.ID] {
					continue
				}
				if !opts.InWindow(int64(raw.CreatedUTC)) {
					continue
				}
				seen[raw.ID] = true
				newInBatch++

				if !yield(s.toPost(raw), nil) {
					return
				}
				yielded++
				if opts.Limit > 0 && yielded >= opts.Limit {
					return
				}
			}

			// A batch of nothing but duplicates or filtered records means
			// the window is exhausted; continuing would loop forever.
			if newInBatch == 0 {
				return
			}
			if len(batch) < pageSize {
				return
			}
		}
	}
}

// FetchComments yields every comment PullPush knows for the post, using
// the same cursor pagination as posts. PullPush returns the flattened
// tree, so no separate "load more" drain is needed.
func (s *Source) FetchComments(ctx context.Context, postID string, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
	return func(yield func(*subgrab.Comment, error) bool) {
		if postID == "" {
			yield(nil, subgrab.Errorf(subgrab.EINVALID, "post ID required"))
			return
		}

		seen := make(map[string]bool)
		cursor := opts.Before
		yielded := 0

		for {
			if err := s.limiter.Wait(ctx); err != nil {
				yield(nil, err)
				return
			}

			var batch []rawComment
			if err := s.fetchBatch(ctx, "comment", s.commentParams(postID, cursor, opts.After), &batch); err != nil {
				yield(nil, err)
				return
			}
			if len(batch) == 0 {
				return
			}

			oldest := batch[0].CreatedUTC
			for _, c := range batch[1:] {
				if c.CreatedUTC < oldest {
					oldest = c.CreatedUTC
				}
			}
			cursor = int64(oldest) - 1

			newInBatch := 0
			for _, raw := range batch {
				if raw.ID == "" {
					s.logger.Warn("skipping malformed comment record", "post_id", postID)
					continue
				}
				if seen[raw.ID] {
					continue
				}
				if !opts.InWindow(int64(raw.CreatedUTC)) {
					continue
				}
				seen[raw.ID] = true
				newInBatch++

				if !yield(s.toComment(raw, postID), nil) {
					return
				}
				yielded++
				if opts.Limit > 0 && yielded >= opts.Limit {
					return
				}
			}

			if newInBatch == 0 {
				return
			}
			if len(batch) < pageSize {
				return
			}
		}
	}
}

func (s *Source) postParams(before, after int64) url.Values {
	params := url.Values{}
	params.Set("subreddit", s.subreddit)
	params.Set("size", strconv.Itoa(pageSize))
	params.Set("sort", "desc")
	if before > 0 {
		params.Set("before", strconv.FormatInt(before, 10))
	}
	if after > 0 {
		params.Set("after", strconv.FormatInt(after, 10))
	}
	return params
}

func (s *Source) commentParams(postID string, before, after int64) url.Values {
	params := url.Values{}
	// PullPush identifies posts by fullname, hence the t3_ prefix.
	params.Set("link_id", "t3_"+postID)
	params.Set("size", strconv.Itoa(pageSize))
	params.Set("sort", "desc")
	if before > 0 {
		params.Set("before", strconv.FormatInt(before, 10))
	}
	if after > 0 {
		params.Set("after", strconv.FormatInt(after, 10))
	}
	return params
}

// fetchBatch GETs one page with retries and decodes its data array.
func (s *Source) fetchBatch(ctx context.Context, endpoint string, params url.Values, out any) error {
	u := fmt.Sprintf("%s/%s/?%s", s.baseURL, endpoint, params.Encode())

	var lastErr error
	for attempt := 0; attempt <= len(s.retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelays[attempt-1]):
			}
		}

		lastErr = s.doGet(ctx, u, out)
		if lastErr == nil {
			return nil
		}
		// Client errors other than rate limiting won't heal with retries.
		if code := subgrab.ErrorCode(lastErr); code == subgrab.ENOTFOUND || code == subgrab.EINVALID {
			return lastErr
		}
	}
	return subgrab.Errorf(subgrab.EUNAVAILABLE, "pullpush unreachable: %v", lastErr)
}

func (s *Source) doGet(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return subgrab.Errorf(subgrab.ENOTFOUND, "resource not found")
	case resp.StatusCode != http.StatusOK:
		return subgrab.Errorf(subgrab.EUNAVAILABLE, "HTTP %d from pullpush", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return subgrab.Errorf(subgrab.EUNAVAILABLE, "malformed pullpush response: %v", err)
	}
	return json.Unmarshal(envelope.Data, out)
}

func (s *Source) toPost(raw rawPost) *subgrab.Post {
	created := int64(raw.CreatedUTC)
	return &subgrab.Post{
		ID:          raw.ID,
		Title:       raw.Title,
		Text:        raw.Selftext,
		CreatedUTC:  created,
		CreatedTime: subgrab.FormatCreatedTime(created),
		ImageURL:    s.images.ExtractImageURL(raw.URL),
	}
}

func (s *Source) toComment(raw rawComment, postID string) *subgrab.Comment {
	// parent_id carries a fullname prefix: t1_ for a comment parent,
	// t3_ when the parent is the post itself (top-level).
	parentID := ""
	if len(raw.ParentID) > 3 && raw.ParentID[:3] == "t1_" {
		parentID = raw.ParentID[3:]
	}

	created := int64(raw.CreatedUTC)
	return &subgrab.Comment{
		ID:          raw.ID,
		PostID:      postID,
		ParentID:    parentID,
		Text:        raw.Body,
		CreatedUTC:  created,
		CreatedTime: subgrab.FormatCreatedTime(created),
		ImageURL:    s.images.ExtractImageURL(raw.Body),
	}
}

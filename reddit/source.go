// Package reddit implements subgrab.Source against Reddit's own JSON API.
// With client credentials it authenticates via OAuth and talks to
// oauth.reddit.com; without them it falls back to the public .json
// listings. Either way requests go through a Chrome-fingerprinted TLS
// transport, since Reddit throttles recognizable bot handshakes.
package reddit

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
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/subgrab"
	"github.com/fwojciec/subgrab/images"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL serves unauthenticated listing requests.
	DefaultBaseURL = "https://www.reddit.com"

	// DefaultOAuthURL serves authenticated requests.
	DefaultOAuthURL = "https://oauth.reddit.com"

	// DefaultAuthURL issues OAuth tokens.
	DefaultAuthURL = "https://www.reddit.com"

	// DefaultUserAgent identifies the scraper. Reddit rejects requests
	// without a descriptive User-Agent.
	DefaultUserAgent = "subgrab/1.0"
)

// pageSize is the listing page size. 100 is the API maximum.
const pageSize = 100

// commentPageSize bounds the initial comment tree request; deeper threads
// are drained through the morechildren endpoint.
const commentPageSize = 500

// moreBatchSize is the maximum number of comment ids one morechildren
// call accepts.
const moreBatchSize = 100

// defaultRPS stays inside the authenticated quota of 100 requests per
// minute with headroom.
const defaultRPS = 1.0

var _ subgrab.Source = (*Source)(nil)

// Source fetches one subreddit's posts and comments from the Reddit API.
type Source struct {
	subreddit    string
	images       *images.Service
	client       *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
	baseURL      string
	authURL      string
	clientID     string
	clientSecret string
	userAgent    string
	retryDelays  []time.Duration

	mu    sync.Mutex
	token string
	exp   time.Time
}

// Option configures a Source.
type Option func(*Source)

// WithCredentials enables OAuth with an installed-app client id and
// secret. Without credentials the source uses the public listings.
func WithCredentials(id, secret string) Option {
	return func(s *Source) {
		s.clientID = id
		s.clientSecret = secret
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Source) { s.userAgent = ua }
}

// WithBaseURL overrides the API endpoint, mainly for tests. It disables
// the automatic switch to the OAuth host.
func WithBaseURL(u string) Option {
	return func(s *Source) { s.baseURL = u }
}

// WithAuthURL overrides the token endpoint, mainly for tests.
func WithAuthURL(u string) Option {
	return func(s *Source) { s.authURL = u }
}

// WithHTTPClient overrides the HTTP client. The default client uses the
// fingerprinting transport from NewTransport.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

// WithPacing sets the request rate in requests per second.
func WithPacing(rps float64) Option {
	return func(s *Source) { s.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithRetryDelays sets the backoff delays between request retries.
func WithRetryDelays(delays []time.Duration) Option {
	return func(s *Source) { s.retryDelays = delays }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// NewSource creates a Reddit API source for one subreddit.
func NewSource(subreddit string, imgs *images.Service, opts ...Option) *Source {
	s := &Source{
		subreddit:   subreddit,
		images:      imgs,
		limiter:     rate.NewLimiter(rate.Limit(defaultRPS), 1),
		logger:      slog.Default(),
		authURL:     DefaultAuthURL,
		userAgent:   DefaultUserAgent,
		retryDelays: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{
			Transport: NewTransport(),
			Timeout:   30 * time.Second,
		}
	}
	if s.baseURL == "" {
		if s.clientID != "" {
			s.baseURL = DefaultOAuthURL
		} else {
			s.baseURL = DefaultBaseURL
		}
	}
	return s
}

// Name returns the backend identifier.
func (s *Source) Name() string {
	return "reddit"
}

// ExtractImageURL delegates to the shared image service.
func (s *Source) ExtractImageURL(text string) string {
	return s.images.ExtractImageURL(text)
}

// DownloadImage delegates to the shared image service.
func (s *Source) DownloadImage(ctx context.Context, url, itemID string, kind subgrab.ContentKind) string {
	return s.images.DownloadImage(ctx, url, itemID, kind)
}

// thing is the kind/data envelope Reddit wraps every object in.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listing struct {
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type apiPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	CreatedUTC float64 `json:"created_utc"`
	URL        string  `json:"url"`
}

type apiComment struct {
	ID         string          `json:"id"`
	ParentID   string          `json:"parent_id"`
	Body       string          `json:"body"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`

	// Children is populated on kind "more" stubs only.
	Children []string `json:"children"`
}

// FetchPosts yields the subreddit's listing in API order, following the
// opaque after cursor until the listing is exhausted.
func (s *Source) FetchPosts(ctx context.Context, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Post, error] {
	return func(yield func(*subgrab.Post, error) bool) {
		seen := make(map[string]bool)
		after := ""
		yielded := 0

		for {
			var page listing
			if err := s.get(ctx, s.listingURL(after, opts), &page); err != nil {
				yield(nil, err)
				return
			}
			if len(page.Data.Children) == 0 {
				return
			}

			for _, child := range page.Data.Children {
				if child.Kind != "t3" {
					continue
				}
				var raw apiPost
				if err := json.Unmarshal(child.Data, &raw); err != nil || raw.ID == "" {
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

				if !yield(s.toPost(raw), nil) {
					return
				}
				yielded++
				if opts.Limit > 0 && yielded >= opts.Limit {
					return
				}
			}

			after = page.Data.After
			if after == "" {
				return
			}
		}
	}
}

// FetchComments yields the post's full comment forest. The initial tree
// request returns nested replies with "more" stubs where Reddit elided
// branches; those are drained through morechildren until none remain.
func (s *Source) FetchComments(ctx context.Context, postID string, opts subgrab.FetchOptions) iter.Seq2[*subgrab.Comment, error] {
	return func(yield func(*subgrab.Comment, error) bool) {
		if postID == "" {
			yield(nil, subgrab.Errorf(subgrab.EINVALID, "post ID required"))
			return
		}

		u := fmt.Sprintf("%s/comments/%s.json?limit=%d&raw_json=1", s.baseURL, postID, commentPageSize)

		// The comments endpoint returns a two-element array: the post
		// listing and the comment listing.
		var pages []listing
		if err := s.get(ctx, u, &pages); err != nil {
			yield(nil, err)
			return
		}
		if len(pages) < 2 {
			return
		}

		seen := make(map[string]bool)
		var pending []string
		yielded := 0

		if !s.emitTree(pages[1].Data.Children, postID, opts, seen, &pending, &yielded, yield) {
			return
		}

		for len(pending) > 0 {
			n := min(len(pending), moreBatchSize)
			batch := pending[:n]
			pending = pending[n:]

			mu := fmt.Sprintf("%s/api/morechildren.json?api_type=json&raw_json=1&link_id=t3_%s&children=%s",
				s.baseURL, postID, url.QueryEscape(strings.Join(batch, ",")))

			var more struct {
				JSON struct {
					Data struct {
						Things []thing `json:"things"`
					} `json:"data"`
				} `json:"json"`
			}
			if err := s.get(ctx, mu, &more); err != nil {
				yield(nil, err)
				return
			}

			if !s.emitTree(more.JSON.Data.Things, postID, opts, seen, &pending, &yielded, yield) {
				return
			}
		}
	}
}

// emitTree walks one level of thing envelopes, yielding comments depth
// first and collecting "more" stub ids into pending. Returns false when
// the consumer stopped iterating or opts.Limit was reached.
func (s *Source) emitTree(children []thing, postID string, opts subgrab.FetchOptions, seen map[string]bool, pending *[]string, yielded *int, yield func(*subgrab.Comment, error) bool) bool {
	for _, child := range children {
		var raw apiComment
		if err := json.Unmarshal(child.Data, &raw); err != nil {
			s.logger.Warn("skipping malformed comment record", "post_id", postID)
			continue
		}

		if child.Kind == "more" {
			*pending = append(*pending, raw.Children...)
			continue
		}
		if child.Kind != "t1" || raw.ID == "" {
			continue
		}
		if seen[raw.ID] {
			continue
		}
		seen[raw.ID] = true

		if opts.InWindow(int64(raw.CreatedUTC)) {
			if !yield(s.toComment(raw, postID), nil) {
				return false
			}
			*yielded++
			if opts.Limit > 0 && *yielded >= opts.Limit {
				return false
			}
		}

		// Replies is the empty string when the comment is a leaf.
		if len(raw.Replies) > 0 && raw.Replies[0] == '{' {
			var sub listing
			if err := json.Unmarshal(raw.Replies, &sub); err != nil {
				continue
			}
			if !s.emitTree(sub.Data.Children, postID, opts, seen, pending, yielded, yield) {
				return false
			}
		}
	}
	return true
}

func (s *Source) listingURL(after string, opts subgrab.FetchOptions) string {
	sort := string(opts.Sort)
	if sort == "" {
		sort = string(subgrab.SortNew)
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("raw_json", "1")
	if after != "" {
		params.Set("after", after)
	}
	if opts.Sort == subgrab.SortTop && opts.Time != "" {
		params.Set("t", string(opts.Time))
	}
	return fmt.Sprintf("%s/r/%s/%s.json?%s", s.baseURL, s.subreddit, sort, params.Encode())
}

// get performs a rate-limited GET with retries and decodes the response.
func (s *Source) get(ctx context.Context, u string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= len(s.retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelays[attempt-1]):
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = s.doGet(ctx, u, out)
		if lastErr == nil {
			return nil
		}
		if code := subgrab.ErrorCode(lastErr); code == subgrab.ENOTFOUND || code == subgrab.EINVALID {
			return lastErr
		}
	}
	return subgrab.Errorf(subgrab.EUNAVAILABLE, "reddit unreachable: %v", lastErr)
}

func (s *Source) doGet(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", s.userAgent)

	if s.clientID != "" {
		token, err := s.accessToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return subgrab.Errorf(subgrab.ENOTFOUND, "resource not found")
	case resp.StatusCode == http.StatusForbidden:
		return subgrab.Errorf(subgrab.EINVALID, "access denied, check credentials")
	case resp.StatusCode != http.StatusOK:
		return subgrab.Errorf(subgrab.EUNAVAILABLE, "HTTP %d from reddit", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return subgrab.Errorf(subgrab.EUNAVAILABLE, "malformed reddit response: %v", err)
	}
	return nil
}

// accessToken returns a cached application-only OAuth token, requesting a
// fresh one when fewer than two minutes of validity remain.
func (s *Source) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Until(s.exp) > 2*time.Minute {
		return s.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.authURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", subgrab.Errorf(subgrab.EUNAVAILABLE, "requesting token: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", subgrab.Errorf(subgrab.EINVALID, "token request rejected with HTTP %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", subgrab.Errorf(subgrab.EUNAVAILABLE, "malformed token response: %v", err)
	}
	if payload.AccessToken == "" {
		return "", subgrab.Errorf(subgrab.EINVALID, "empty access token")
	}

	s.token = payload.AccessToken
	s.exp = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return s.token, nil
}

func (s *Source) toPost(raw apiPost) *subgrab.Post {
	created := int64(raw.CreatedUTC)
	imageURL := s.images.ExtractImageURL(raw.URL)
	if imageURL == "" {
		imageURL = s.images.ExtractImageURL(raw.Selftext)
	}
	return &subgrab.Post{
		ID:          raw.ID,
		Title:       raw.Title,
		Text:        raw.Selftext,
		CreatedUTC:  created,
		CreatedTime: subgrab.FormatCreatedTime(created),
		ImageURL:    imageURL,
	}
}

func (s *Source) toComment(raw apiComment, postID string) *subgrab.Comment {
	parentID := ""
	if strings.HasPrefix(raw.ParentID, "t1_") {
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

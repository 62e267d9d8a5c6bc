// Package images extracts image URLs from free text and downloads them to
// deterministic per-subreddit paths. Downloads are best effort: every
// failure resolves to "no image", never an error.
package images

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/fwojciec/subgrab"
)

// DefaultTimeout bounds a single image download request.
const DefaultTimeout = 10 * time.Second

// browserUserAgent is sent on the retry attempt for hosts that reject
// non-browser clients.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// imageExtensions are the path suffixes recognized during URL extraction.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// imageHosts are hosts that serve images regardless of path shape.
var imageHosts = map[string]bool{
	"i.redd.it":       true,
	"preview.redd.it": true,
	"i.imgur.com":     true,
}

var urlRe = regexp.MustCompile(`https?://[^\s)"]+`)

// Bloom filter sizing for the failed-URL filter.
const (
	failedURLExpected = 10000
	failedURLFPRate   = 0.01
)

// Service downloads images for one subreddit into its images directory.
// Safe for concurrent use.
type Service struct {
	dir     string
	client  *http.Client
	logger  *slog.Logger
	timeout time.Duration

	// failed remembers URLs that already failed this run, so repeated
	// occurrences of a dead link don't trigger repeated fetch attempts.
	// False positives only skip a download, which callers already treat
	// as "no image available".
	mu     sync.Mutex
	failed *bloom.BloomFilter
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// WithTimeout sets the per-request timeout. Defaults to DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithLogger sets the logger for download warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service writing into dir, creating it if needed.
func NewService(dir string, opts ...Option) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, subgrab.Errorf(subgrab.ESTORAGE, "creating image directory %q: %v", dir, err)
	}

	s := &Service{
		dir:     dir,
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		failed:  bloom.NewWithEstimates(failedURLExpected, failedURLFPRate),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: s.timeout}
	}
	return s, nil
}

// Dir returns the directory downloads are written to.
func (s *Service) Dir() string {
	return s.dir
}

// ExtractImageURL scans free text left to right and returns the first URL
// whose path has an image extension, whose query declares an image format,
// or whose host is a known image host. Returns "" when nothing matches.
func (s *Service) ExtractImageURL(text string) string {
	for _, raw := range urlRe.FindAllString(text, -1) {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}

		p := strings.ToLower(u.Path)
		for _, ext := range imageExtensions {
			if strings.HasSuffix(p, ext) {
				return raw
			}
		}

		switch u.Query().Get("format") {
		case "jpg", "jpeg", "png", "webp", "pjpg":
			return raw
		}

		if imageHosts[u.Hostname()] {
			return raw
		}
	}
	return ""
}

// DownloadImage fetches imageURL to the deterministic path for
// (itemID, kind) and returns that path. If the file already exists it is
// returned without re-fetching. On failure it returns "", never an error.
func (s *Service) DownloadImage(ctx context.Context, imageURL, itemID string, kind subgrab.ContentKind) string {
	if imageURL == "" || itemID == "" {
		return ""
	}

	if s.knownFailure(imageURL) {
		return ""
	}

	// An already-downloaded image may exist under any recognized
	// extension; probe before fetching.
	if existing := s.findExisting(itemID, kind); existing != "" {
		return existing
	}

	resp, err := s.get(ctx, imageURL, "")
	if err != nil {
		// Some hosts reject anonymous clients; retry once identifying as
		// a browser.
		resp, err = s.get(ctx, imageURL, browserUserAgent)
	}
	if err != nil {
		s.logger.Warn("image download failed", "url", imageURL, "error", err)
		s.markFailure(imageURL)
		return ""
	}
	defer resp.Body.Close()

	path := filepath.Join(s.dir, filename(itemID, kind, extensionFor(resp.Header.Get("Content-Type"), imageURL)))
	if err := writeFile(path, resp.Body); err != nil {
		s.logger.Warn("image write failed", "path", path, "error", err)
		s.markFailure(imageURL)
		return ""
	}
	return path
}

func (s *Service) get(ctx context.Context, imageURL, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, subgrab.Errorf(subgrab.EUNAVAILABLE, "HTTP %d for %s", resp.StatusCode, imageURL)
	}
	return resp, nil
}

func (s *Service) findExisting(itemID string, kind subgrab.ContentKind) string {
	for _, ext := range imageExtensions {
		path := filepath.Join(s.dir, filename(itemID, kind, ext))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (s *Service) knownFailure(imageURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed.TestString(imageURL)
}

func (s *Service) markFailure(imageURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed.AddString(imageURL)
}

// filename derives the deterministic image filename for an item. Comment
// images are prefixed so they never collide with post images.
func filename(itemID string, kind subgrab.ContentKind, ext string) string {
	if kind == subgrab.KindComment {
		return "comment_" + itemID + ext
	}
	return itemID + ext
}

// extensionFor picks a file extension from the response content type,
// falling back to the URL path and finally to .jpg.
func extensionFor(contentType, imageURL string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return ".jpg"
	}
	if u, err := url.Parse(imageURL); err == nil {
		p := strings.ToLower(u.Path)
		for _, ext := range imageExtensions {
			if strings.HasSuffix(p, ext) {
				if ext == ".jpeg" {
					return ".jpg"
				}
				return ext
			}
		}
	}
	return ".jpg"
}

// writeFile streams body to path via a temp file and rename, so a failed
// download never leaves a truncated image behind.
func writeFile(path string, body io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

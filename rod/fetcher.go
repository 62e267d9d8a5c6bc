package rod

import (
	"context"
	"time"

	"github.com/fwojciec/subgrab"
	"github.com/go-rod/rod/lib/proto"
)

// Ensure Fetcher implements subgrab.Fetcher at compile time.
var _ subgrab.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves rendered HTML using Chrome browser automation.
// Fetcher is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	manager *BrowserManager
}

// NewFetcher creates a Fetcher backed by a freshly launched headless
// browser. Close must be called when the Fetcher is no longer needed.
func NewFetcher(opts ...ManagerOption) (*Fetcher, error) {
	manager, err := NewBrowserManager(opts...)
	if err != nil {
		return nil, err
	}
	return &Fetcher{manager: manager}, nil
}

// Fetch navigates to the URL and returns the rendered HTML.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.FetchScrolled(ctx, url, 0)
}

// FetchScrolled navigates to the URL, scrolls to the bottom of the page
// up to passes times so lazily loaded content renders, and returns the
// final HTML.
func (f *Fetcher) FetchScrolled(ctx context.Context, url string, passes int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	page, err := f.manager.Browser().Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", subgrab.Errorf(subgrab.EUNAVAILABLE, "opening page: %v", err)
	}
	defer page.Close()
	defer f.manager.PageDone()

	page = page.Context(ctx)

	if err := page.Navigate(url); err != nil {
		return "", subgrab.Errorf(subgrab.EUNAVAILABLE, "navigating to %s: %v", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", subgrab.Errorf(subgrab.EUNAVAILABLE, "waiting for %s: %v", url, err)
	}

	for i := 0; i < passes; i++ {
		if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			break
		}
		// Scrolling past a render boundary triggers a feed request;
		// give the DOM a moment to settle before the next pass.
		if err := page.WaitStable(time.Second); err != nil {
			break
		}
	}

	html, err := page.HTML()
	if err != nil {
		return "", subgrab.Errorf(subgrab.EUNAVAILABLE, "reading page HTML: %v", err)
	}
	return html, nil
}

// Close releases browser resources.
func (f *Fetcher) Close() error {
	return f.manager.Close()
}

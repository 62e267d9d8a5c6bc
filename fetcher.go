package subgrab

import "context"

// Fetcher retrieves rendered HTML from URLs.
// Implementations may use browser automation, since Reddit's web UI
// builds the page with JavaScript.
type Fetcher interface {
	// Fetch navigates to the URL, waits for the content to render,
	// and returns the rendered HTML.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) (html string, err error)

	// FetchScrolled behaves like Fetch but scrolls the page up to
	// passes times to trigger lazy loading before capturing the HTML.
	FetchScrolled(ctx context.Context, url string, passes int) (html string, err error)

	// Close releases browser resources.
	// Must be called when the Fetcher is no longer needed.
	Close() error
}

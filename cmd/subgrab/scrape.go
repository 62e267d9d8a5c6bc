package main

import (
	"fmt"
	"time"

	"github.com/fwojciec/subgrab"
	"github.com/fwojciec/subgrab/scrape"
)

// Run executes the scrape command.
func (c *ScrapeCmd) Run(deps *Dependencies) error {
	subreddit, err := subgrab.SanitizeSubredditName(c.Subreddit)
	if err != nil {
		return err
	}

	before, err := parseDate(c.Before)
	if err != nil {
		return err
	}
	after, err := parseDate(c.After)
	if err != nil {
		return err
	}

	db, store, err := openStore(deps, subreddit)
	if err != nil {
		return err
	}
	defer db.Close()

	source, cleanup, err := newSource(deps, c.Method, subreddit)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Method == "browser" {
		fmt.Fprintln(deps.Stderr, "Note: the browser source needs Chrome or Chromium installed")
	}

	opts := subgrab.FetchOptions{
		Limit:  c.Limit,
		Sort:   subgrab.SortOrder(c.Sort),
		Time:   subgrab.TimeFilter(c.Time),
		Before: before,
		After:  after,
	}

	scraper := &scrape.Scraper{
		Source:       source,
		Store:        store,
		Logger:       deps.Logger,
		Subreddit:    subreddit,
		CommentLimit: c.CommentLimit,
		SkipImages:   c.NoImages,
	}

	progress := func(event scrape.ProgressEvent) {
		switch event.Type {
		case scrape.ProgressStarted:
			fmt.Fprintf(deps.Stdout, "Scraping r/%s via %s\n", subreddit, source.Name())
		case scrape.ProgressPostFailed:
			fmt.Fprintf(deps.Stderr, "  comments failed for %s: %v\n", event.PostID, event.Error)
		case scrape.ProgressFinished:
			// Summary printed after the run completes.
		}
	}

	result, err := scraper.Run(deps.Ctx, opts, progress)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", subgrab.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "  %d posts, %d comments, %d images (%d errors) in %s\n",
		result.PostsCount, result.CommentsCount, result.ImagesCount, result.ErrorsCount,
		result.Duration().Round(time.Millisecond))
	return nil
}

// parseDate converts a YYYY-MM-DD flag value to a unix timestamp. Empty
// means unset.
func parseDate(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, subgrab.Errorf(subgrab.EINVALID, "invalid date %q, want YYYY-MM-DD", s)
	}
	return t.UTC().Unix(), nil
}

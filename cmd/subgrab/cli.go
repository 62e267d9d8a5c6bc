package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fwojciec/subgrab"
	"github.com/fwojciec/subgrab/images"
	"github.com/fwojciec/subgrab/pullpush"
	"github.com/fwojciec/subgrab/reddit"
	"github.com/fwojciec/subgrab/rod"
	subslog "github.com/fwojciec/subgrab/slog"
	"github.com/fwojciec/subgrab/sqlite"
)

// Dependencies holds the shared configuration for command execution.
// Commands open their own per-subreddit stack because every subreddit
// lives in its own directory.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	Main   *Main
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Verbose bool `short:"v" help:"Enable debug logging"`

	Scrape ScrapeCmd `cmd:"" help:"Scrape a subreddit into the local archive"`
	Web    WebCmd    `cmd:"" help:"Serve the archived subreddit over HTTP"`
	Info   InfoCmd   `cmd:"" help:"Show archive totals for a subreddit"`
}

// ScrapeCmd is the "scrape" subcommand.
type ScrapeCmd struct {
	Subreddit    string `arg:"" help:"Subreddit name without the r/ prefix"`
	Method       string `short:"m" default:"pullpush" enum:"pullpush,praw,browser" help:"Backend to fetch from"`
	Limit        int    `short:"l" help:"Stop after this many posts (0 = unbounded)"`
	CommentLimit int    `default:"-1" help:"Comments per post: -1 full tree, 0 none, N truncates"`
	Sort         string `default:"new" enum:"new,hot,top" help:"Listing order"`
	Time         string `default:"all" enum:"all,day,week,month,year" help:"Window for top listings"`
	Before       string `help:"Only posts created before this date (YYYY-MM-DD)"`
	After        string `help:"Only posts created after this date (YYYY-MM-DD)"`
	NoImages     bool   `help:"Skip image downloads"`
}

// WebCmd is the "web" subcommand.
type WebCmd struct {
	Subreddit string `short:"s" required:"" help:"Subreddit name without the r/ prefix"`
	Port      int    `short:"p" default:"8080" help:"Listen port"`
}

// InfoCmd is the "info" subcommand.
type InfoCmd struct {
	Subreddit string `arg:"" optional:"" help:"Subreddit name; omit to list all archives"`
}

// openStore opens the subreddit's database, creating its directory on
// first use. The caller owns the returned DB handle.
func openStore(deps *Dependencies, subreddit string) (*sqlite.DB, subgrab.Store, error) {
	path := sqlite.DBPath(deps.Main.DataDir, subreddit)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db := sqlite.NewDB(path)
	if err := db.Open(); err != nil {
		fmt.Fprintln(deps.Stderr, "Hint: Set SUBGRAB_DATA_DIR to use a different data directory")
		return nil, nil, fmt.Errorf("failed to open database at %q: %w", path, err)
	}

	store := subslog.NewLoggingStore(sqlite.NewStore(db), deps.Logger)
	return db, store, nil
}

// newSource builds the requested backend for a subreddit. The returned
// cleanup releases backend resources (the browser, if one was launched)
// and is always safe to call. The praw source needs Reddit API
// credentials from the environment; without them it falls back to the
// public JSON endpoints.
func newSource(deps *Dependencies, name, subreddit string) (subgrab.Source, func(), error) {
	imgs, err := images.NewService(sqlite.ImagesDir(deps.Main.DataDir, subreddit), images.WithLogger(deps.Logger))
	if err != nil {
		return nil, nil, err
	}

	var src subgrab.Source
	cleanup := func() {}
	switch name {
	case "pullpush":
		src = pullpush.NewSource(subreddit, imgs, pullpush.WithLogger(deps.Logger))
	case "praw":
		opts := []reddit.Option{reddit.WithLogger(deps.Logger)}
		if deps.Main.RedditClientID != "" {
			opts = append(opts, reddit.WithCredentials(deps.Main.RedditClientID, deps.Main.RedditClientSecret))
		}
		if deps.Main.RedditUserAgent != "" {
			opts = append(opts, reddit.WithUserAgent(deps.Main.RedditUserAgent))
		}
		src = reddit.NewSource(subreddit, imgs, opts...)
	case "browser":
		browser := rod.NewSource(subreddit, imgs, rod.WithLogger(deps.Logger))
		src = browser
		cleanup = func() { _ = browser.Close() }
	default:
		return nil, nil, subgrab.Errorf(subgrab.EINVALID, "unknown source %q", name)
	}

	return subslog.NewLoggingSource(src, deps.Logger), cleanup, nil
}

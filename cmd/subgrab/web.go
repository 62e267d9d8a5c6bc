package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/fwojciec/subgrab"
	subgrabecho "github.com/fwojciec/subgrab/echo"
	"github.com/fwojciec/subgrab/sqlite"
	"github.com/fwojciec/subgrab/viewer"
)

// Run executes the web command. It serves the archive until interrupted.
func (c *WebCmd) Run(deps *Dependencies) error {
	subreddit, err := subgrab.SanitizeSubredditName(c.Subreddit)
	if err != nil {
		return err
	}

	dbPath := sqlite.DBPath(deps.Main.DataDir, subreddit)
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(deps.Stderr, "Hint: Run 'subgrab scrape %s' first\n", subreddit)
		return fmt.Errorf("no archive for r/%s at %q", subreddit, dbPath)
	}

	db, store, err := openStore(deps, subreddit)
	if err != nil {
		return err
	}
	defer db.Close()

	manager := viewer.NewManager(store, sqlite.ImagesDir(deps.Main.DataDir, subreddit))
	server := subgrabecho.NewServer(manager,
		subgrabecho.WithAddr(fmt.Sprintf(":%d", c.Port)),
		subgrabecho.WithLogger(deps.Logger),
	)

	ctx, stop := signal.NotifyContext(deps.Ctx, os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	fmt.Fprintf(deps.Stdout, "Serving r/%s on http://localhost:%d\n", subreddit, c.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		stop()
		return server.Shutdown(deps.Ctx)
	}
}

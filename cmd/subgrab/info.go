package main

import (
	"fmt"
	"os"

	"github.com/fwojciec/subgrab"
	"github.com/fwojciec/subgrab/sqlite"
)

// Run executes the info command.
func (c *InfoCmd) Run(deps *Dependencies) error {
	if c.Subreddit == "" {
		return listArchives(deps)
	}

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

	posts, err := store.TotalPosts(deps.Ctx)
	if err != nil {
		return err
	}
	comments, err := store.TotalComments(deps.Ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(deps.Stdout, "r/%s\n", subreddit)
	fmt.Fprintf(deps.Stdout, "  posts:    %d\n", posts)
	fmt.Fprintf(deps.Stdout, "  comments: %d\n", comments)
	fmt.Fprintf(deps.Stdout, "  database: %s\n", dbPath)
	return nil
}

// listArchives prints every subreddit directory that holds a database.
func listArchives(deps *Dependencies) error {
	entries, err := os.ReadDir(deps.Main.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(deps.Stdout, "No archives yet. Use 'subgrab scrape' to create one.")
			return nil
		}
		return err
	}

	found := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(sqlite.DBPath(deps.Main.DataDir, entry.Name())); err != nil {
			continue
		}
		fmt.Fprintf(deps.Stdout, "r/%s\n", entry.Name())
		found++
	}

	if found == 0 {
		fmt.Fprintln(deps.Stdout, "No archives yet. Use 'subgrab scrape' to create one.")
	}
	return nil
}

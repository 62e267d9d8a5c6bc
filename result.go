package subgrab

import "time"

// ScrapeResult summarizes one scrape run. It is ephemeral: produced by the
// orchestrator, shown to the user, never persisted.
type ScrapeResult struct {
	ID            string     `json:"id"`
	Subreddit     string     `json:"subreddit"`
	PostsCount    int        `json:"posts_count"`
	CommentsCount int        `json:"comments_count"`
	ImagesCount   int        `json:"images_count"`
	ErrorsCount   int        `json:"errors_count"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
}

// Complete records the end time. Called exactly once, on every exit path.
func (r *ScrapeResult) Complete() {
	now := time.Now().UTC()
	r.EndTime = &now
}

// Duration returns the elapsed run time, or zero if the run hasn't
// completed.
func (r *ScrapeResult) Duration() time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

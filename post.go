package subgrab

import "time"

// SortOrder selects how a source orders the posts it yields.
type SortOrder string

// SortOrder values accepted by FetchOptions. Not every backend supports
// every order; unsupported orders fall back to SortNew.
const (
	SortNew SortOrder = "new"
	SortHot SortOrder = "hot"
	SortTop SortOrder = "top"
)

// TimeFilter narrows SortTop to a window. Ignored for other sort orders.
type TimeFilter string

// TimeFilter values for SortTop.
const (
	TimeAll   TimeFilter = "all"
	TimeDay   TimeFilter = "day"
	TimeWeek  TimeFilter = "week"
	TimeMonth TimeFilter = "month"
	TimeYear  TimeFilter = "year"
)

// ContentKind distinguishes post images from comment images when deriving
// deterministic image filenames.
type ContentKind string

// ContentKind values.
const (
	KindPost    ContentKind = "post"
	KindComment ContentKind = "comment"
)

// Post is the canonical post shape every backend must emit, regardless of
// the upstream's native field names.
type Post struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	CreatedUTC  int64  `json:"created_utc"`
	CreatedTime string `json:"created_time"`
	ImageURL    string `json:"image_url"`
	ImagePath   string `json:"image_path"`
}

// Validate returns an error if the post contains invalid fields.
func (p *Post) Validate() error {
	if p.ID == "" {
		return Errorf(EINVALID, "post ID required")
	}
	return nil
}

// Comment is the canonical comment shape. An empty ParentID means the
// comment is top-level and its parent is the enclosing post.
type Comment struct {
	ID          string `json:"id"`
	PostID      string `json:"post_id"`
	ParentID    string `json:"parent_id"`
	Text        string `json:"text"`
	CreatedUTC  int64  `json:"created_utc"`
	CreatedTime string `json:"created_time"`
	ImageURL    string `json:"image_url"`
	ImagePath   string `json:"image_path"`
}

// Validate returns an error if the comment contains invalid fields.
func (c *Comment) Validate() error {
	if c.ID == "" {
		return Errorf(EINVALID, "comment ID required")
	}
	if c.PostID == "" {
		return Errorf(EINVALID, "comment post ID required")
	}
	return nil
}

// FormatCreatedTime renders a unix timestamp as the human-readable form
// stored alongside it.
func FormatCreatedTime(createdUTC int64) string {
	return time.Unix(createdUTC, 0).UTC().Format("2006-01-02 15:04:05")
}

// FetchOptions narrows what a source fetch yields. The zero value means
// "everything, newest first, unbounded".
type FetchOptions struct {
	// Limit truncates the yielded sequence. Zero means unbounded.
	Limit int

	// Sort selects the backend's listing order for posts.
	Sort SortOrder

	// Time narrows SortTop listings.
	Time TimeFilter

	// Before excludes records with CreatedUTC >= Before. Zero disables.
	Before int64

	// After excludes records with CreatedUTC <= After. Zero disables.
	After int64
}

// InWindow reports whether a timestamp passes the exclusive Before/After
// bounds. Backends apply this during iteration when the upstream query
// can't express the bound itself.
func (o FetchOptions) InWindow(createdUTC int64) bool {
	if o.Before > 0 && createdUTC >= o.Before {
		return false
	}
	if o.After > 0 && createdUTC <= o.After {
		return false
	}
	return true
}

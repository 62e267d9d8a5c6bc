package rod

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/subgrab"
	"github.com/fwojciec/subgrab/htmltomarkdown"
)

// timestampLayouts are the attribute formats Reddit's web components use.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05-0700",
}

// parseListing extracts posts from a rendered subreddit feed. Reddit's web
// UI renders each post as a shreddit-post element carrying its metadata as
// attributes, with the self-text body slotted inside.
func parseListing(html string, conv *htmltomarkdown.Converter) ([]*subgrab.Post, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, subgrab.Errorf(subgrab.EINTERNAL, "parsing listing HTML: %v", err)
	}

	var posts []*subgrab.Post
	doc.Find("shreddit-post").Each(func(_ int, sel *goquery.Selection) {
		id := stripThingPrefix(sel.AttrOr("id", ""))
		if id == "" {
			return
		}

		created := parseTimestamp(sel.AttrOr("created-timestamp", ""))

		text := ""
		if body, err := sel.Find(`[slot="text-body"]`).First().Html(); err == nil {
			if md, err := conv.Convert(body); err == nil {
				text = md
			}
		}

		posts = append(posts, &subgrab.Post{
			ID:          id,
			Title:       strings.TrimSpace(sel.AttrOr("post-title", "")),
			Text:        text,
			CreatedUTC:  created,
			CreatedTime: subgrab.FormatCreatedTime(created),
			ImageURL:    sel.AttrOr("content-href", ""),
		})
	})
	return posts, nil
}

// parseComments extracts the flat comment list from a rendered post page.
// Each shreddit-comment element names its own thing id and its parent's,
// so tree shape survives the flattening.
func parseComments(html, postID string, conv *htmltomarkdown.Converter) ([]*subgrab.Comment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, subgrab.Errorf(subgrab.EINTERNAL, "parsing comments HTML: %v", err)
	}

	var comments []*subgrab.Comment
	doc.Find("shreddit-comment").Each(func(_ int, sel *goquery.Selection) {
		id := stripThingPrefix(sel.AttrOr("thingid", ""))
		if id == "" {
			return
		}

		parentID := ""
		if parent := sel.AttrOr("parentid", ""); strings.HasPrefix(parent, "t1_") {
			parentID = parent[3:]
		}

		created := parseTimestamp(sel.Find("time").First().AttrOr("datetime", ""))

		text := ""
		if body, err := sel.Find(`[slot="comment"]`).First().Html(); err == nil {
			if md, err := conv.Convert(body); err == nil {
				text = md
			}
		}

		comments = append(comments, &subgrab.Comment{
			ID:          id,
			PostID:      postID,
			ParentID:    parentID,
			Text:        text,
			CreatedUTC:  created,
			CreatedTime: subgrab.FormatCreatedTime(created),
		})
	})
	return comments, nil
}

// stripThingPrefix removes the t1_/t3_ fullname prefix from an element id.
func stripThingPrefix(id string) string {
	if len(id) > 3 && id[2] == '_' {
		return id[3:]
	}
	return id
}

func parseTimestamp(value string) int64 {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.Unix()
		}
	}
	return 0
}

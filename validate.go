package subgrab

import (
	"regexp"
	"strings"
)

// Subreddit names: 3-21 characters, letters/digits/underscores, no leading
// digit. An optional "r/" prefix is accepted and stripped.
var (
	subredditNameRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{2,20}$`)
	invalidNameCharsRe = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// ValidateSubredditName rejects names that don't follow subreddit naming
// rules. Validation happens before any network or storage activity.
func ValidateSubredditName(name string) error {
	trimmed := strings.TrimPrefix(strings.TrimSpace(name), "r/")
	if trimmed == "" {
		return Errorf(EINVALID, "subreddit name required")
	}
	if !subredditNameRe.MatchString(trimmed) {
		return Errorf(EINVALID, "invalid subreddit name %q", name)
	}
	return nil
}

// SanitizeSubredditName normalizes a raw name: strips the "r/" prefix and
// whitespace, replaces invalid characters with underscores, and prefixes
// an underscore when the result would start with a digit. Returns EINVALID
// when nothing usable remains.
func SanitizeSubredditName(name string) (string, error) {
	s := strings.TrimPrefix(strings.TrimSpace(name), "r/")
	s = invalidNameCharsRe.ReplaceAllString(s, "_")
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	if len(s) > 21 {
		s = s[:21]
	}
	if len(s) < 3 {
		return "", Errorf(EINVALID, "subreddit name %q too short after sanitization", name)
	}
	return s, nil
}

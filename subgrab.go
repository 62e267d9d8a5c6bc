// Package subgrab scrapes posts and comments from a single subreddit
// through interchangeable source backends, merges them into a durable
// per-subreddit store without loss or duplication, and serves them to a
// paginated viewer as nested comment trees.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, pullpush/, rod/).
package subgrab

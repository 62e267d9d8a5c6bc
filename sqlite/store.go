package sqlite

import (
	"context"

	"github.com/fwojciec/subgrab"
)

// Compile-time interface verification.
var _ subgrab.Store = (*Store)(nil)

// Store implements subgrab.Store using SQLite. A batch save is one
// transaction: records upsert by id with the incoming record winning, and
// either the whole batch lands or none of it does.
type Store struct {
	db *DB
}

// NewStore creates a new Store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// SavePosts merges posts into the store and returns how many of them were
// new. Re-saving the same batch is a no-op beyond refreshing fields.
func (s *Store) SavePosts(ctx context.Context, posts []*subgrab.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}
	for _, post := range posts {
		if err := post.Validate(); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return 0, subgrab.Errorf(subgrab.ESTORAGE, "beginning transaction: %v", err)
	}
	defer tx.Rollback()

	var before int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&before); err != nil {
		return 0, subgrab.Errorf(subgrab.ESTORAGE, "counting posts: %v", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (id, title, text, created_utc, created_time, image_url, image_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			text = excluded.text,
			created_utc = excluded.created_utc,
			created_time = excluded.created_time,
			image_url = excluded.image_url,
			image_path = excluded.image_path
	`)
	if err != nil {
		return 0, subgrab.Errorf(subgrab.ESTORAGE, "preparing upsert: %v", err)
	}
	defer stmt.Close()

	for _, post := range posts {
		if _, err := stmt.ExecContext(ctx, post.ID, post.Title, post.Text,
			post.CreatedUTC, post.CreatedTime, post.ImageURL, post.ImagePath); err != nil {
			return 0, subgrab.Errorf(subgrab.ESTORAGE, "saving post %s: %v", post.ID, err)
		}
	}

	var after int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&after); err != nil {
		return 0, subgrab.Errorf(subgrab.ESTORAGE, "counting posts: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, subgrab.Errorf(subgrab.ESTORAGE, "committing posts: %v", err)
	}
	return after - before, nil
}

// SaveComments merges comments into the store and returns how many of
// them were new.
func (s *Store) SaveComments(ctx context.Context, comments []*subgrab.Comment) (int, error) {
	if len(comments) == 0 {
		return 0, nil
	}
	for _, comment := range comments {
		if err := comment.Validate(); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return 0, subgrab.Errorf(subgrab.ESTORAGE, "beginning transaction: %v", err)
	}
	defer tx.Rollback()

	var before int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments").Scan(&before); err != nil {
		return 0, subgrab.Errorf(subgrab.ESTORAGE, "counting comments: %v", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO comments (id, post_id, parent_id, text, created_utc, created_time, image_url, image_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			post_id = excluded.post_id,
			parent_id = excluded.parent_id,
			text = excluded.text,
			created_utc = excluded.created_utc,
			created_time = excluded.created_time,
			image_url = excluded.image_url,
			image_path = excluded.image_path
	`)
	if err != nil {
		return 0, subgrab.Errorf(subgrab.ESTORAGE, "preparing upsert: %v", err)
	}
	defer stmt.Close()

	for _, comment := range comments {
		if _, err := stmt.ExecContext(ctx, comment.ID, comment.PostID, comment.ParentID,
			comment.Text, comment.CreatedUTC, comment.CreatedTime, comment.ImageURL, comment.ImagePath); err != nil {
			return 0, subgrab.Errorf(subgrab.ESTORAGE, "saving comment %s: %v", comment.ID, err)
		}
	}

	var after int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments").Scan(&after); err != nil {
		return 0, subgrab.Errorf(subgrab.ESTORAGE, "counting comments: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, subgrab.Errorf(subgrab.ESTORAGE, "committing comments: %v", err)
	}
	return after - before, nil
}

// LoadPosts returns posts newest first. A limit of 0 means no limit.
func (s *Store) LoadPosts(ctx context.Context, limit int) ([]*subgrab.Post, error) {
	query := `
		SELECT id, title, text, created_utc, created_time, image_url, image_path
		FROM posts
		ORDER BY created_utc DESC, id ASC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, subgrab.Errorf(subgrab.ESTORAGE, "loading posts: %v", err)
	}
	defer rows.Close()

	var posts []*subgrab.Post
	for rows.Next() {
		var post subgrab.Post
		if err := rows.Scan(&post.ID, &post.Title, &post.Text, &post.CreatedUTC,
			&post.CreatedTime, &post.ImageURL, &post.ImagePath); err != nil {
			return nil, subgrab.Errorf(subgrab.ESTORAGE, "scanning post: %v", err)
		}
		posts = append(posts, &post)
	}
	if err := rows.Err(); err != nil {
		return nil, subgrab.Errorf(subgrab.ESTORAGE, "loading posts: %v", err)
	}
	return posts, nil
}

// LoadComments returns comments newest first, filtered to one post when
// postID is non-empty. A limit of 0 means no limit.
func (s *Store) LoadComments(ctx context.Context, postID string, limit int) ([]*subgrab.Comment, error) {
	query := `
		SELECT id, post_id, parent_id, text, created_utc, created_time, image_url, image_path
		FROM comments
	`
	var args []any
	if postID != "" {
		query += " WHERE post_id = ?"
		args = append(args, postID)
	}
	query += " ORDER BY created_utc DESC, id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, subgrab.Errorf(subgrab.ESTORAGE, "loading comments: %v", err)
	}
	defer rows.Close()

	var comments []*subgrab.Comment
	for rows.Next() {
		var comment subgrab.Comment
		if err := rows.Scan(&comment.ID, &comment.PostID, &comment.ParentID, &comment.Text,
			&comment.CreatedUTC, &comment.CreatedTime, &comment.ImageURL, &comment.ImagePath); err != nil {
			return nil, subgrab.Errorf(subgrab.ESTORAGE, "scanning comment: %v", err)
		}
		comments = append(comments, &comment)
	}
	if err := rows.Err(); err != nil {
		return nil, subgrab.Errorf(subgrab.ESTORAGE, "loading comments: %v", err)
	}
	return comments, nil
}

// TotalPosts returns the number of stored posts.
func (s *Store) TotalPosts(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&count); err != nil {
		return 0, subgrab.Errorf(subgrab.ESTORAGE, "counting posts: %v", err)
	}
	return count, nil
}

// TotalComments returns the number of stored comments.
func (s *Store) TotalComments(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments").Scan(&count); err != nil {
		return 0, subgrab.Errorf(subgrab.ESTORAGE, "counting comments: %v", err)
	}
	return count, nil
}

package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sharesphere/sharesphere/pkg/apperr"
	"github.com/sharesphere/sharesphere/pkg/authz"
)

// Store handles post and comment persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new content store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for the moderation store, which
// updates moderation columns on the same tables.
func (s *Store) DB() *sql.DB {
	return s.db
}

// GetMigrations returns all content migrations
func GetMigrations() []authz.Migration {
	return []authz.Migration{
		{
			Version:     1,
			Description: "Create posts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS posts (
					post_id BIGSERIAL PRIMARY KEY,
					sphere_id BIGINT NOT NULL,
					sphere_name TEXT NOT NULL,
					author_id BIGINT NOT NULL,
					author_name TEXT NOT NULL,
					title TEXT NOT NULL,
					body TEXT NOT NULL DEFAULT '',
					moderator_id BIGINT,
					moderator_name TEXT,
					moderator_message TEXT,
					infringed_rule_id BIGINT,
					infringed_rule_title TEXT,
					create_timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_posts_sphere_name ON posts(sphere_name);
				CREATE INDEX idx_posts_author_id ON posts(author_id);
			`,
		},
		{
			Version:     2,
			Description: "Create comments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS comments (
					comment_id BIGSERIAL PRIMARY KEY,
					post_id BIGINT NOT NULL REFERENCES posts(post_id) ON DELETE CASCADE,
					sphere_name TEXT NOT NULL,
					author_id BIGINT NOT NULL,
					author_name TEXT NOT NULL,
					body TEXT NOT NULL,
					moderator_id BIGINT,
					moderator_name TEXT,
					moderator_message TEXT,
					infringed_rule_id BIGINT,
					infringed_rule_title TEXT,
					create_timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_comments_post_id ON comments(post_id);
				CREATE INDEX idx_comments_author_id ON comments(author_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func (s *Store) RunMigrations(ctx context.Context) error {
	return authz.RunMigrationSet(ctx, s.db, "content_migrations", GetMigrations())
}

const postColumns = `post_id, sphere_id, sphere_name, author_id, author_name, title, body,
	moderator_id, moderator_name, moderator_message, infringed_rule_id, infringed_rule_title, create_timestamp`

const commentColumns = `comment_id, post_id, sphere_name, author_id, author_name, body,
	moderator_id, moderator_name, moderator_message, infringed_rule_id, infringed_rule_title, create_timestamp`

func scanModeration(m *ModerationRecord, moderatorID, ruleID *sql.NullInt64, moderatorName, message, ruleTitle *sql.NullString) {
	if moderatorID.Valid {
		m.ModeratorID = &moderatorID.Int64
	}
	if moderatorName.Valid {
		m.ModeratorName = &moderatorName.String
	}
	if message.Valid {
		m.ModeratorMessage = &message.String
	}
	if ruleID.Valid {
		m.InfringedRuleID = &ruleID.Int64
	}
	if ruleTitle.Valid {
		m.InfringedRuleTitle = &ruleTitle.String
	}
}

func scanPost(row interface{ Scan(...interface{}) error }) (*Post, error) {
	var post Post
	var moderatorID, ruleID sql.NullInt64
	var moderatorName, message, ruleTitle sql.NullString

	err := row.Scan(
		&post.PostID, &post.SphereID, &post.SphereName, &post.AuthorID, &post.AuthorName,
		&post.Title, &post.Body,
		&moderatorID, &moderatorName, &message, &ruleID, &ruleTitle,
		&post.CreateTimestamp,
	)
	if err != nil {
		return nil, err
	}
	scanModeration(&post.ModerationRecord, &moderatorID, &ruleID, &moderatorName, &message, &ruleTitle)
	return &post, nil
}

func scanComment(row interface{ Scan(...interface{}) error }) (*Comment, error) {
	var comment Comment
	var moderatorID, ruleID sql.NullInt64
	var moderatorName, message, ruleTitle sql.NullString

	err := row.Scan(
		&comment.CommentID, &comment.PostID, &comment.SphereName, &comment.AuthorID, &comment.AuthorName,
		&comment.Body,
		&moderatorID, &moderatorName, &message, &ruleID, &ruleTitle,
		&comment.CreateTimestamp,
	)
	if err != nil {
		return nil, err
	}
	scanModeration(&comment.ModerationRecord, &moderatorID, &ruleID, &moderatorName, &message, &ruleTitle)
	return &comment, nil
}

// CreatePost inserts a post. Ban checks belong to the service layer.
func (s *Store) CreatePost(ctx context.Context, sphereID int64, sphereName string, authorID int64, authorName, title, body string) (*Post, error) {
	post := &Post{
		SphereID:        sphereID,
		SphereName:      sphereName,
		AuthorID:        authorID,
		AuthorName:      authorName,
		Title:           title,
		Body:            body,
		CreateTimestamp: time.Now().UTC(),
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO posts (sphere_id, sphere_name, author_id, author_name, title, body, create_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING post_id
	`, sphereID, sphereName, authorID, authorName, title, body, post.CreateTimestamp).Scan(&post.PostID)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return post, nil
}

// CreateComment inserts a comment on an existing post.
func (s *Store) CreateComment(ctx context.Context, postID int64, sphereName string, authorID int64, authorName, body string) (*Comment, error) {
	comment := &Comment{
		PostID:          postID,
		SphereName:      sphereName,
		AuthorID:        authorID,
		AuthorName:      authorName,
		Body:            body,
		CreateTimestamp: time.Now().UTC(),
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (post_id, sphere_name, author_id, author_name, body, create_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING comment_id
	`, postID, sphereName, authorID, authorName, body, comment.CreateTimestamp).Scan(&comment.CommentID)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

// GetPost returns the post by id, or ErrNotFound.
func (s *Store) GetPost(ctx context.Context, postID int64) (*Post, error) {
	query := fmt.Sprintf(`SELECT %s FROM posts WHERE post_id = $1`, postColumns)

	post, err := scanPost(s.db.QueryRowContext(ctx, query, postID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("post %d not found", postID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// GetComment returns the comment by id, or ErrNotFound.
func (s *Store) GetComment(ctx context.Context, commentID int64) (*Comment, error) {
	query := fmt.Sprintf(`SELECT %s FROM comments WHERE comment_id = $1`, commentColumns)

	comment, err := scanComment(s.db.QueryRowContext(ctx, query, commentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("comment %d not found", commentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return comment, nil
}

// GetSpherePostVec returns the sphere's posts, newest first.
func (s *Store) GetSpherePostVec(ctx context.Context, sphereName string) ([]Post, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM posts WHERE sphere_name = $1 ORDER BY create_timestamp DESC
	`, postColumns)

	rows, err := s.db.QueryContext(ctx, query, sphereName)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// GetPostCommentVec returns the post's comments, oldest first.
func (s *Store) GetPostCommentVec(ctx context.Context, postID int64) ([]Comment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM comments WHERE post_id = $1 ORDER BY create_timestamp ASC
	`, commentColumns)

	rows, err := s.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, *comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

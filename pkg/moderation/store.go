package moderation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sharesphere/sharesphere/pkg/apperr"
	"github.com/sharesphere/sharesphere/pkg/authz"
)

// Store handles ban persistence and moderation writes on content rows
type Store struct {
	db *sql.DB
}

// NewStore creates a new moderation store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetMigrations returns all moderation migrations
func GetMigrations() []authz.Migration {
	return []authz.Migration{
		{
			Version:     1,
			Description: "Create user_bans table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_bans (
					ban_id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL,
					username TEXT NOT NULL,
					sphere_id BIGINT,
					sphere_name TEXT,
					post_id BIGINT NOT NULL,
					comment_id BIGINT,
					infringed_rule_id BIGINT NOT NULL,
					moderator_id BIGINT NOT NULL,
					until_timestamp TIMESTAMPTZ,
					create_timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					delete_timestamp TIMESTAMPTZ
				);

				CREATE INDEX idx_user_bans_user_id ON user_bans(user_id);
				CREATE INDEX idx_user_bans_sphere_name ON user_bans(sphere_name);
				CREATE INDEX idx_user_bans_until ON user_bans(until_timestamp)
					WHERE delete_timestamp IS NULL;
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func (s *Store) RunMigrations(ctx context.Context) error {
	return authz.RunMigrationSet(ctx, s.db, "moderation_migrations", GetMigrations())
}

// ModerationUpdate is the moderation state written onto a content row.
type ModerationUpdate struct {
	ModeratorID      int64
	ModeratorName    string
	ModeratorMessage string
	RuleID           int64
	RuleTitle        string
}

func (s *Store) moderateContent(ctx context.Context, table, idColumn string, contentID int64, u ModerationUpdate) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET
			moderator_id = $1,
			moderator_name = $2,
			moderator_message = $3,
			infringed_rule_id = $4,
			infringed_rule_title = $5
		WHERE %s = $6
	`, table, idColumn), u.ModeratorID, u.ModeratorName, u.ModeratorMessage, u.RuleID, u.RuleTitle, contentID)
	if err != nil {
		return fmt.Errorf("failed to write moderation record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read moderation result: %w", err)
	}
	if affected == 0 {
		return apperr.NotFoundf("%s %d not found", idColumn, contentID)
	}
	return nil
}

// ModeratePost overwrites the post's moderation fields.
func (s *Store) ModeratePost(ctx context.Context, postID int64, u ModerationUpdate) error {
	return s.moderateContent(ctx, "posts", "post_id", postID, u)
}

// ModerateComment overwrites the comment's moderation fields.
func (s *Store) ModerateComment(ctx context.Context, commentID int64, u ModerationUpdate) error {
	return s.moderateContent(ctx, "comments", "comment_id", commentID, u)
}

const banColumns = `ban_id, user_id, username, sphere_id, sphere_name, post_id, comment_id,
	infringed_rule_id, moderator_id, until_timestamp, create_timestamp, delete_timestamp`

func scanBan(row interface{ Scan(...interface{}) error }) (*UserBan, error) {
	var ban UserBan
	var sphereID, commentID sql.NullInt64
	var sphereName sql.NullString
	var until, deleted sql.NullTime

	err := row.Scan(
		&ban.BanID, &ban.UserID, &ban.Username, &sphereID, &sphereName,
		&ban.PostID, &commentID, &ban.InfringedRuleID, &ban.ModeratorID,
		&until, &ban.CreateTimestamp, &deleted,
	)
	if err != nil {
		return nil, err
	}

	if sphereID.Valid {
		ban.SphereID = &sphereID.Int64
	}
	if sphereName.Valid {
		ban.SphereName = &sphereName.String
	}
	if commentID.Valid {
		ban.CommentID = &commentID.Int64
	}
	if until.Valid {
		t := until.Time
		ban.UntilTimestamp = &t
	}
	if deleted.Valid {
		t := deleted.Time
		ban.DeleteTimestamp = &t
	}
	return &ban, nil
}

// BanParams describes a ban to record. Sphere fields nil for a site-wide
// ban, Until nil for a permanent one.
type BanParams struct {
	UserID      int64
	Username    string
	SphereID    *int64
	SphereName  *string
	PostID      int64
	CommentID   *int64
	RuleID      int64
	ModeratorID int64
	Until       *time.Time
}

// CreateBan inserts a ban row.
func (s *Store) CreateBan(ctx context.Context, p BanParams) (*UserBan, error) {
	ban := &UserBan{
		UserID:          p.UserID,
		Username:        p.Username,
		SphereID:        p.SphereID,
		SphereName:      p.SphereName,
		PostID:          p.PostID,
		CommentID:       p.CommentID,
		InfringedRuleID: p.RuleID,
		ModeratorID:     p.ModeratorID,
		UntilTimestamp:  p.Until,
		CreateTimestamp: time.Now().UTC(),
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_bans (user_id, username, sphere_id, sphere_name, post_id, comment_id,
			infringed_rule_id, moderator_id, until_timestamp, create_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ban_id
	`, p.UserID, p.Username, p.SphereID, p.SphereName, p.PostID, p.CommentID,
		p.RuleID, p.ModeratorID, p.Until, ban.CreateTimestamp).Scan(&ban.BanID)
	if err != nil {
		return nil, fmt.Errorf("failed to create ban: %w", err)
	}
	return ban, nil
}

// GetBan returns the ban by id, or ErrNotFound.
func (s *Store) GetBan(ctx context.Context, banID int64) (*UserBan, error) {
	query := fmt.Sprintf(`SELECT %s FROM user_bans WHERE ban_id = $1`, banColumns)

	ban, err := scanBan(s.db.QueryRowContext(ctx, query, banID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("ban %d not found", banID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ban: %w", err)
	}
	return ban, nil
}

// RemoveBan soft-deletes the ban. Fails with ErrNotFound when the ban
// does not exist or is already lifted.
func (s *Store) RemoveBan(ctx context.Context, banID int64) (*UserBan, error) {
	query := fmt.Sprintf(`
		UPDATE user_bans SET delete_timestamp = $1
		WHERE ban_id = $2 AND delete_timestamp IS NULL
		RETURNING %s
	`, banColumns)

	ban, err := scanBan(s.db.QueryRowContext(ctx, query, time.Now().UTC(), banID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("active ban %d not found", banID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to remove ban: %w", err)
	}
	return ban, nil
}

// GetSphereBanVec returns the sphere's active bans, optionally filtered
// by a username prefix. Permanent bans sort first, then by the latest
// expiry.
func (s *Store) GetSphereBanVec(ctx context.Context, sphereName, usernamePrefix string) ([]UserBan, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_bans
		WHERE sphere_name = $1 AND delete_timestamp IS NULL
			AND (until_timestamp IS NULL OR until_timestamp > $2)
			AND username LIKE $3
		ORDER BY until_timestamp DESC NULLS FIRST
	`, banColumns)

	rows, err := s.db.QueryContext(ctx, query, sphereName, time.Now().UTC(), usernamePrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list sphere bans: %w", err)
	}
	defer rows.Close()

	var bans []UserBan
	for rows.Next() {
		ban, err := scanBan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ban: %w", err)
		}
		bans = append(bans, *ban)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bans: %w", err)
	}
	return bans, nil
}

// SweepLapsedBans soft-deletes temporary bans whose horizon has passed
// and returns the affected user ids for snapshot invalidation.
func (s *Store) SweepLapsedBans(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE user_bans SET delete_timestamp = $1
		WHERE delete_timestamp IS NULL
			AND until_timestamp IS NOT NULL AND until_timestamp <= $1
		RETURNING user_id
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to sweep lapsed bans: %w", err)
	}
	defer rows.Close()

	seen := make(map[int64]bool)
	var userIDs []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan swept ban: %w", err)
		}
		if !seen[userID] {
			seen[userID] = true
			userIDs = append(userIDs, userID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate swept bans: %w", err)
	}
	return userIDs, nil
}

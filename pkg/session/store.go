package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sharesphere/sharesphere/pkg/apperr"
)

// Store reads and rotates refresh tokens on the users table.
type Store struct {
	db *sql.DB
}

// NewStore creates a new session store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetRefreshToken returns the user's stored refresh token. ErrNotFound
// covers both a missing user and a user with no stored token.
func (s *Store) GetRefreshToken(ctx context.Context, userID int64) (string, error) {
	var token sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT refresh_token FROM users WHERE user_id = $1
	`, userID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFoundf("user %d not found", userID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}
	if !token.Valid || token.String == "" {
		return "", apperr.NotFoundf("user %d has no stored credentials", userID)
	}
	return token.String, nil
}

// SetRefreshToken stores the rotated refresh token.
func (s *Store) SetRefreshToken(ctx context.Context, userID int64, token string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET refresh_token = $1 WHERE user_id = $2
	`, token, userID)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return apperr.NotFoundf("user %d not found", userID)
	}
	return nil
}

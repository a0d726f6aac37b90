package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sharesphere/sharesphere/pkg/apperr"
)

// LoadUser rebuilds a user's permission snapshot from the store: the user
// record, every active sphere role, and every active ban. Lapsed
// temporary bans are dropped; overlapping bans in one scope keep the
// strictest status.
func (s *Store) LoadUser(ctx context.Context, userID int64) (*User, error) {
	user, err := s.GetUserRecord(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sphere_name, permission_level FROM user_sphere_roles
		WHERE user_id = $1 AND delete_timestamp IS NULL
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sphere roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sphereName, levelName string
		if err := rows.Scan(&sphereName, &levelName); err != nil {
			return nil, fmt.Errorf("failed to scan sphere role: %w", err)
		}
		level, err := ParsePermissionLevel(levelName)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored permission level: %w", err)
		}
		user.PermissionBySphere[sphereName] = level
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sphere roles: %w", err)
	}

	if err := s.loadBanStatuses(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserRecord loads the bare user row with empty projection maps.
func (s *Store) GetUserRecord(ctx context.Context, userID int64) (*User, error) {
	user := &User{
		PermissionBySphere: make(map[string]PermissionLevel),
		BanStatusBySphere:  make(map[string]BanStatus),
	}
	var adminRole string

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, oidc_id, username, email, admin_role, create_timestamp
		FROM users WHERE user_id = $1
	`, userID).Scan(&user.UserID, &user.OIDCID, &user.Username, &user.Email, &adminRole, &user.CreateTimestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("user %d not found", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	user.AdminRole, err = ParseAdminRole(adminRole)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored admin role: %w", err)
	}
	return user, nil
}

// GetUserByUsername resolves a username to the bare user row.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var userID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM users WHERE username = $1
	`, username).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("user %s not found", username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up username: %w", err)
	}
	return s.GetUserRecord(ctx, userID)
}

func (s *Store) loadBanStatuses(ctx context.Context, user *User) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sphere_name, until_timestamp FROM user_bans
		WHERE user_id = $1 AND delete_timestamp IS NULL
	`, user.UserID)
	if err != nil {
		return fmt.Errorf("failed to load bans: %w", err)
	}
	defer rows.Close()

	now := time.Now().UTC()
	for rows.Next() {
		var sphereName sql.NullString
		var until sql.NullTime
		if err := rows.Scan(&sphereName, &until); err != nil {
			return fmt.Errorf("failed to scan ban: %w", err)
		}

		status := BanStatus{Permanent: !until.Valid}
		if until.Valid {
			if !until.Time.After(now) {
				continue // lapsed temporary ban
			}
			t := until.Time
			status.Until = &t
		}

		if sphereName.Valid {
			user.BanStatusBySphere[sphereName.String] = user.BanStatusBySphere[sphereName.String].Merge(status)
		} else {
			user.BanStatus = user.BanStatus.Merge(status)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate bans: %w", err)
	}
	return nil
}

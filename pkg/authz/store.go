package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sharesphere/sharesphere/pkg/apperr"
)

// Store handles role and user persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new authorization store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

const sphereRoleColumns = `role_id, user_id, username, sphere_id, sphere_name, permission_level, grantor_id, create_timestamp, delete_timestamp`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSphereRole(row rowScanner) (*SphereRole, error) {
	var role SphereRole
	var level string
	var deleted sql.NullTime

	err := row.Scan(
		&role.RoleID,
		&role.UserID,
		&role.Username,
		&role.SphereID,
		&role.SphereName,
		&level,
		&role.GrantorID,
		&role.CreateTimestamp,
		&deleted,
	)
	if err != nil {
		return nil, err
	}

	role.PermissionLevel, err = ParsePermissionLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored permission level: %w", err)
	}
	if deleted.Valid {
		role.DeleteTimestamp = &deleted.Time
	}
	return &role, nil
}

// GetUserSphereRole returns the user's active role in the sphere, or
// ErrNotFound when none exists.
func (s *Store) GetUserSphereRole(ctx context.Context, userID int64, sphereName string) (*SphereRole, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_sphere_roles
		WHERE user_id = $1 AND sphere_name = $2 AND delete_timestamp IS NULL
	`, sphereRoleColumns)

	role, err := scanSphereRole(s.db.QueryRowContext(ctx, query, userID, sphereName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user sphere role: %w", err)
	}
	return role, nil
}

// GetSphereRoleVec returns all active roles in the sphere above None.
func (s *Store) GetSphereRoleVec(ctx context.Context, sphereName string) ([]SphereRole, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_sphere_roles
		WHERE sphere_name = $1 AND delete_timestamp IS NULL AND permission_level != 'none'
	`, sphereRoleColumns)

	rows, err := s.db.QueryContext(ctx, query, sphereName)
	if err != nil {
		return nil, fmt.Errorf("failed to list sphere roles: %w", err)
	}
	defer rows.Close()

	var roles []SphereRole
	for rows.Next() {
		role, err := scanSphereRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sphere role: %w", err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sphere roles: %w", err)
	}
	return roles, nil
}

// GetUserRoleHistory returns every grant ever recorded for the user in
// the sphere, newest first, tombstones included.
func (s *Store) GetUserRoleHistory(ctx context.Context, userID int64, sphereName string) ([]SphereRole, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_sphere_roles
		WHERE user_id = $1 AND sphere_name = $2
		ORDER BY create_timestamp DESC
	`, sphereRoleColumns)

	rows, err := s.db.QueryContext(ctx, query, userID, sphereName)
	if err != nil {
		return nil, fmt.Errorf("failed to list role history: %w", err)
	}
	defer rows.Close()

	var roles []SphereRole
	for rows.Next() {
		role, err := scanSphereRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role history: %w", err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate role history: %w", err)
	}
	return roles, nil
}

// GrantParams describes an ordinary (non-Lead) role grant.
type GrantParams struct {
	TargetUserID   int64
	TargetUsername string
	SphereID       int64
	SphereName     string
	Level          PermissionLevel
	GrantorID      int64
}

func softDeleteActiveRole(ctx context.Context, tx *sql.Tx, userID int64, sphereName string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE user_sphere_roles SET delete_timestamp = $1
		WHERE user_id = $2 AND sphere_name = $3 AND delete_timestamp IS NULL
	`, now, userID, sphereName)
	if err != nil {
		return fmt.Errorf("failed to soft-delete active role: %w", err)
	}
	return nil
}

func insertRole(ctx context.Context, tx *sql.Tx, userID int64, username string, sphereID int64, sphereName string, level PermissionLevel, grantorID int64, now time.Time) (*SphereRole, error) {
	role := &SphereRole{
		UserID:          userID,
		Username:        username,
		SphereID:        sphereID,
		SphereName:      sphereName,
		PermissionLevel: level,
		GrantorID:       grantorID,
		CreateTimestamp: now,
	}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO user_sphere_roles (user_id, username, sphere_id, sphere_name, permission_level, grantor_id, create_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING role_id
	`, userID, username, sphereID, sphereName, level.String(), grantorID, now).Scan(&role.RoleID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert role: %w", err)
	}
	return role, nil
}

// GrantRole replaces the target's active role in one transaction: the
// previous row is tombstoned and the new grant inserted.
func (s *Store) GrantRole(ctx context.Context, p GrantParams) (*SphereRole, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if err := softDeleteActiveRole(ctx, tx, p.TargetUserID, p.SphereName, now); err != nil {
		return nil, err
	}

	role, err := insertRole(ctx, tx, p.TargetUserID, p.TargetUsername, p.SphereID, p.SphereName, p.Level, p.GrantorID, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit role grant: %w", err)
	}
	return role, nil
}

// TransferParams describes a leadership succession.
type TransferParams struct {
	TargetUserID   int64
	TargetUsername string
	SphereID       int64
	SphereName     string
	LeaderID       int64
	LeaderUsername string
}

// TransferLeadership moves the sphere's unique Lead role from the sitting
// leader to the target. Four writes commit atomically: the old Lead row is
// tombstoned, the outgoing leader gets an active Manage row, the target's
// prior role is tombstoned, and the target gets the Lead row. Returns the
// outgoing leader's id.
func (s *Store) TransferLeadership(ctx context.Context, p TransferParams) (*SphereRole, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var leadRoleID, leadUserID int64
	err = tx.QueryRowContext(ctx, `
		SELECT role_id, user_id FROM user_sphere_roles
		WHERE sphere_name = $1 AND permission_level = 'lead' AND delete_timestamp IS NULL
		FOR UPDATE
	`, p.SphereName).Scan(&leadRoleID, &leadUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, apperr.Internalf("sphere %s has no active leader", p.SphereName)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to lock current leader row: %w", err)
	}
	if leadUserID != p.LeaderID {
		// The snapshot the caller checked against is stale.
		return nil, 0, apperr.ErrInsufficientPrivileges
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE user_sphere_roles SET delete_timestamp = $1 WHERE role_id = $2
	`, now, leadRoleID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to retire leader row: %w", err)
	}

	if _, err := insertRole(ctx, tx, p.LeaderID, p.LeaderUsername, p.SphereID, p.SphereName, PermissionManage, p.LeaderID, now); err != nil {
		return nil, 0, err
	}

	if err := softDeleteActiveRole(ctx, tx, p.TargetUserID, p.SphereName, now); err != nil {
		return nil, 0, err
	}

	role, err := insertRole(ctx, tx, p.TargetUserID, p.TargetUsername, p.SphereID, p.SphereName, PermissionLead, p.LeaderID, now)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit leadership transfer: %w", err)
	}
	return role, p.LeaderID, nil
}

// InitSphereLeader seeds the creator as the sphere's first leader. Fails
// if any role row, active or tombstoned, already exists for the sphere.
func (s *Store) InitSphereLeader(ctx context.Context, userID int64, username string, sphereID int64, sphereName string) (*SphereRole, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_sphere_roles WHERE sphere_name = $1
	`, sphereName).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to count sphere roles: %w", err)
	}
	if count > 0 {
		return nil, apperr.Internalf("sphere %s already has role records", sphereName)
	}

	role, err := insertRole(ctx, tx, userID, username, sphereID, sphereName, PermissionLead, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit leader initialization: %w", err)
	}
	return role, nil
}

// SetUserAdminRole updates the global role on the user record. Flat
// update, no history.
func (s *Store) SetUserAdminRole(ctx context.Context, userID int64, role AdminRole) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET admin_role = $1 WHERE user_id = $2
	`, role.String(), userID)
	if err != nil {
		return fmt.Errorf("failed to set admin role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// GetSphereID resolves a sphere name to its id.
func (s *Store) GetSphereID(ctx context.Context, sphereName string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT sphere_id FROM spheres WHERE sphere_name = $1
	`, sphereName).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFoundf("sphere %s not found", sphereName)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up sphere: %w", err)
	}
	return id, nil
}

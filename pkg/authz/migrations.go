package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all authorization migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					user_id BIGSERIAL PRIMARY KEY,
					oidc_id TEXT NOT NULL UNIQUE,
					username TEXT NOT NULL UNIQUE,
					email TEXT NOT NULL,
					admin_role TEXT NOT NULL DEFAULT 'none',
					refresh_token TEXT,
					create_timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_users_oidc_id ON users(oidc_id);
				CREATE INDEX idx_users_username ON users(username);
			`,
		},
		{
			Version:     2,
			Description: "Create user_sphere_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_sphere_roles (
					role_id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
					username TEXT NOT NULL,
					sphere_id BIGINT NOT NULL,
					sphere_name TEXT NOT NULL,
					permission_level TEXT NOT NULL,
					grantor_id BIGINT NOT NULL,
					create_timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					delete_timestamp TIMESTAMPTZ
				);

				CREATE INDEX idx_user_sphere_roles_user_id ON user_sphere_roles(user_id);
				CREATE INDEX idx_user_sphere_roles_sphere_name ON user_sphere_roles(sphere_name);

				-- one active role per (user, sphere)
				CREATE UNIQUE INDEX idx_user_sphere_roles_active
					ON user_sphere_roles(user_id, sphere_name)
					WHERE delete_timestamp IS NULL;

				-- one active leader per sphere
				CREATE UNIQUE INDEX idx_user_sphere_roles_active_lead
					ON user_sphere_roles(sphere_name)
					WHERE delete_timestamp IS NULL AND permission_level = 'lead';
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return RunMigrationSet(ctx, db, "authz_migrations", GetMigrations())
}

// RunMigrationSet applies a package's migrations, tracking applied
// versions in the named table. Shared by the other stores so every
// package records its schema history the same way.
func RunMigrationSet(ctx context.Context, db *sql.DB, trackingTable string, migrations []Migration) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`, trackingTable))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db, trackingTable)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Description, err)
		}

		_, err = tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (version, description) VALUES ($1, $2)", trackingTable),
			migration.Version, migration.Description)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB, trackingTable string) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT version FROM %s ORDER BY version", trackingTable))
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

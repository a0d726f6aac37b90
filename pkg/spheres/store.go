package spheres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/sharesphere/sharesphere/pkg/apperr"
	"github.com/sharesphere/sharesphere/pkg/authz"
)

// Store handles sphere and rule persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new sphere store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetMigrations returns all sphere migrations
func GetMigrations() []authz.Migration {
	return []authz.Migration{
		{
			Version:     1,
			Description: "Create spheres table",
			SQL: `
				CREATE TABLE IF NOT EXISTS spheres (
					sphere_id BIGSERIAL PRIMARY KEY,
					sphere_name TEXT NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT '',
					creator_id BIGINT NOT NULL,
					create_timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create rules table",
			SQL: `
				CREATE TABLE IF NOT EXISTS rules (
					rule_id BIGSERIAL PRIMARY KEY,
					sphere_id BIGINT REFERENCES spheres(sphere_id) ON DELETE CASCADE,
					title TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT ''
				);

				CREATE INDEX idx_rules_sphere_id ON rules(sphere_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func (s *Store) RunMigrations(ctx context.Context) error {
	return authz.RunMigrationSet(ctx, s.db, "spheres_migrations", GetMigrations())
}

// CreateSphere inserts a new sphere. A duplicate name maps to a conflict
// error the handler can surface.
func (s *Store) CreateSphere(ctx context.Context, name, description string, creatorID int64) (*Sphere, error) {
	sphere := &Sphere{
		SphereName:      name,
		Description:     description,
		CreatorID:       creatorID,
		CreateTimestamp: time.Now().UTC(),
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO spheres (sphere_name, description, creator_id, create_timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING sphere_id
	`, name, description, creatorID, sphere.CreateTimestamp).Scan(&sphere.SphereID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, fmt.Errorf("sphere %s already exists", name)
		}
		return nil, fmt.Errorf("failed to create sphere: %w", err)
	}
	return sphere, nil
}

// GetSphere returns the sphere by name, or ErrNotFound.
func (s *Store) GetSphere(ctx context.Context, name string) (*Sphere, error) {
	var sphere Sphere
	err := s.db.QueryRowContext(ctx, `
		SELECT sphere_id, sphere_name, description, creator_id, create_timestamp
		FROM spheres WHERE sphere_name = $1
	`, name).Scan(&sphere.SphereID, &sphere.SphereName, &sphere.Description, &sphere.CreatorID, &sphere.CreateTimestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("sphere %s not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sphere: %w", err)
	}
	return &sphere, nil
}

// ListSpheres returns every sphere, newest first.
func (s *Store) ListSpheres(ctx context.Context) ([]Sphere, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sphere_id, sphere_name, description, creator_id, create_timestamp
		FROM spheres ORDER BY create_timestamp DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list spheres: %w", err)
	}
	defer rows.Close()

	var spheres []Sphere
	for rows.Next() {
		var sphere Sphere
		if err := rows.Scan(&sphere.SphereID, &sphere.SphereName, &sphere.Description, &sphere.CreatorID, &sphere.CreateTimestamp); err != nil {
			return nil, fmt.Errorf("failed to scan sphere: %w", err)
		}
		spheres = append(spheres, sphere)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate spheres: %w", err)
	}
	return spheres, nil
}

// CreateRule inserts a moderation rule. sphereID nil makes it global.
func (s *Store) CreateRule(ctx context.Context, sphereID *int64, title, description string) (*Rule, error) {
	rule := &Rule{
		SphereID:    sphereID,
		Title:       title,
		Description: description,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO rules (sphere_id, title, description)
		VALUES ($1, $2, $3)
		RETURNING rule_id
	`, sphereID, title, description).Scan(&rule.RuleID)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	return rule, nil
}

// GetRule returns the rule by id, or ErrNotFound. Moderation reads it to
// denormalize the title onto the moderated content.
func (s *Store) GetRule(ctx context.Context, ruleID int64) (*Rule, error) {
	var rule Rule
	var sphereID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT rule_id, sphere_id, title, description FROM rules WHERE rule_id = $1
	`, ruleID).Scan(&rule.RuleID, &sphereID, &rule.Title, &rule.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("rule %d not found", ruleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	if sphereID.Valid {
		rule.SphereID = &sphereID.Int64
	}
	return &rule, nil
}

// GetSphereRuleVec returns the sphere's own rules plus the global rules.
func (s *Store) GetSphereRuleVec(ctx context.Context, sphereName string) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.rule_id, r.sphere_id, r.title, r.description
		FROM rules r
		LEFT JOIN spheres sp ON r.sphere_id = sp.sphere_id
		WHERE r.sphere_id IS NULL OR sp.sphere_name = $1
		ORDER BY r.rule_id
	`, sphereName)
	if err != nil {
		return nil, fmt.Errorf("failed to list sphere rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		var sphereID sql.NullInt64
		if err := rows.Scan(&rule.RuleID, &sphereID, &rule.Title, &rule.Description); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if sphereID.Valid {
			rule.SphereID = &sphereID.Int64
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return rules, nil
}

package spheres

import (
	"context"
	"fmt"

	"github.com/sharesphere/sharesphere/pkg/authz"
	"github.com/sharesphere/sharesphere/pkg/observability"
)

// Service manages sphere lifecycle and rule lookups.
type Service struct {
	store  *Store
	authz  *authz.Service
	logger *observability.Logger
}

// NewService creates the sphere service.
func NewService(store *Store, authzService *authz.Service, logger *observability.Logger) *Service {
	return &Service{
		store:  store,
		authz:  authzService,
		logger: logger,
	}
}

// CreateSphere inserts the sphere and seeds the creator as its first
// leader. The sphere row and the lead role are separate commits; if
// leader seeding fails the sphere is left without a leader and the error
// surfaces to the caller.
func (s *Service) CreateSphere(ctx context.Context, name, description string, creator *authz.User) (*Sphere, error) {
	if name == "" {
		return nil, fmt.Errorf("sphere name must not be empty")
	}

	sphere, err := s.store.CreateSphere(ctx, name, description, creator.UserID)
	if err != nil {
		return nil, err
	}

	if _, err := s.authz.InitSphereLeader(ctx, creator, sphere.SphereID, sphere.SphereName); err != nil {
		return nil, fmt.Errorf("failed to seed sphere leader: %w", err)
	}

	s.logger.WithSphere(name).WithField("creator_id", creator.UserID).Info("sphere created")
	return sphere, nil
}

// GetSphere returns the sphere by name.
func (s *Service) GetSphere(ctx context.Context, name string) (*Sphere, error) {
	return s.store.GetSphere(ctx, name)
}

// ListSpheres returns every sphere.
func (s *Service) ListSpheres(ctx context.Context) ([]Sphere, error) {
	return s.store.ListSpheres(ctx)
}

// CreateRule adds a moderation rule to the sphere. Requires Manage or
// better; a nil sphere name creates a global rule, admin only.
func (s *Service) CreateRule(ctx context.Context, sphereName *string, title, description string, creator *authz.User) (*Rule, error) {
	if title == "" {
		return nil, fmt.Errorf("rule title must not be empty")
	}

	if sphereName == nil {
		if err := creator.CheckAdminRole(authz.AdminRoleAdmin); err != nil {
			return nil, err
		}
		return s.store.CreateRule(ctx, nil, title, description)
	}

	if err := creator.CheckPermissions(*sphereName, authz.PermissionManage); err != nil {
		return nil, err
	}
	sphere, err := s.store.GetSphere(ctx, *sphereName)
	if err != nil {
		return nil, err
	}
	return s.store.CreateRule(ctx, &sphere.SphereID, title, description)
}

// GetRule returns the rule by id.
func (s *Service) GetRule(ctx context.Context, ruleID int64) (*Rule, error) {
	return s.store.GetRule(ctx, ruleID)
}

// GetSphereRuleVec returns the rules applicable in the sphere.
func (s *Service) GetSphereRuleVec(ctx context.Context, sphereName string) ([]Rule, error) {
	return s.store.GetSphereRuleVec(ctx, sphereName)
}

package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sharesphere/sharesphere/pkg/apperr"
	"github.com/sharesphere/sharesphere/pkg/observability"
)

// Service coordinates role assignment: authority checks against fresh
// snapshots, per-user serialization, store writes, and cache
// invalidation after commit.
type Service struct {
	store   *Store
	cache   *SnapshotCache
	locks   *UserLockTable
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates the role assignment service. cache and metrics may
// be nil.
func NewService(store *Store, cache *SnapshotCache, locks *UserLockTable, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:   store,
		cache:   cache,
		locks:   locks,
		logger:  logger,
		metrics: metrics,
	}
}

// Store exposes the underlying store for collaborating services.
func (s *Service) Store() *Store {
	return s.store
}

// Locks exposes the per-user lock table for collaborators that serialize
// their own read-modify-write cycles (credential refresh, bans).
func (s *Service) Locks() *UserLockTable {
	return s.locks
}

// withUserLock serializes fn on the target user's lock and records how
// long the caller waited for the lock.
func (s *Service) withUserLock(userID int64, fn func() error) error {
	start := time.Now()
	return s.locks.WithLock(userID, func() error {
		if s.metrics != nil {
			s.metrics.UserLockWaitDuration.Observe(time.Since(start).Seconds())
		}
		return fn()
	})
}

// GetUser returns the user's permission snapshot, from cache when warm.
func (s *Service) GetUser(ctx context.Context, userID int64) (*User, error) {
	if s.cache != nil {
		user, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.WithError(err).WithUserID(userID).Warn("snapshot cache read failed, falling back to store")
		} else if user != nil {
			return user, nil
		}
	}

	start := time.Now()
	user, err := s.store.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SnapshotLoadDuration.Observe(time.Since(start).Seconds())
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, user); err != nil {
			s.logger.WithError(err).WithUserID(userID).Warn("snapshot cache write failed")
		}
	}
	return user, nil
}

// InvalidateUser drops the user's cached snapshot. Called after every
// committed permission-affecting mutation; a failure leaves the TTL as
// the staleness bound, so it is logged rather than propagated.
func (s *Service) InvalidateUser(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.WithError(err).WithUserID(userID).Error("snapshot invalidation failed")
	}
}

// CheckPermissions resolves the user's effective level in the sphere and
// fails if it is below required.
func (s *Service) CheckPermissions(ctx context.Context, userID int64, sphereName string, required PermissionLevel) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	err = user.CheckPermissions(sphereName, required)
	if s.metrics != nil {
		result := "allowed"
		if err != nil {
			result = "denied"
		}
		s.metrics.PermissionChecksTotal.WithLabelValues("check_permissions", result).Inc()
	}
	return err
}

// GetUserSphereRole returns the target's active role in the sphere.
func (s *Service) GetUserSphereRole(ctx context.Context, userID int64, sphereName string) (*SphereRole, error) {
	return s.store.GetUserSphereRole(ctx, userID, sphereName)
}

// GetSphereRoleVec returns the sphere's active roles above None.
func (s *Service) GetSphereRoleVec(ctx context.Context, sphereName string) ([]SphereRole, error) {
	return s.store.GetSphereRoleVec(ctx, sphereName)
}

// SetSphereRole assigns level to the target user in the sphere on the
// grantor's authority. Granting Lead is a leadership transfer with its
// own protocol; every other level is an ordinary grant. The second
// return value is the outgoing leader's id, set only on succession.
func (s *Service) SetSphereRole(ctx context.Context, targetUserID int64, sphereName string, level PermissionLevel, grantor *User) (*SphereRole, *int64, error) {
	if !level.Valid() {
		return nil, nil, fmt.Errorf("invalid permission level %d", int(level))
	}

	if level == PermissionLead {
		role, prevLeaderID, err := s.TransferLeadership(ctx, targetUserID, sphereName, grantor)
		if err != nil {
			return nil, nil, err
		}
		return role, &prevLeaderID, nil
	}

	role, err := s.GrantRole(ctx, targetUserID, sphereName, level, grantor)
	if err != nil {
		return nil, nil, err
	}
	return role, nil, nil
}

// TransferLeadership moves the sphere's Lead role from the grantor to the
// target, demoting the grantor to Manage. Only the sitting leader may
// transfer; the admin overlay does not qualify.
func (s *Service) TransferLeadership(ctx context.Context, targetUserID int64, sphereName string, grantor *User) (*SphereRole, int64, error) {
	if err := grantor.CheckIsSphereLeader(sphereName); err != nil {
		s.denied("transfer_leadership")
		return nil, 0, err
	}

	sphereID, err := s.store.GetSphereID(ctx, sphereName)
	if err != nil {
		return nil, 0, err
	}
	target, err := s.store.GetUserRecord(ctx, targetUserID)
	if err != nil {
		return nil, 0, err
	}

	var role *SphereRole
	var prevLeaderID int64
	err = s.withUserLock(targetUserID, func() error {
		var txErr error
		role, prevLeaderID, txErr = s.store.TransferLeadership(ctx, TransferParams{
			TargetUserID:   targetUserID,
			TargetUsername: target.Username,
			SphereID:       sphereID,
			SphereName:     sphereName,
			LeaderID:       grantor.UserID,
			LeaderUsername: grantor.Username,
		})
		return txErr
	})
	if err != nil {
		return nil, 0, err
	}

	s.InvalidateUser(ctx, targetUserID)
	s.InvalidateUser(ctx, grantor.UserID)

	if s.metrics != nil {
		s.metrics.LeadershipTransfers.Inc()
	}
	s.logger.WithSphere(sphereName).WithFields(map[string]interface{}{
		"new_leader_id": targetUserID,
		"old_leader_id": prevLeaderID,
	}).Info("leadership transferred")

	return role, prevLeaderID, nil
}

// GrantRole performs an ordinary (non-Lead) role grant. The grantor must
// be a global admin, or hold Manage or better in the sphere with both the
// granted level and the target's current level strictly below their own.
// A sitting leader cannot demote themselves; they must transfer
// leadership first.
func (s *Service) GrantRole(ctx context.Context, targetUserID int64, sphereName string, level PermissionLevel, grantor *User) (*SphereRole, error) {
	if level == PermissionLead {
		return nil, fmt.Errorf("lead role must be granted through leadership transfer")
	}

	if targetUserID == grantor.UserID && grantor.SpherePermissionLevel(sphereName) == PermissionLead {
		s.denied("set_sphere_role")
		return nil, apperr.ErrLeaderMustTransfer
	}

	sphereID, err := s.store.GetSphereID(ctx, sphereName)
	if err != nil {
		return nil, err
	}
	target, err := s.store.GetUserRecord(ctx, targetUserID)
	if err != nil {
		return nil, err
	}

	var role *SphereRole
	err = s.withUserLock(targetUserID, func() error {
		current, err := s.store.GetUserSphereRole(ctx, targetUserID, sphereName)
		targetHasRole := err == nil
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		var currentLevel PermissionLevel
		if targetHasRole {
			currentLevel = current.PermissionLevel
		}

		if err := grantor.CheckCanSetSphereRole(sphereName, level, currentLevel, targetHasRole); err != nil {
			s.denied("set_sphere_role")
			return err
		}

		role, err = s.store.GrantRole(ctx, GrantParams{
			TargetUserID:   targetUserID,
			TargetUsername: target.Username,
			SphereID:       sphereID,
			SphereName:     sphereName,
			Level:          level,
			GrantorID:      grantor.UserID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateUser(ctx, targetUserID)

	if s.metrics != nil {
		s.metrics.RoleChangesTotal.WithLabelValues(level.String()).Inc()
	}
	s.logger.WithSphere(sphereName).WithFields(map[string]interface{}{
		"target_user_id": targetUserID,
		"level":          level.String(),
		"grantor_id":     grantor.UserID,
	}).Info("sphere role granted")

	return role, nil
}

// SetUserAdminRole updates the target's global role. Only a global admin
// may change admin roles; the update is flat, with no grant history.
func (s *Service) SetUserAdminRole(ctx context.Context, targetUserID int64, role AdminRole, grantor *User) (*User, error) {
	if err := grantor.CheckAdminRole(AdminRoleAdmin); err != nil {
		s.denied("set_admin_role")
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("invalid admin role %d", int(role))
	}

	err := s.withUserLock(targetUserID, func() error {
		return s.store.SetUserAdminRole(ctx, targetUserID, role)
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateUser(ctx, targetUserID)

	s.logger.WithFields(map[string]interface{}{
		"target_user_id": targetUserID,
		"admin_role":     role.String(),
		"grantor_id":     grantor.UserID,
	}).Info("admin role updated")

	return s.store.LoadUser(ctx, targetUserID)
}

// InitSphereLeader seeds the creator as the first leader of a freshly
// created sphere.
func (s *Service) InitSphereLeader(ctx context.Context, creator *User, sphereID int64, sphereName string) (*SphereRole, error) {
	role, err := s.store.InitSphereLeader(ctx, creator.UserID, creator.Username, sphereID, sphereName)
	if err != nil {
		return nil, err
	}
	s.InvalidateUser(ctx, creator.UserID)
	return role, nil
}

func (s *Service) denied(operation string) {
	if s.metrics != nil {
		s.metrics.PermissionDenialsTotal.WithLabelValues(operation).Inc()
	}
}

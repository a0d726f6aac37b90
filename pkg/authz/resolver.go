package authz

import (
	"time"

	"github.com/sharesphere/sharesphere/pkg/apperr"
)

// SpherePermissionLevel returns the user's sphere-specific role level,
// ignoring the admin overlay. PermissionNone when no active role exists.
func (u *User) SpherePermissionLevel(sphereName string) PermissionLevel {
	if level, ok := u.PermissionBySphere[sphereName]; ok {
		return level
	}
	return PermissionNone
}

// Resolve computes the effective permission level in a sphere: the
// maximum of the sphere-specific role and the global admin overlay.
// Pure; callers must hold a fresh snapshot.
func (u *User) Resolve(sphereName string) PermissionLevel {
	sphereLevel := u.SpherePermissionLevel(sphereName)
	adminLevel := u.AdminRole.EffectiveLevel()
	if adminLevel > sphereLevel {
		return adminLevel
	}
	return sphereLevel
}

// CheckPermissions fails with ErrInsufficientPrivileges iff the effective
// level in the sphere is below required.
func (u *User) CheckPermissions(sphereName string, required PermissionLevel) error {
	if u.Resolve(sphereName) < required {
		return apperr.ErrInsufficientPrivileges
	}
	return nil
}

// CheckAdminRole fails unless the user's global role is at least required.
func (u *User) CheckAdminRole(required AdminRole) error {
	if u.AdminRole < required {
		return apperr.ErrInsufficientPrivileges
	}
	return nil
}

// CheckIsSphereLeader fails unless the user holds the Lead role in the
// sphere itself. The admin overlay deliberately does not count:
// leadership transfer is reserved to the sitting leader.
func (u *User) CheckIsSphereLeader(sphereName string) error {
	if u.SpherePermissionLevel(sphereName) != PermissionLead {
		return apperr.ErrInsufficientPrivileges
	}
	return nil
}

// CheckCanPublish fails when a global ban is in force.
func (u *User) CheckCanPublish(now time.Time) error {
	if u.BanStatus.IsPermanent() {
		return apperr.ErrPermanentGlobalBan
	}
	if u.BanStatus.IsActive(now) {
		return apperr.GlobalBanUntil(*u.BanStatus.Until)
	}
	return nil
}

// CheckCanPublishOnSphere fails when a global or sphere ban is in force.
// A lapsed temporary ban does not block.
func (u *User) CheckCanPublishOnSphere(sphereName string, now time.Time) error {
	if err := u.CheckCanPublish(now); err != nil {
		return err
	}
	status, ok := u.BanStatusBySphere[sphereName]
	if !ok {
		return nil
	}
	if status.IsPermanent() {
		return apperr.ErrPermanentSphereBan
	}
	if status.IsActive(now) {
		return apperr.SphereBanUntil(*status.Until)
	}
	return nil
}

// CheckCanSetSphereRole decides whether the user may grant level in the
// sphere to a target whose current level is targetCurrent (targetHasRole
// false when the target has no active role there). A global admin may
// grant anything; otherwise the grantor needs Manage or better in the
// sphere, and both the granted level and the target's current level must
// be strictly below the grantor's own. Leadership is excluded: it moves
// only through succession.
func (u *User) CheckCanSetSphereRole(sphereName string, level PermissionLevel, targetCurrent PermissionLevel, targetHasRole bool) error {
	if u.AdminRole == AdminRoleAdmin {
		return nil
	}

	own := u.Resolve(sphereName)
	if own < PermissionManage {
		return apperr.ErrInsufficientPrivileges
	}
	if level >= own {
		return apperr.ErrInsufficientPrivileges
	}
	if targetHasRole && targetCurrent >= own {
		return apperr.ErrInsufficientPrivileges
	}
	return nil
}

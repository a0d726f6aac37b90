package authz

import (
	"encoding/json"
	"fmt"
	"time"
)

// PermissionLevel is the sphere-scoped authority level. Values are
// ordered; comparisons between levels are meaningful.
type PermissionLevel int

const (
	PermissionNone PermissionLevel = iota
	PermissionModerate
	PermissionBan
	PermissionManage
	PermissionLead
)

var permissionLevelNames = map[PermissionLevel]string{
	PermissionNone:     "none",
	PermissionModerate: "moderate",
	PermissionBan:      "ban",
	PermissionManage:   "manage",
	PermissionLead:     "lead",
}

func (l PermissionLevel) String() string {
	if name, ok := permissionLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("permission_level(%d)", int(l))
}

// Valid reports whether l is one of the defined levels.
func (l PermissionLevel) Valid() bool {
	_, ok := permissionLevelNames[l]
	return ok
}

// ParsePermissionLevel converts the wire/database form into a level.
func ParsePermissionLevel(s string) (PermissionLevel, error) {
	for level, name := range permissionLevelNames {
		if name == s {
			return level, nil
		}
	}
	return PermissionNone, fmt.Errorf("unknown permission level %q", s)
}

// MarshalJSON encodes the level by name.
func (l PermissionLevel) MarshalJSON() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid permission level %d", int(l))
	}
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level by name.
func (l *PermissionLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	level, err := ParsePermissionLevel(s)
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// AdminRole is the global administrative role stored on the user record.
type AdminRole int

const (
	AdminRoleNone AdminRole = iota
	AdminRoleModerator
	AdminRoleAdmin
)

var adminRoleNames = map[AdminRole]string{
	AdminRoleNone:      "none",
	AdminRoleModerator: "moderator",
	AdminRoleAdmin:     "admin",
}

func (r AdminRole) String() string {
	if name, ok := adminRoleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("admin_role(%d)", int(r))
}

// Valid reports whether r is one of the defined roles.
func (r AdminRole) Valid() bool {
	_, ok := adminRoleNames[r]
	return ok
}

// ParseAdminRole converts the wire/database form into a role.
func ParseAdminRole(s string) (AdminRole, error) {
	for role, name := range adminRoleNames {
		if name == s {
			return role, nil
		}
	}
	return AdminRoleNone, fmt.Errorf("unknown admin role %q", s)
}

// MarshalJSON encodes the role by name.
func (r AdminRole) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid admin role %d", int(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a role by name.
func (r *AdminRole) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	role, err := ParseAdminRole(s)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// EffectiveLevel maps the global role onto the per-sphere permission it
// implies everywhere.
func (r AdminRole) EffectiveLevel() PermissionLevel {
	switch r {
	case AdminRoleModerator:
		return PermissionBan
	case AdminRoleAdmin:
		return PermissionLead
	default:
		return PermissionNone
	}
}

// SphereRole is one row of the role grant history. DeleteTimestamp nil
// means the row is the user's active role in the sphere.
type SphereRole struct {
	RoleID          int64           `json:"role_id"`
	UserID          int64           `json:"user_id"`
	Username        string          `json:"username"`
	SphereID        int64           `json:"sphere_id"`
	SphereName      string          `json:"sphere_name"`
	PermissionLevel PermissionLevel `json:"permission_level"`
	GrantorID       int64           `json:"grantor_id"`
	CreateTimestamp time.Time       `json:"create_timestamp"`
	DeleteTimestamp *time.Time      `json:"delete_timestamp,omitempty"`
}

// Active reports whether the row is the live grant.
func (r *SphereRole) Active() bool {
	return r.DeleteTimestamp == nil
}

// BanStatus describes one user's standing in a scope. The zero value
// means not banned.
type BanStatus struct {
	Permanent bool       `json:"permanent,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
}

// IsPermanent reports a permanent ban.
func (b BanStatus) IsPermanent() bool {
	return b.Permanent
}

// IsActive reports whether the ban blocks the user at the given instant.
func (b BanStatus) IsActive(now time.Time) bool {
	if b.Permanent {
		return true
	}
	return b.Until != nil && b.Until.After(now)
}

// Merge returns the stricter of two statuses: permanent beats temporary,
// and a later horizon beats an earlier one.
func (b BanStatus) Merge(other BanStatus) BanStatus {
	if b.Permanent || other.Permanent {
		return BanStatus{Permanent: true}
	}
	if b.Until == nil {
		return other
	}
	if other.Until == nil || b.Until.After(*other.Until) {
		return b
	}
	return other
}

// User is the cached permission snapshot consulted by every authorization
// decision. PermissionBySphere holds only sphere-specific roles; the
// admin overlay is applied by Resolve, never stored.
type User struct {
	UserID             int64                      `json:"user_id"`
	OIDCID             string                     `json:"oidc_id"`
	Username           string                     `json:"username"`
	Email              string                     `json:"email"`
	AdminRole          AdminRole                  `json:"admin_role"`
	PermissionBySphere map[string]PermissionLevel `json:"permission_by_sphere"`
	BanStatus          BanStatus                  `json:"ban_status"`
	BanStatusBySphere  map[string]BanStatus       `json:"ban_status_by_sphere"`
	CreateTimestamp    time.Time                  `json:"create_timestamp"`
}

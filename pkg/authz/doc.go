// Package authz implements sphere-scoped authorization for ShareSphere:
// the permission hierarchy, the soft-deleted role store, effective
// permission resolution, role assignment with leadership succession, and
// the per-user coordination lock and snapshot cache.
//
// # Permission Model
//
// Permission levels form a total order:
//
//	None < Moderate < Ban < Manage < Lead
//
// Global admin roles overlay every sphere at read time:
//
//	AdminRoleNone -> PermissionNone
//	AdminRoleModerator -> PermissionBan
//	AdminRoleAdmin -> PermissionLead
//
// A user's effective level in a sphere is the maximum of their sphere role
// and the admin overlay. The overlay is never persisted per sphere; it is
// recomputed on every resolution.
//
// # Role History
//
// Role grants are append-only. Replacing a role soft-deletes the previous
// row by stamping delete_timestamp, so the full grant history stays
// queryable. At most one row per (user, sphere) is active, and each sphere
// has exactly one active Lead row once initialized.
//
// # Leadership Succession
//
// Granting Lead is a dedicated state transition, not an ordinary grant:
// only the sphere's current leader may transfer leadership, the transfer
// demotes the outgoing leader to Manage, and all four row writes commit in
// one transaction. A global admin's overlay does not confer the authority
// to transfer leadership.
//
// # Coordination
//
// Operations that read-then-write a user's permission state are serialized
// per user id through a bounded lock table, and every committed mutation
// invalidates that user's cached snapshot in Redis.
package authz

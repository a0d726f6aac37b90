// Package apperr defines the application error taxonomy shared by the
// authorization, moderation, and content packages.
//
// # Overview
//
// Errors fall into three families: authority denials (insufficient
// privileges, leadership transfer required), ban denials carrying the ban
// horizon, and infrastructure failures surfaced as an opaque internal error.
// Each error maps to a stable machine-readable code and an HTTP status, so
// handlers can translate without inspecting error strings.
//
// # Usage
//
//	if err := authz.CheckPermissions(user, sphere, authz.PermissionModerate); err != nil {
//		if errors.Is(err, apperr.ErrInsufficientPrivileges) {
//			// 403
//		}
//	}
package apperr

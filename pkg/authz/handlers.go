package authz

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sharesphere/sharesphere/pkg/httputil"
)

// Handlers provides HTTP handlers for authorization operations
type Handlers struct {
	service *Service
}

// NewHandlers creates new authorization handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers all authorization routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/spheres/{sphere}/roles", h.GrantSphereRole).Methods("POST")
	router.HandleFunc("/spheres/{sphere}/roles", h.ListSphereRoles).Methods("GET")
	router.HandleFunc("/spheres/{sphere}/roles/{user_id}", h.GetUserSphereRole).Methods("GET")
	router.HandleFunc("/spheres/{sphere}/permissions/check", h.CheckPermissions).Methods("GET")

	router.HandleFunc("/users/me", h.GetSelf).Methods("GET")
	router.HandleFunc("/users/{user_id}/admin-role", h.SetAdminRole).Methods("PUT")
}

// GrantSphereRoleResponse is the grant/succession result payload.
type GrantSphereRoleResponse struct {
	Role             *SphereRole `json:"role"`
	PreviousLeaderID *int64      `json:"previous_leader_id,omitempty"`
}

// GrantSphereRole assigns a role in a sphere on the caller's authority.
func (h *Handlers) GrantSphereRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}
	sphere, ok := httputil.ParsePathStringOrError(w, r, "sphere")
	if !ok {
		return
	}

	var req struct {
		UserID int64           `json:"user_id"`
		Level  PermissionLevel `json:"level"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonZero(w, req.UserID, "user_id") {
		return
	}

	role, prevLeaderID, err := h.service.SetSphereRole(r.Context(), req.UserID, sphere, req.Level, caller)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteCreated(w, GrantSphereRoleResponse{
		Role:             role,
		PreviousLeaderID: prevLeaderID,
	})
}

// ListSphereRoles returns the sphere's active roles.
func (h *Handlers) ListSphereRoles(w http.ResponseWriter, r *http.Request) {
	sphere, ok := httputil.ParsePathStringOrError(w, r, "sphere")
	if !ok {
		return
	}

	roles, err := h.service.GetSphereRoleVec(r.Context(), sphere)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if roles == nil {
		roles = []SphereRole{}
	}
	httputil.WriteSuccess(w, roles)
}

// GetUserSphereRole returns one user's active role in the sphere.
func (h *Handlers) GetUserSphereRole(w http.ResponseWriter, r *http.Request) {
	sphere, ok := httputil.ParsePathStringOrError(w, r, "sphere")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	role, err := h.service.GetUserSphereRole(r.Context(), userID, sphere)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// CheckPermissions reports whether the caller meets the required level in
// the sphere.
func (h *Handlers) CheckPermissions(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}
	sphere, ok := httputil.ParsePathStringOrError(w, r, "sphere")
	if !ok {
		return
	}

	required, err := ParsePermissionLevel(httputil.ParseQueryString(r, "required", "moderate"))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	resolved := caller.Resolve(sphere)
	httputil.WriteSuccess(w, map[string]interface{}{
		"resolved": resolved,
		"required": required,
		"allowed":  resolved >= required,
	})
}

// GetSelf returns the caller's own snapshot.
func (h *Handlers) GetSelf(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}
	httputil.WriteSuccess(w, caller)
}

// SetAdminRole updates a user's global admin role.
func (h *Handlers) SetAdminRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	var req struct {
		Role AdminRole `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.service.SetUserAdminRole(r.Context(), targetUserID, req.Role, caller)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

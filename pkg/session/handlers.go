package session

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sharesphere/sharesphere/pkg/authz"
	"github.com/sharesphere/sharesphere/pkg/httputil"
)

// Handlers provides HTTP handlers for session operations
type Handlers struct {
	service *Service
}

// NewHandlers creates new session handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers all session routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/me/credentials/refresh", h.RefreshCredentials).Methods("POST")
}

// RefreshCredentials refreshes the caller's own credentials.
func (h *Handlers) RefreshCredentials(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}

	creds, err := h.service.RefreshCredentials(r.Context(), caller.UserID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, creds)
}

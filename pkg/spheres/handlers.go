package spheres

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sharesphere/sharesphere/pkg/authz"
	"github.com/sharesphere/sharesphere/pkg/httputil"
)

// Handlers provides HTTP handlers for sphere operations
type Handlers struct {
	service *Service
}

// NewHandlers creates new sphere handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers all sphere routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/spheres", h.CreateSphere).Methods("POST")
	router.HandleFunc("/spheres", h.ListSpheres).Methods("GET")
	router.HandleFunc("/spheres/{sphere}", h.GetSphere).Methods("GET")
	router.HandleFunc("/spheres/{sphere}/rules", h.ListSphereRules).Methods("GET")
	router.HandleFunc("/rules", h.CreateRule).Methods("POST")
	router.HandleFunc("/rules/{rule_id}", h.GetRule).Methods("GET")
}

// CreateSphere creates a sphere with the caller as its first leader.
func (h *Handlers) CreateSphere(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}

	var req struct {
		SphereName  string `json:"sphere_name"`
		Description string `json:"description"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.SphereName, "sphere_name") {
		return
	}

	sphere, err := h.service.CreateSphere(r.Context(), req.SphereName, req.Description, caller)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, sphere)
}

// ListSpheres returns every sphere.
func (h *Handlers) ListSpheres(w http.ResponseWriter, r *http.Request) {
	spheres, err := h.service.ListSpheres(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if spheres == nil {
		spheres = []Sphere{}
	}
	httputil.WriteSuccess(w, spheres)
}

// GetSphere returns one sphere by name.
func (h *Handlers) GetSphere(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "sphere")
	if !ok {
		return
	}

	sphere, err := h.service.GetSphere(r.Context(), name)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, sphere)
}

// ListSphereRules returns the sphere's rules plus the global rules.
func (h *Handlers) ListSphereRules(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "sphere")
	if !ok {
		return
	}

	rules, err := h.service.GetSphereRuleVec(r.Context(), name)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if rules == nil {
		rules = []Rule{}
	}
	httputil.WriteSuccess(w, rules)
}

// CreateRule adds a moderation rule. Omitting sphere_name creates a
// global rule.
func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}

	var req struct {
		SphereName  *string `json:"sphere_name,omitempty"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}

	rule, err := h.service.CreateRule(r.Context(), req.SphereName, req.Title, req.Description, caller)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, rule)
}

// GetRule returns one rule by id.
func (h *Handlers) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := httputil.ParsePathInt64OrError(w, r, "rule_id")
	if !ok {
		return
	}

	rule, err := h.service.GetRule(r.Context(), ruleID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, rule)
}

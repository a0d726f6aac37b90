package moderation

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sharesphere/sharesphere/pkg/authz"
	"github.com/sharesphere/sharesphere/pkg/content"
	"github.com/sharesphere/sharesphere/pkg/httputil"
)

// Handlers provides HTTP handlers for moderation operations
type Handlers struct {
	service *Service
}

// NewHandlers creates new moderation handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers all moderation routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/posts/{post_id}/moderation", h.ModeratePost).Methods("PUT")
	router.HandleFunc("/comments/{comment_id}/moderation", h.ModerateComment).Methods("PUT")
	router.HandleFunc("/spheres/{sphere}/bans", h.BanUserFromSphere).Methods("POST")
	router.HandleFunc("/spheres/{sphere}/bans", h.ListSphereBans).Methods("GET")
	router.HandleFunc("/bans", h.BanUserGlobally).Methods("POST")
	router.HandleFunc("/bans/{ban_id}", h.RemoveUserBan).Methods("DELETE")
}

// ModerationRequest is the shared payload for moderation writes. A
// non-nil duration also bans the author for that many days; zero
// moderates only, and omitting it while setting ban makes the ban
// permanent.
type ModerationRequest struct {
	RuleID       int64  `json:"rule_id"`
	Message      string `json:"message"`
	Ban          bool   `json:"ban"`
	DurationDays *int   `json:"duration_days,omitempty"`
}

// ModeratePostResponse carries the updated post and the ban, if one was
// recorded.
type ModeratePostResponse struct {
	Post *content.Post `json:"post"`
	Ban  *UserBan      `json:"ban,omitempty"`
}

// ModerateCommentResponse carries the updated comment and the ban.
type ModerateCommentResponse struct {
	Comment *content.Comment `json:"comment"`
	Ban     *UserBan         `json:"ban,omitempty"`
}

// ModeratePost records a moderation action on a post, optionally banning
// the author.
func (h *Handlers) ModeratePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}
	postID, ok := httputil.ParsePathInt64OrError(w, r, "post_id")
	if !ok {
		return
	}

	var req ModerationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonZero(w, req.RuleID, "rule_id") {
		return
	}

	if !req.Ban {
		post, err := h.service.ModeratePost(r.Context(), postID, req.RuleID, req.Message, caller)
		if err != nil {
			httputil.WriteAppError(w, err)
			return
		}
		httputil.WriteSuccess(w, ModeratePostResponse{Post: post})
		return
	}

	post, ban, err := h.service.ModerateAndBanPost(r.Context(), postID, req.RuleID, req.Message, caller, req.DurationDays)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, ModeratePostResponse{Post: post, Ban: ban})
}

// ModerateComment records a moderation action on a comment, optionally
// banning the author.
func (h *Handlers) ModerateComment(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}
	commentID, ok := httputil.ParsePathInt64OrError(w, r, "comment_id")
	if !ok {
		return
	}

	var req ModerationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonZero(w, req.RuleID, "rule_id") {
		return
	}

	if !req.Ban {
		comment, err := h.service.ModerateComment(r.Context(), commentID, req.RuleID, req.Message, caller)
		if err != nil {
			httputil.WriteAppError(w, err)
			return
		}
		httputil.WriteSuccess(w, ModerateCommentResponse{Comment: comment})
		return
	}

	comment, ban, err := h.service.ModerateAndBanComment(r.Context(), commentID, req.RuleID, req.Message, caller, req.DurationDays)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, ModerateCommentResponse{Comment: comment, Ban: ban})
}

// BanRequest is the payload for a standalone ban.
type BanRequest struct {
	UserID       int64  `json:"user_id"`
	PostID       int64  `json:"post_id"`
	CommentID    *int64 `json:"comment_id,omitempty"`
	RuleID       int64  `json:"rule_id"`
	DurationDays *int   `json:"duration_days,omitempty"`
}

// BanUserFromSphere bans a user from the sphere.
func (h *Handlers) BanUserFromSphere(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}
	sphere, ok := httputil.ParsePathStringOrError(w, r, "sphere")
	if !ok {
		return
	}

	var req BanRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonZero(w, req.UserID, "user_id") {
		return
	}

	ban, err := h.service.BanUserFromSphere(r.Context(), req.UserID, sphere, req.PostID, req.CommentID, req.RuleID, caller, req.DurationDays)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if ban == nil {
		httputil.WriteNoContent(w)
		return
	}
	httputil.WriteCreated(w, ban)
}

// BanUserGlobally bans a user from the whole site.
func (h *Handlers) BanUserGlobally(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}

	var req BanRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonZero(w, req.UserID, "user_id") {
		return
	}

	ban, err := h.service.BanUserGlobally(r.Context(), req.UserID, req.PostID, req.CommentID, req.RuleID, caller, req.DurationDays)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if ban == nil {
		httputil.WriteNoContent(w)
		return
	}
	httputil.WriteCreated(w, ban)
}

// ListSphereBans lists the sphere's active bans, filtered by the
// optional username query parameter.
func (h *Handlers) ListSphereBans(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}
	sphere, ok := httputil.ParsePathStringOrError(w, r, "sphere")
	if !ok {
		return
	}
	if err := caller.CheckPermissions(sphere, authz.PermissionBan); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	bans, err := h.service.GetSphereBanVec(r.Context(), sphere, httputil.ParseQueryString(r, "username", ""))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if bans == nil {
		bans = []UserBan{}
	}
	httputil.WriteSuccess(w, bans)
}

// RemoveUserBan lifts a ban.
func (h *Handlers) RemoveUserBan(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}
	banID, ok := httputil.ParsePathInt64OrError(w, r, "ban_id")
	if !ok {
		return
	}

	ban, err := h.service.RemoveUserBan(r.Context(), banID, caller)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, ban)
}

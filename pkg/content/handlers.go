package content

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sharesphere/sharesphere/pkg/authz"
	"github.com/sharesphere/sharesphere/pkg/httputil"
)

// Handlers provides HTTP handlers for content operations
type Handlers struct {
	service *Service
}

// NewHandlers creates new content handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers all content routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/spheres/{sphere}/posts", h.CreatePost).Methods("POST")
	router.HandleFunc("/spheres/{sphere}/posts", h.ListSpherePosts).Methods("GET")
	router.HandleFunc("/posts/{post_id}", h.GetPost).Methods("GET")
	router.HandleFunc("/posts/{post_id}/comments", h.CreateComment).Methods("POST")
	router.HandleFunc("/posts/{post_id}/comments", h.ListPostComments).Methods("GET")
	router.HandleFunc("/comments/{comment_id}", h.GetComment).Methods("GET")
}

// CreatePost publishes a post in the sphere.
func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}
	sphere, ok := httputil.ParsePathStringOrError(w, r, "sphere")
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}

	post, err := h.service.CreatePost(r.Context(), caller, sphere, req.Title, req.Body)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, post)
}

// ListSpherePosts returns the sphere's posts.
func (h *Handlers) ListSpherePosts(w http.ResponseWriter, r *http.Request) {
	sphere, ok := httputil.ParsePathStringOrError(w, r, "sphere")
	if !ok {
		return
	}

	posts, err := h.service.GetSpherePostVec(r.Context(), sphere)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if posts == nil {
		posts = []Post{}
	}
	httputil.WriteSuccess(w, posts)
}

// GetPost returns one post by id.
func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := httputil.ParsePathInt64OrError(w, r, "post_id")
	if !ok {
		return
	}

	post, err := h.service.GetPost(r.Context(), postID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, post)
}

// CreateComment publishes a comment on the post.
func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing caller identity")
		return
	}
	postID, ok := httputil.ParsePathInt64OrError(w, r, "post_id")
	if !ok {
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Body, "body") {
		return
	}

	comment, err := h.service.CreateComment(r.Context(), caller, postID, req.Body)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, comment)
}

// ListPostComments returns the post's comments.
func (h *Handlers) ListPostComments(w http.ResponseWriter, r *http.Request) {
	postID, ok := httputil.ParsePathInt64OrError(w, r, "post_id")
	if !ok {
		return
	}

	comments, err := h.service.GetPostCommentVec(r.Context(), postID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if comments == nil {
		comments = []Comment{}
	}
	httputil.WriteSuccess(w, comments)
}

// GetComment returns one comment by id.
func (h *Handlers) GetComment(w http.ResponseWriter, r *http.Request) {
	commentID, ok := httputil.ParsePathInt64OrError(w, r, "comment_id")
	if !ok {
		return
	}

	comment, err := h.service.GetComment(r.Context(), commentID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, comment)
}

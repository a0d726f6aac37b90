package authz

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/sharesphere/sharesphere/pkg/apperr"
	"github.com/sharesphere/sharesphere/pkg/httputil"
	"github.com/sharesphere/sharesphere/pkg/observability"
)

type callerKey struct{}

// CallerFromContext returns the resolved caller snapshot placed on the
// context by CallerMiddleware.
func CallerFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(callerKey{}).(*User)
	return user, ok
}

// ContextWithCaller attaches a caller snapshot; used by tests and by the
// middleware.
func ContextWithCaller(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, callerKey{}, user)
}

// CallerMiddleware resolves the caller identity established by the
// session edge (X-User-ID) into a permission snapshot and attaches it to
// the request context. Requests without a resolvable identity are
// rejected.
func (s *Service) CallerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idHeader := r.Header.Get("X-User-ID")
		if idHeader == "" {
			httputil.WriteUnauthorized(w, "missing caller identity")
			return
		}
		userID, err := strconv.ParseInt(idHeader, 10, 64)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid caller identity")
			return
		}

		user, err := s.GetUser(r.Context(), userID)
		if errors.Is(err, apperr.ErrNotFound) {
			httputil.WriteUnauthorized(w, "unknown caller")
			return
		}
		if err != nil {
			httputil.WriteAppError(w, err)
			return
		}

		ctx := ContextWithCaller(r.Context(), user)
		ctx = observability.WithUserID(ctx, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

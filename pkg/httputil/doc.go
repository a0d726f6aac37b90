// Package httputil provides HTTP utilities for standardized request and
// response handling.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//
// Error responses translate the application error taxonomy:
//
//	httputil.WriteAppError(w, err) // status and code from pkg/apperr
//
// # Request Parsing
//
//	var req GrantRoleRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error response already written
//	}
//	sphere, ok := httputil.ParsePathStringOrError(w, r, "sphere")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//	)
package httputil

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Code identifies an error class with a stable machine-readable value.
type Code string

const (
	CodeInsufficientPrivileges Code = "insufficient_privileges"
	CodeLeaderMustTransfer     Code = "leader_must_transfer"
	CodeNotFound               Code = "not_found"
	CodeSphereBanUntil         Code = "sphere_ban_until"
	CodePermanentSphereBan     Code = "permanent_sphere_ban"
	CodeGlobalBanUntil         Code = "global_ban_until"
	CodePermanentGlobalBan     Code = "permanent_global_ban"
	CodeInternal               Code = "internal_error"
)

// Error is the application error type. Until is set only for temporary
// ban denials.
type Error struct {
	Code    Code
	Message string
	Until   *time.Time
}

func (e *Error) Error() string {
	if e.Until != nil {
		return fmt.Sprintf("%s until %s", e.Message, e.Until.UTC().Format(time.RFC3339))
	}
	return e.Message
}

// Is reports equality by code so sentinel comparisons via errors.Is work
// for errors carrying per-instance data such as a ban horizon.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus maps the error class to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInsufficientPrivileges, CodeLeaderMustTransfer,
		CodeSphereBanUntil, CodePermanentSphereBan,
		CodeGlobalBanUntil, CodePermanentGlobalBan:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Sentinel errors for the fixed error classes.
var (
	ErrInsufficientPrivileges = &Error{Code: CodeInsufficientPrivileges, Message: "insufficient privileges"}
	ErrLeaderMustTransfer     = &Error{Code: CodeLeaderMustTransfer, Message: "sphere leader must transfer leadership before changing their own role"}
	ErrNotFound               = &Error{Code: CodeNotFound, Message: "not found"}
	ErrPermanentSphereBan     = &Error{Code: CodePermanentSphereBan, Message: "permanently banned from this sphere"}
	ErrPermanentGlobalBan     = &Error{Code: CodePermanentGlobalBan, Message: "permanently banned"}
	ErrInternal               = &Error{Code: CodeInternal, Message: "internal error"}
)

// SphereBanUntil builds a temporary sphere-ban denial carrying the horizon.
func SphereBanUntil(until time.Time) *Error {
	return &Error{Code: CodeSphereBanUntil, Message: "banned from this sphere", Until: &until}
}

// GlobalBanUntil builds a temporary global-ban denial carrying the horizon.
func GlobalBanUntil(until time.Time) *Error {
	return &Error{Code: CodeGlobalBanUntil, Message: "banned", Until: &until}
}

// NotFoundf builds a not-found error with a formatted message.
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Internalf builds an internal error with a formatted message. The message
// is logged server-side; handlers respond with an opaque internal error.
func Internalf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// HTTPStatus returns the status for any error, defaulting to 500 for
// errors outside the taxonomy.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// CodeOf returns the code for any error, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sharesphere/sharesphere/pkg/apperr"
)

// ErrorResponse is the error payload every endpoint answers with.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON encodes data with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage answers with a bare error payload and no code.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteAppError translates an application error into its HTTP status and
// stable code. Errors outside the taxonomy respond with an opaque 500 so
// internal detail never leaks.
func WriteAppError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)

	message := err.Error()
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || code == apperr.CodeInternal {
		message = "internal error"
	}

	_ = WriteJSON(w, apperr.HTTPStatus(err), ErrorResponse{
		Error: message,
		Code:  string(code),
	})
}

// WriteBadRequest answers 400 with the given message.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized answers 401; used when the caller identity header is
// missing or does not resolve to a user.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteCreated answers 201 with the created record.
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess answers 200 with data.
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent answers 204; used when a moderation request carries no
// ban to issue.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

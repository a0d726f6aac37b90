package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharesphere/sharesphere/pkg/apperr"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteJSON(rec, http.StatusOK, map[string]string{"sphere": "gardening"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"sphere":"gardening"}`, rec.Body.String())
}

func TestWriteAppErrorPrivilegeDenial(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, apperr.ErrInsufficientPrivileges)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, string(apperr.CodeInsufficientPrivileges), resp.Code)
	assert.Equal(t, "insufficient privileges", resp.Error)
}

func TestWriteAppErrorBanCarriesHorizon(t *testing.T) {
	until := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rec := httptest.NewRecorder()
	WriteAppError(rec, apperr.SphereBanUntil(until))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, string(apperr.CodeSphereBanUntil), resp.Code)
	assert.Contains(t, resp.Error, "2026-09-01")
}

func TestWriteAppErrorNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, fmt.Errorf("lookup role: %w", apperr.ErrNotFound))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteAppErrorOpaqueInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "internal error", resp.Error)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

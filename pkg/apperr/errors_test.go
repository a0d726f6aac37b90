package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	until := time.Now().Add(24 * time.Hour)
	err := SphereBanUntil(until)

	other := SphereBanUntil(until.Add(time.Hour))
	assert.True(t, errors.Is(err, other))
	assert.False(t, errors.Is(err, ErrPermanentSphereBan))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestErrorIsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("failed to grant role: %w", ErrInsufficientPrivileges)
	assert.True(t, errors.Is(wrapped, ErrInsufficientPrivileges))
	assert.Equal(t, CodeInsufficientPrivileges, CodeOf(wrapped))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient privileges", ErrInsufficientPrivileges, http.StatusForbidden},
		{"leader must transfer", ErrLeaderMustTransfer, http.StatusForbidden},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"sphere ban until", SphereBanUntil(time.Now()), http.StatusForbidden},
		{"permanent global ban", ErrPermanentGlobalBan, http.StatusForbidden},
		{"internal", ErrInternal, http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("lookup: %w", ErrNotFound), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestTemporaryBanMessageIncludesHorizon(t *testing.T) {
	until := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := GlobalBanUntil(until)
	assert.Contains(t, err.Error(), "2026-03-01T12:00:00Z")
}

func TestNotFoundf(t *testing.T) {
	err := NotFoundf("rule %d not found", 42)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "rule 42 not found", err.Error())
}

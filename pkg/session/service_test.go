package session

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sharesphere/sharesphere/pkg/apperr"
	"github.com/sharesphere/sharesphere/pkg/authz"
	"github.com/sharesphere/sharesphere/pkg/observability"
)

type fakeExchanger struct {
	token *oauth2.Token
	err   error
	seen  []string
}

func (f *fakeExchanger) Exchange(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	f.seen = append(f.seen, refreshToken)
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func newTestService(t *testing.T, exchanger TokenExchanger) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	locks, err := authz.NewUserLockTable(16)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	authzService := authz.NewService(authz.NewStore(db), nil, locks, logger, nil)
	svc := NewService(NewStore(db), exchanger, authzService, logger)
	return svc, mock
}

func TestRefreshCredentialsRotatesToken(t *testing.T) {
	exchanger := &fakeExchanger{token: &oauth2.Token{
		AccessToken:  "new-access",
		TokenType:    "Bearer",
		RefreshToken: "rotated",
		Expiry:       time.Now().Add(time.Hour),
	}}
	svc, mock := newTestService(t, exchanger)

	mock.ExpectQuery("SELECT refresh_token FROM users").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"refresh_token"}).AddRow("stored"))
	mock.ExpectExec("UPDATE users SET refresh_token").
		WithArgs("rotated", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	creds, err := svc.RefreshCredentials(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "new-access", creds.AccessToken)
	assert.Equal(t, []string{"stored"}, exchanger.seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshCredentialsKeepsUnrotatedToken(t *testing.T) {
	exchanger := &fakeExchanger{token: &oauth2.Token{
		AccessToken:  "new-access",
		TokenType:    "Bearer",
		RefreshToken: "stored",
	}}
	svc, mock := newTestService(t, exchanger)

	mock.ExpectQuery("SELECT refresh_token FROM users").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"refresh_token"}).AddRow("stored"))
	// No UPDATE: the provider echoed the old token back.

	_, err := svc.RefreshCredentials(context.Background(), 5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshCredentialsNoStoredToken(t *testing.T) {
	exchanger := &fakeExchanger{}
	svc, mock := newTestService(t, exchanger)

	mock.ExpectQuery("SELECT refresh_token FROM users").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"refresh_token"}).AddRow(nil))

	_, err := svc.RefreshCredentials(context.Background(), 5)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, exchanger.seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshCredentialsExchangeFailure(t *testing.T) {
	exchanger := &fakeExchanger{err: errors.New("invalid_grant")}
	svc, mock := newTestService(t, exchanger)

	mock.ExpectQuery("SELECT refresh_token FROM users").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"refresh_token"}).AddRow("stored"))

	_, err := svc.RefreshCredentials(context.Background(), 5)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package moderation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharesphere/sharesphere/pkg/apperr"
	"github.com/sharesphere/sharesphere/pkg/observability"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestModeratePostMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE posts SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.ModeratePost(context.Background(), 404, ModerationUpdate{ModeratorID: 5, RuleID: 3})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSphereBanVecFilters(t *testing.T) {
	store, mock := newMockStore(t)

	sphereName := "gardening"
	until := time.Now().Add(24 * time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM user_bans").
		WithArgs("gardening", sqlmock.AnyArg(), "bo%").
		WillReturnRows(sqlmock.NewRows([]string{
			"ban_id", "user_id", "username", "sphere_id", "sphere_name", "post_id", "comment_id",
			"infringed_rule_id", "moderator_id", "until_timestamp", "create_timestamp", "delete_timestamp",
		}).
			AddRow(int64(51), int64(9), "bob", int64(2), sphereName, int64(30), nil, int64(3), int64(5), nil, time.Now(), nil).
			AddRow(int64(50), int64(10), "boris", int64(2), sphereName, int64(31), nil, int64(3), int64(5), until, time.Now(), nil))

	bans, err := store.GetSphereBanVec(context.Background(), "gardening", "bo")
	require.NoError(t, err)
	require.Len(t, bans, 2)
	assert.True(t, bans[0].Permanent())
	assert.False(t, bans[1].Permanent())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveBanAlreadyLifted(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE user_bans SET delete_timestamp").
		WillReturnRows(sqlmock.NewRows([]string{"ban_id"}))

	_, err := store.RemoveBan(context.Background(), 50)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepLapsedBansDeduplicatesUsers(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE user_bans SET delete_timestamp").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).
			AddRow(int64(9)).
			AddRow(int64(9)).
			AddRow(int64(10)))

	userIDs, err := store.SweepLapsedBans(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 10}, userIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type recordingInvalidator struct {
	invalidated []int64
}

func (r *recordingInvalidator) InvalidateUser(_ context.Context, userID int64) {
	r.invalidated = append(r.invalidated, userID)
}

func TestSweepInvalidatesAffectedUsers(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE user_bans SET delete_timestamp").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(9)).AddRow(int64(10)))

	invalidator := &recordingInvalidator{}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	sweeper, err := NewBanSweeper(store, invalidator, "@every 10m", logger)
	require.NoError(t, err)

	require.NoError(t, sweeper.Sweep(context.Background()))
	assert.Equal(t, []int64{9, 10}, invalidator.invalidated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

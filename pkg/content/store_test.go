package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharesphere/sharesphere/pkg/apperr"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestGetPostModerated(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM posts").
		WithArgs(int64(30)).
		WillReturnRows(sqlmock.NewRows([]string{
			"post_id", "sphere_id", "sphere_name", "author_id", "author_name", "title", "body",
			"moderator_id", "moderator_name", "moderator_message", "infringed_rule_id", "infringed_rule_title",
			"create_timestamp",
		}).AddRow(int64(30), int64(2), "gardening", int64(9), "bob", "Title", "Body",
			int64(5), "ada", "removed for spam", int64(3), "No spam", time.Now()))

	post, err := store.GetPost(context.Background(), 30)
	require.NoError(t, err)
	assert.True(t, post.Moderated())
	require.NotNil(t, post.ModeratorName)
	assert.Equal(t, "ada", *post.ModeratorName)
	require.NotNil(t, post.InfringedRuleTitle)
	assert.Equal(t, "No spam", *post.InfringedRuleTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPostNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM posts").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"post_id"}))

	_, err := store.GetPost(context.Background(), 404)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCommentNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM comments").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"comment_id"}))

	_, err := store.GetComment(context.Background(), 404)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSpherePostVec(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM posts").
		WithArgs("gardening").
		WillReturnRows(sqlmock.NewRows([]string{
			"post_id", "sphere_id", "sphere_name", "author_id", "author_name", "title", "body",
			"moderator_id", "moderator_name", "moderator_message", "infringed_rule_id", "infringed_rule_title",
			"create_timestamp",
		}).
			AddRow(int64(31), int64(2), "gardening", int64(9), "bob", "Second", "", nil, nil, nil, nil, nil, time.Now()).
			AddRow(int64(30), int64(2), "gardening", int64(9), "bob", "First", "", nil, nil, nil, nil, nil, time.Now().Add(-time.Hour)))

	posts, err := store.GetSpherePostVec(context.Background(), "gardening")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "Second", posts[0].Title)
	assert.False(t, posts[0].Moderated())
	assert.NoError(t, mock.ExpectationsWereMet())
}

package authz

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

func roleRows(roles ...SphereRole) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"role_id", "user_id", "username", "sphere_id", "sphere_name",
		"permission_level", "grantor_id", "create_timestamp", "delete_timestamp",
	})
	for _, r := range roles {
		rows.AddRow(r.RoleID, r.UserID, r.Username, r.SphereID, r.SphereName,
			r.PermissionLevel.String(), r.GrantorID, r.CreateTimestamp, r.DeleteTimestamp)
	}
	return rows
}

func TestGetUserSphereRole(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM user_sphere_roles").
		WithArgs(int64(5), "gardening").
		WillReturnRows(roleRows(SphereRole{
			RoleID: 1, UserID: 5, Username: "ada", SphereID: 2, SphereName: "gardening",
			PermissionLevel: PermissionManage, GrantorID: 3, CreateTimestamp: time.Now(),
		}))

	role, err := store.GetUserSphereRole(context.Background(), 5, "gardening")
	require.NoError(t, err)
	assert.Equal(t, PermissionManage, role.PermissionLevel)
	assert.True(t, role.Active())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserSphereRoleNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM user_sphere_roles").
		WithArgs(int64(5), "gardening").
		WillReturnRows(roleRows())

	_, err := store.GetUserSphereRole(context.Background(), 5, "gardening")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSphereRoleVec(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM user_sphere_roles").
		WithArgs("gardening").
		WillReturnRows(roleRows(
			SphereRole{RoleID: 1, UserID: 5, Username: "ada", SphereID: 2, SphereName: "gardening", PermissionLevel: PermissionLead, GrantorID: 5, CreateTimestamp: time.Now()},
			SphereRole{RoleID: 2, UserID: 6, Username: "bob", SphereID: 2, SphereName: "gardening", PermissionLevel: PermissionModerate, GrantorID: 5, CreateTimestamp: time.Now()},
		))

	roles, err := store.GetSphereRoleVec(context.Background(), "gardening")
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, PermissionLead, roles[0].PermissionLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantRoleReplacesActiveRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE user_sphere_roles SET delete_timestamp").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO user_sphere_roles").
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow(int64(10)))
	mock.ExpectCommit()

	role, err := store.GrantRole(context.Background(), GrantParams{
		TargetUserID:   6,
		TargetUsername: "bob",
		SphereID:       2,
		SphereName:     "gardening",
		Level:          PermissionBan,
		GrantorID:      5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), role.RoleID)
	assert.Equal(t, PermissionBan, role.PermissionLevel)
	assert.Equal(t, int64(5), role.GrantorID)
	assert.Nil(t, role.DeleteTimestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantRoleRollsBackOnInsertFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE user_sphere_roles SET delete_timestamp").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO user_sphere_roles").
		WillReturnError(errors.New("pq: connection reset"))
	mock.ExpectRollback()

	_, err := store.GrantRole(context.Background(), GrantParams{
		TargetUserID: 6, TargetUsername: "bob", SphereID: 2,
		SphereName: "gardening", Level: PermissionBan, GrantorID: 5,
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferLeadership(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT role_id, user_id FROM user_sphere_roles").
		WithArgs("gardening").
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "user_id"}).AddRow(int64(1), int64(5)))
	mock.ExpectExec("UPDATE user_sphere_roles SET delete_timestamp (.+) WHERE role_id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO user_sphere_roles").
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow(int64(11)))
	mock.ExpectExec("UPDATE user_sphere_roles SET delete_timestamp").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO user_sphere_roles").
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow(int64(12)))
	mock.ExpectCommit()

	role, prevLeaderID, err := store.TransferLeadership(context.Background(), TransferParams{
		TargetUserID:   6,
		TargetUsername: "bob",
		SphereID:       2,
		SphereName:     "gardening",
		LeaderID:       5,
		LeaderUsername: "ada",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), prevLeaderID)
	assert.Equal(t, PermissionLead, role.PermissionLevel)
	assert.Equal(t, int64(6), role.UserID)
	assert.Equal(t, int64(5), role.GrantorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferLeadershipNoActiveLeader(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT role_id, user_id FROM user_sphere_roles").
		WithArgs("gardening").
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "user_id"}))
	mock.ExpectRollback()

	_, _, err := store.TransferLeadership(context.Background(), TransferParams{
		SphereName: "gardening", LeaderID: 5,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferLeadershipStaleLeaderSnapshot(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT role_id, user_id FROM user_sphere_roles").
		WithArgs("gardening").
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "user_id"}).AddRow(int64(1), int64(99)))
	mock.ExpectRollback()

	_, _, err := store.TransferLeadership(context.Background(), TransferParams{
		SphereName: "gardening", LeaderID: 5,
	})
	assert.True(t, errors.Is(err, apperr.ErrInsufficientPrivileges))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitSphereLeader(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM user_sphere_roles").
		WithArgs("gardening").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO user_sphere_roles").
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	role, err := store.InitSphereLeader(context.Background(), 5, "ada", 2, "gardening")
	require.NoError(t, err)
	assert.Equal(t, PermissionLead, role.PermissionLevel)
	assert.Equal(t, int64(5), role.GrantorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitSphereLeaderNonEmptySphere(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM user_sphere_roles").
		WithArgs("gardening").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	_, err := store.InitSphereLeader(context.Background(), 5, "ada", 2, "gardening")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSetUserAdminRole(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE users SET admin_role").
		WithArgs("moderator", int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetUserAdminRole(context.Background(), 6, AdminRoleModerator))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetUserAdminRoleUnknownUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE users SET admin_role").
		WithArgs("admin", int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetUserAdminRole(context.Background(), 999, AdminRoleAdmin)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadUserBuildsProjection(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	future := now.Add(48 * time.Hour)
	past := now.Add(-time.Hour)

	mock.ExpectQuery("SELECT user_id, oidc_id, username, email, admin_role, create_timestamp").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "oidc_id", "username", "email", "admin_role", "create_timestamp"}).
			AddRow(int64(5), "oidc|5", "ada", "ada@example.com", "moderator", now))

	mock.ExpectQuery("SELECT sphere_name, permission_level FROM user_sphere_roles").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"sphere_name", "permission_level"}).
			AddRow("gardening", "lead").
			AddRow("cooking", "moderate"))

	mock.ExpectQuery("SELECT sphere_name, until_timestamp FROM user_bans").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"sphere_name", "until_timestamp"}).
			AddRow("chess", future).
			AddRow("chess", past). // lapsed, dropped
			AddRow(nil, nil))      // permanent global

	user, err := store.LoadUser(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, AdminRoleModerator, user.AdminRole)
	assert.Equal(t, PermissionLead, user.PermissionBySphere["gardening"])
	assert.Equal(t, PermissionModerate, user.PermissionBySphere["cooking"])

	chess := user.BanStatusBySphere["chess"]
	require.NotNil(t, chess.Until)
	assert.Equal(t, future, *chess.Until)
	assert.True(t, user.BanStatus.IsPermanent())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT user_id, oidc_id, username, email, admin_role, create_timestamp").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "oidc_id", "username", "email", "admin_role", "create_timestamp"}))

	_, err := store.LoadUser(context.Background(), 404)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

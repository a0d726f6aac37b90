package spheres

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
	"github.com/sharesphere/sharesphere/pkg/authz"
	"github.com/sharesphere/sharesphere/pkg/observability"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	locks, err := authz.NewUserLockTable(16)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	authzService := authz.NewService(authz.NewStore(db), nil, locks, logger, nil)
	svc := NewService(NewStore(db), authzService, logger)
	return svc, mock
}

func testUser(id int64, admin authz.AdminRole, perms map[string]authz.PermissionLevel) *authz.User {
	if perms == nil {
		perms = make(map[string]authz.PermissionLevel)
	}
	return &authz.User{
		UserID:             id,
		Username:           "ada",
		AdminRole:          admin,
		PermissionBySphere: perms,
		BanStatusBySphere:  make(map[string]authz.BanStatus),
	}
}

func TestCreateSphereSeedsLeader(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("INSERT INTO spheres").
		WillReturnRows(sqlmock.NewRows([]string{"sphere_id"}).AddRow(int64(2)))

	// Leader seeding: the sphere has no role rows yet, so the creator
	// gets the lead role.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(.+) FROM user_sphere_roles").
		WithArgs("gardening").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO user_sphere_roles").
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	sphere, err := svc.CreateSphere(context.Background(), "gardening", "plants", testUser(5, authz.AdminRoleNone, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(2), sphere.SphereID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSphereEmptyName(t *testing.T) {
	svc, mock := newTestService(t)

	_, err := svc.CreateSphere(context.Background(), "", "plants", testUser(5, authz.AdminRoleNone, nil))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRuleRequiresManage(t *testing.T) {
	svc, mock := newTestService(t)

	sphereName := "gardening"
	moderator := testUser(5, authz.AdminRoleNone, map[string]authz.PermissionLevel{"gardening": authz.PermissionModerate})

	_, err := svc.CreateRule(context.Background(), &sphereName, "No spam", "", moderator)
	assert.True(t, errors.Is(err, apperr.ErrInsufficientPrivileges))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRuleScoped(t *testing.T) {
	svc, mock := newTestService(t)

	sphereName := "gardening"
	manager := testUser(5, authz.AdminRoleNone, map[string]authz.PermissionLevel{"gardening": authz.PermissionManage})

	mock.ExpectQuery("SELECT sphere_id, sphere_name, description, creator_id, create_timestamp").
		WithArgs("gardening").
		WillReturnRows(sqlmock.NewRows([]string{"sphere_id", "sphere_name", "description", "creator_id", "create_timestamp"}).
			AddRow(int64(2), "gardening", "plants", int64(9), time.Now()))

	mock.ExpectQuery("INSERT INTO rules").
		WillReturnRows(sqlmock.NewRows([]string{"rule_id"}).AddRow(int64(7)))

	rule, err := svc.CreateRule(context.Background(), &sphereName, "No spam", "", manager)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rule.RuleID)
	require.NotNil(t, rule.SphereID)
	assert.Equal(t, int64(2), *rule.SphereID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateGlobalRuleRequiresAdmin(t *testing.T) {
	svc, mock := newTestService(t)

	moderator := testUser(5, authz.AdminRoleModerator, nil)
	_, err := svc.CreateRule(context.Background(), nil, "No harassment", "", moderator)
	assert.True(t, errors.Is(err, apperr.ErrInsufficientPrivileges))

	mock.ExpectQuery("INSERT INTO rules").
		WillReturnRows(sqlmock.NewRows([]string{"rule_id"}).AddRow(int64(1)))

	rule, err := svc.CreateRule(context.Background(), nil, "No harassment", "", testUser(7, authz.AdminRoleAdmin, nil))
	require.NoError(t, err)
	assert.True(t, rule.Global())
	assert.NoError(t, mock.ExpectationsWereMet())
}

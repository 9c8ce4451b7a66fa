package user

import (
	"context"
	"testing"

	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/infrastructure/database"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupUsers(t *testing.T) (*Service, *miniredis.Miniredis, domain.Actor) {
	db, err := database.Open("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	admin := domain.User{Email: "admin@example.com", PasswordHash: "x", Fullname: "Admin", Role: constants.RoleApprover, IsActive: true}
	require.NoError(t, db.Create(&admin).Error)
	return &Service{DB: db, Rdb: rdb}, mr, domain.Actor{ID: admin.UserID, Role: admin.Role}
}

func TestCreateUser(t *testing.T) {
	svc, _, admin := setupUsers(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, admin, CreateUserInput{Email: " Data@Example.com ", Password: "Passw0rd!", Fullname: "dana   o'neil", Role: constants.RoleDataEntry})
	require.NoError(t, err)
	assert.Equal(t, "data@example.com", u.Email)
	assert.Equal(t, "Dana O'neil", u.Fullname)
	assert.True(t, u.IsActive)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("Passw0rd!")))

	_, err = svc.CreateUser(ctx, admin, CreateUserInput{Email: "data@example.com", Password: "Passw0rd!", Fullname: "Other", Role: constants.RoleDataEntry})
	assert.Equal(t, domain.KindValidation, domain.Kind(err))

	_, err = svc.CreateUser(ctx, admin, CreateUserInput{Email: "x@example.com", Password: "short", Fullname: "Other", Role: constants.RoleDataEntry})
	assert.Equal(t, domain.KindValidation, domain.Kind(err))

	_, err = svc.CreateUser(ctx, admin, CreateUserInput{Email: "x@example.com", Password: "Passw0rd!", Fullname: "Other", Role: "L9"})
	assert.Equal(t, domain.KindValidation, domain.Kind(err))

	_, err = svc.CreateUser(ctx, domain.Actor{ID: uuid.New(), Role: constants.RoleReviewer}, CreateUserInput{Email: "y@example.com", Password: "Passw0rd!", Fullname: "Y", Role: constants.RoleDataEntry})
	assert.Equal(t, domain.KindPermission, domain.Kind(err))

	l1s, err := svc.ListUsers(ctx, constants.RoleDataEntry, true)
	require.NoError(t, err)
	assert.Len(t, l1s, 1)
}

func TestUpdateUserRole_Governance(t *testing.T) {
	svc, mr, admin := setupUsers(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, admin, CreateUserInput{Email: "calc@example.com", Password: "Passw0rd!", Fullname: "Cal", Role: constants.RoleCalculation})
	require.NoError(t, err)
	TrackSession(ctx, svc.Rdb, u.UserID.String(), "sid-1")
	require.NoError(t, mr.Set(SessionRedisPrefix+"sid-1", "{}"))

	updated, err := svc.UpdateUserRole(ctx, admin, u.UserID, constants.RoleReviewer)
	require.NoError(t, err)
	assert.Equal(t, constants.RoleReviewer, updated.Role)
	assert.False(t, mr.Exists(SessionRedisPrefix+"sid-1"))
	assert.False(t, mr.Exists(SessionIndexPrefix+u.UserID.String()))

	_, err = svc.UpdateUserRole(ctx, admin, admin.ID, constants.RoleDataEntry)
	assert.Equal(t, domain.KindValidation, domain.Kind(err))

	_, err = svc.UpdateUserRole(ctx, admin, uuid.New(), constants.RoleDataEntry)
	assert.Equal(t, domain.KindNotFound, domain.Kind(err))
}

func TestLastApproverIsProtected(t *testing.T) {
	svc, _, admin := setupUsers(t)
	ctx := context.Background()

	second, err := svc.CreateUser(ctx, admin, CreateUserInput{Email: "second@example.com", Password: "Passw0rd!", Fullname: "Second", Role: constants.RoleApprover})
	require.NoError(t, err)
	secondActor := domain.Actor{ID: second.UserID, Role: second.Role}

	require.NoError(t, svc.DeactivateUser(ctx, secondActor, admin.ID))

	err = svc.DeactivateUser(ctx, admin, second.UserID)
	assert.Equal(t, domain.KindValidation, domain.Kind(err))
	_, err = svc.UpdateUserRole(ctx, admin, second.UserID, constants.RoleReviewer)
	assert.Equal(t, domain.KindValidation, domain.Kind(err))

	err = svc.DeactivateUser(ctx, secondActor, second.UserID)
	assert.Equal(t, domain.KindValidation, domain.Kind(err))

	active, err := svc.ListUsers(ctx, constants.RoleApprover, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.UserID, active[0].UserID)
}

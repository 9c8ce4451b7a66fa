package user

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	usersvc "ghg-workflow-backend/internal/application/user"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/infrastructure/database"
	"ghg-workflow-backend/internal/middleware"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupUserTest(t *testing.T) (*fiber.App, *usersvc.Service, domain.User) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	db, err := database.Open("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	admin := domain.User{Email: "admin@example.com", PasswordHash: "x", Fullname: "Admin", Role: constants.RoleApprover, IsActive: true}
	require.NoError(t, db.Create(&admin).Error)

	svc := &usersvc.Service{DB: db, Rdb: rdb}
	h := &Handlers{Service: svc}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if role := c.Get("X-Role"); role != "" {
			c.Locals("actor", domain.Actor{ID: admin.UserID, Role: role})
		}
		return c.Next()
	})
	app.Use(middleware.RequireAuth())
	app.Post("/users", h.CreateUser)
	app.Get("/users", h.ListUsers)
	app.Get("/users/:id", h.ViewUser)
	app.Patch("/users/:id/role", h.UpdateRole)
	app.Delete("/users/:id", h.Deactivate)
	return app, svc, admin
}

func send(t *testing.T, app *fiber.App, role, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestCreateUser_RequiresAuth(t *testing.T) {
	app, _, _ := setupUserTest(t)
	status, _ := send(t, app, "", "POST", "/users", map[string]string{
		"email": "u1@example.com", "password": "Pass1!word", "fullname": "User One", "role": "L1",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestCreateUser_ApproverOnly(t *testing.T) {
	app, _, _ := setupUserTest(t)
	body := map[string]string{"email": "u1@example.com", "password": "Pass1!word", "fullname": "user one", "role": "L1"}

	status, _ := send(t, app, constants.RoleReviewer, "POST", "/users", body)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, out := send(t, app, constants.RoleApprover, "POST", "/users", body)
	require.Equal(t, fiber.StatusCreated, status, out)
	u := out["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "User One", u["fullname"])
	assert.NotContains(t, u, "password_hash")

	status, _ = send(t, app, constants.RoleApprover, "POST", "/users", map[string]string{"email": "x@example.com"})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestUpdateRoleAndDeactivate(t *testing.T) {
	app, svc, admin := setupUserTest(t)
	target, err := svc.CreateUser(context.Background(), domain.Actor{ID: admin.UserID, Role: constants.RoleApprover}, usersvc.CreateUserInput{
		Email: "calc@example.com", Password: "Pass1!word", Fullname: "Cal", Role: constants.RoleCalculation,
	})
	require.NoError(t, err)
	path := "/users/" + target.UserID.String()

	status, out := send(t, app, constants.RoleApprover, "PATCH", path+"/role", map[string]string{"role": "L3"})
	require.Equal(t, fiber.StatusOK, status, out)
	assert.Equal(t, "L3", out["data"].(map[string]interface{})["user"].(map[string]interface{})["role"])

	status, _ = send(t, app, constants.RoleApprover, "PATCH", path+"/role", map[string]string{"role": "L7"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = send(t, app, constants.RoleApprover, "PATCH", "/users/"+admin.UserID.String()+"/role", map[string]string{"role": "L1"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = send(t, app, constants.RoleApprover, "DELETE", path, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, out = send(t, app, constants.RoleApprover, "GET", "/users?active=true", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, out["metadata"].(map[string]interface{})["count"])

	status, _ = send(t, app, constants.RoleApprover, "GET", "/users/not-a-uuid", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

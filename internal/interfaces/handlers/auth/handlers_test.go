package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	authsvc "ghg-workflow-backend/internal/application/auth"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/middleware"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserFinder struct {
	user *domain.User
	err  error
}

func (f *fakeUserFinder) FindByEmailAndPassword(ctx context.Context, email, password string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.user != nil && f.user.Email == email && password == "Passw0rd!" {
		return f.user, nil
	}
	if f.user != nil && f.user.Email == email {
		return nil, authsvc.ErrIncorrectPassword
	}
	return nil, authsvc.ErrInvalidEmail
}

func setupAuthHandlers(t *testing.T, finder authsvc.UserFinder) (*Handlers, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	h := &Handlers{
		UserFinder: finder,
		Tokens:     &authsvc.TokenIssuer{Secret: []byte("test-secret"), TTL: time.Hour},
		Rdb:        rdb,
	}
	return h, rdb
}

func postJSON(app *fiber.App, path string, body interface{}) (*fiber.Map, int, []string, error) {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		return nil, 0, nil, err
	}
	raw, _ := io.ReadAll(resp.Body)
	var out fiber.Map
	_ = json.Unmarshal(raw, &out)
	return &out, resp.StatusCode, resp.Header.Values("Set-Cookie"), nil
}

func l1User() *domain.User {
	return &domain.User{UserID: uuid.New(), Email: "l1@example.com", Fullname: "Lane One", Role: constants.RoleDataEntry}
}

func TestLogin_EmptyBody(t *testing.T) {
	h, _ := setupAuthHandlers(t, &fakeUserFinder{user: &domain.User{}})
	app := fiber.New()
	app.Post("/login", h.Login)

	req := httptest.NewRequest("POST", "/login", nil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLogin_Failures(t *testing.T) {
	h, _ := setupAuthHandlers(t, &fakeUserFinder{user: l1User()})
	app := fiber.New()
	app.Post("/login", h.Login)

	_, code, _, err := postJSON(app, "/login", map[string]string{"email": "l1@example.com"})
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, code)

	_, code, _, err = postJSON(app, "/login", map[string]string{"email": "nobody@example.com", "password": "x"})
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	_, code, _, err = postJSON(app, "/login", map[string]string{"email": "l1@example.com", "password": "wrong"})
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	inactive, _ := setupAuthHandlers(t, &fakeUserFinder{err: authsvc.ErrInactiveUser})
	app2 := fiber.New()
	app2.Post("/login", inactive.Login)
	_, code, _, err = postJSON(app2, "/login", map[string]string{"email": "l1@example.com", "password": "Passw0rd!"})
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestLogin_Success(t *testing.T) {
	u := l1User()
	h, rdb := setupAuthHandlers(t, &fakeUserFinder{user: u})
	app := fiber.New()
	app.Use(middleware.SessionWithClient(rdb))
	app.Post("/login", h.Login)

	out, code, cookies, err := postJSON(app, "/login", map[string]string{"email": "l1@example.com", "password": "Passw0rd!"})
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "Login successful", (*out)["message"])
	user := (*out)["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "L1", user["role"])

	require.NotEmpty(t, cookies)
	assert.Contains(t, cookies[0], "ghg.sid=s")

	members, err := rdb.SMembers(context.Background(), "user_sessions:"+u.UserID.String()).Result()
	require.NoError(t, err)
	require.Len(t, members, 1)
	stored, err := rdb.Get(context.Background(), middleware.SessionRedisPrefix+members[0]).Result()
	require.NoError(t, err)
	assert.Contains(t, stored, u.UserID.String())
}

func TestLogin_NilUserFinder(t *testing.T) {
	h, _ := setupAuthHandlers(t, nil)
	app := fiber.New()
	app.Post("/login", h.Login)

	_, code, _, err := postJSON(app, "/login", map[string]string{"email": "a@b.com", "password": "pass"})
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, code)
}

func TestToken_IssuesVerifiableBearer(t *testing.T) {
	u := l1User()
	h, _ := setupAuthHandlers(t, &fakeUserFinder{user: u})
	app := fiber.New()
	app.Post("/token", h.Token)

	out, code, _, err := postJSON(app, "/token", map[string]string{"email": "l1@example.com", "password": "Passw0rd!"})
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, code)
	data := (*out)["data"].(map[string]interface{})
	assert.Equal(t, "Bearer", data["token_type"])

	actor, err := h.Tokens.Verify(data["access_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{ID: u.UserID, Role: constants.RoleDataEntry}, actor)

	h.Tokens = nil
	_, code, _, err = postJSON(app, "/token", map[string]string{"email": "l1@example.com", "password": "Passw0rd!"})
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotImplemented, code)
}

func TestMe(t *testing.T) {
	h, _ := setupAuthHandlers(t, &fakeUserFinder{})
	app := fiber.New()
	app.Get("/anon", h.Me)
	app.Get("/me", func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{
			"user_id":  "550e8400-e29b-41d4-a716-446655440000",
			"fullname": "Test",
			"email":    "test@example.com",
			"role":     constants.RoleReviewer,
		})
		return h.Me(c)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/anon", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	user := out["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "test@example.com", user["email"])
	assert.Equal(t, "L3", user["role"])
}

func TestLogout_NoSession(t *testing.T) {
	h, _ := setupAuthHandlers(t, &fakeUserFinder{})
	app := fiber.New()
	app.Delete("/logout", h.Logout)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Values("Set-Cookie"))
}

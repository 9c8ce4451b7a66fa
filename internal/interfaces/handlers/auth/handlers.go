package auth

import (
	"errors"

	authsvc "ghg-workflow-backend/internal/application/auth"
	usersvc "ghg-workflow-backend/internal/application/user"
	"ghg-workflow-backend/internal/middleware"
	"ghg-workflow-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Handlers holds dependencies for auth endpoints. Tokens is optional; without it
// POST /token is unavailable.
type Handlers struct {
	UserFinder authsvc.UserFinder
	Tokens     *authsvc.TokenIssuer
	Rdb        *redis.Client
	Config     middleware.SessionConfig
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func loginError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, authsvc.ErrEmailPasswordRequired):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, authsvc.ErrInvalidEmail), errors.Is(err, authsvc.ErrIncorrectPassword), errors.Is(err, authsvc.ErrInactiveUser):
		return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
	default:
		log.Error().Err(err).Msg("login failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
}

func (h *Handlers) authenticate(c *fiber.Ctx) (*LoginRequest, error) {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
		return nil, authsvc.ErrEmailPasswordRequired
	}
	return &req, nil
}

// Login POST /api/v1/auth/login. Authenticate, start a session, set the cookie.
func (h *Handlers) Login(c *fiber.Ctx) error {
	if h.UserFinder == nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	req, err := h.authenticate(c)
	if err != nil {
		return loginError(c, err)
	}
	user, err := h.UserFinder.FindByEmailAndPassword(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return loginError(c, err)
	}

	sessionID := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, middleware.SessionUser{
		UserID:   user.UserID.String(),
		Fullname: user.Fullname,
		Email:    user.Email,
		Role:     user.Role,
	})
	usersvc.TrackSession(c.UserContext(), h.Rdb, user.UserID.String(), sessionID)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = "s:" + sessionID
	c.Cookie(&cookie)

	log.Info().Str("user_id", user.UserID.String()).Str("role", user.Role).Msg("login")
	return response.Success(c, "Login successful", fiber.Map{
		"user": authsvc.SessionUserShape{
			UserID:   user.UserID.String(),
			Fullname: user.Fullname,
			Email:    user.Email,
			Role:     user.Role,
		},
	}, nil)
}

// Token POST /api/v1/auth/token. Exchange credentials for a bearer token.
func (h *Handlers) Token(c *fiber.Ctx) error {
	if h.UserFinder == nil || h.Tokens == nil {
		return response.Error(c, "Token login is not configured", fiber.StatusNotImplemented, nil)
	}
	req, err := h.authenticate(c)
	if err != nil {
		return loginError(c, err)
	}
	user, err := h.UserFinder.FindByEmailAndPassword(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return loginError(c, err)
	}
	token, expires, err := h.Tokens.Issue(user)
	if err != nil {
		log.Error().Err(err).Msg("token issue failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Token issued", fiber.Map{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_at":   expires,
		"role":         user.Role,
	}, nil)
}

// Me GET /api/v1/auth/me. Return the current session user.
func (h *Handlers) Me(c *fiber.Ctx) error {
	if actor, ok := middleware.ActorFromCtx(c); ok && middleware.GetUser(c) == nil {
		return response.Success(c, "Authenticated", fiber.Map{"user": fiber.Map{"user_id": actor.ID, "role": actor.Role}}, nil)
	}
	user, err := authsvc.VerifyUser(middleware.GetUser(c))
	if err != nil {
		log.Debug().Str("path", c.Path()).Bool("session_id_present", middleware.GetSessionID(c) != "").Msg("auth/me: not authenticated")
		return response.Error(c, "Not authenticated", fiber.StatusUnauthorized, nil)
	}
	return response.Success(c, "Authenticated", fiber.Map{"user": user}, nil)
}

// Logout DELETE /api/v1/auth/logout. Drop the session and clear the cookie.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	ctx := c.UserContext()

	if sessionID != "" {
		if u, err := authsvc.VerifyUser(middleware.GetUser(c)); err == nil {
			_ = h.Rdb.SRem(ctx, usersvc.SessionIndexPrefix+u.UserID, sessionID).Err()
		}
		_ = h.Rdb.Del(ctx, middleware.SessionRedisPrefix+sessionID).Err()
	}
	middleware.DestroySession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.MaxAge = -1
	c.Cookie(&cookie)
	return response.Success(c, "Logged out successfully", nil, nil)
}

package user

import (
	usersvc "ghg-workflow-backend/internal/application/user"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/interfaces/handlers/request"
	"ghg-workflow-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *usersvc.Service
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Fullname string `json:"fullname"`
	Role     string `json:"role"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// CreateUser POST /api/v1/users. Approvers only.
func (h *Handlers) CreateUser(c *fiber.Ctx) error {
	actor, err := request.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var req CreateUserRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	if req.Email == "" || req.Password == "" || req.Fullname == "" || req.Role == "" {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	u, err := h.Service.CreateUser(c.UserContext(), actor, usersvc.CreateUserInput(req))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "User created successfully", fiber.Map{"user": safeUser(u)}, nil)
}

// ListUsers GET /api/v1/users?role=L2&active=true
func (h *Handlers) ListUsers(c *fiber.Ctx) error {
	users, err := h.Service.ListUsers(c.UserContext(), c.Query("role"), c.QueryBool("active", false))
	if err != nil {
		return response.FromError(c, err)
	}
	out := make([]fiber.Map, 0, len(users))
	for i := range users {
		out = append(out, safeUser(&users[i]))
	}
	return response.Success(c, "Users retrieved", out, fiber.Map{"count": len(out)})
}

// ViewUser GET /api/v1/users/:id
func (h *Handlers) ViewUser(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	u, err := h.Service.ViewUser(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "User found", fiber.Map{"user": safeUser(u)}, nil)
}

// UpdateRole PATCH /api/v1/users/:id/role. Moves a user between lanes and ends their sessions.
func (h *Handlers) UpdateRole(c *fiber.Ctx) error {
	actor, err := request.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req UpdateRoleRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	u, err := h.Service.UpdateUserRole(c.UserContext(), actor, id, req.Role)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "User role updated successfully", fiber.Map{"user": safeUser(u)}, nil)
}

// Deactivate DELETE /api/v1/users/:id
func (h *Handlers) Deactivate(c *fiber.Ctx) error {
	actor, err := request.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.DeactivateUser(c.UserContext(), actor, id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "User deactivated", nil, nil)
}

func safeUser(u *domain.User) fiber.Map {
	return fiber.Map{
		"user_id":   u.UserID.String(),
		"fullname":  u.Fullname,
		"email":     u.Email,
		"role":      u.Role,
		"is_active": u.IsActive,
		"createdAt": u.CreatedAt,
		"updatedAt": u.UpdatedAt,
	}
}

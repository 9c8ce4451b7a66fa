package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/pkg/constants"
	"ghg-workflow-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// BcryptCost is shared with the seeder so seeded and created users hash alike.
const BcryptCost = 10

// Service manages workflow users. Rdb is optional; without it role changes
// do not end the target's open sessions.
type Service struct {
	DB  *gorm.DB
	Rdb *redis.Client
}

type CreateUserInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Fullname string `json:"fullname"`
	Role     string `json:"role"`
}

func permit(actor domain.Actor) error {
	if constants.AllowedRole(constants.ManageUsers, actor.Role) {
		return nil
	}
	return &domain.PermissionError{Permission: constants.ManageUsers, Role: actor.Role}
}

// HashPassword validates the password rules and returns its bcrypt hash.
func HashPassword(password string) (string, error) {
	if !validation.IsValidPassword(password) {
		return "", &domain.ValidationError{Field: "password", Rule: fmt.Sprintf("must be %d+ characters with a letter, a number and a symbol", validation.MinPasswordLength)}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CreateUser registers a user in one workflow lane. Only approvers manage users.
func (s *Service) CreateUser(ctx context.Context, actor domain.Actor, in CreateUserInput) (*domain.User, error) {
	if err := permit(actor); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if !validation.IsValidEmail(email) {
		return nil, &domain.ValidationError{Field: "email", Rule: "invalid email format"}
	}
	fullname := strings.TrimSpace(in.Fullname)
	if !validation.IsValidFullname(fullname) {
		return nil, &domain.ValidationError{Field: "fullname", Rule: "only letters, spaces, hyphens and apostrophes allowed"}
	}
	if !constants.IsValidRole(in.Role) {
		return nil, &domain.ValidationError{Field: "role", Rule: "must be one of L1, L2, L3, L4"}
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var existing int64
	if err := s.DB.WithContext(ctx).Model(&domain.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "check email", Err: err}
	}
	if existing > 0 {
		return nil, &domain.ValidationError{Field: "email", Rule: "already registered"}
	}

	u := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Fullname:     titleCaseAndNormalize(fullname),
		Role:         in.Role,
		IsActive:     true,
	}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "create user", Err: err}
	}
	return u, nil
}

func (s *Service) ViewUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := s.DB.WithContext(ctx).Where("user_id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundError{Entity: "user", ID: id.String()}
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load user", Err: err}
	}
	return &u, nil
}

// ListUsers returns users, optionally restricted to one role, by name.
func (s *Service) ListUsers(ctx context.Context, role string, activeOnly bool) ([]domain.User, error) {
	if role != "" && !constants.IsValidRole(role) {
		return nil, &domain.ValidationError{Field: "role", Rule: "must be one of L1, L2, L3, L4"}
	}
	q := s.DB.WithContext(ctx)
	if role != "" {
		q = q.Where("role = ?", role)
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	out := []domain.User{}
	if err := q.Order("fullname ASC").Find(&out).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "list users", Err: err}
	}
	return out, nil
}

// UpdateUserRole moves a user to another lane and ends their sessions.
func (s *Service) UpdateUserRole(ctx context.Context, actor domain.Actor, targetID uuid.UUID, role string) (*domain.User, error) {
	if err := permit(actor); err != nil {
		return nil, err
	}
	var u domain.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := ValidateRoleAssignment(tx, actor, targetID, role)
		if err != nil {
			return err
		}
		if err := tx.Model(&domain.User{}).Where("user_id = ?", targetID).Update("role", role).Error; err != nil {
			return err
		}
		target.Role = role
		u = *target
		return nil
	})
	if err != nil {
		return nil, domain.Persistence("update user role", err)
	}
	DestroyUserSessions(ctx, s.Rdb, targetID.String())
	return &u, nil
}

// DeactivateUser blocks further logins for the target and ends their sessions.
func (s *Service) DeactivateUser(ctx context.Context, actor domain.Actor, targetID uuid.UUID) error {
	if err := permit(actor); err != nil {
		return err
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ValidateDeactivation(tx, actor, targetID); err != nil {
			return err
		}
		return tx.Model(&domain.User{}).Where("user_id = ?", targetID).Update("is_active", false).Error
	})
	if err != nil {
		return domain.Persistence("deactivate user", err)
	}
	DestroyUserSessions(ctx, s.Rdb, targetID.String())
	return nil
}

func titleCaseAndNormalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	capitalize := true
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !capitalize {
				b.WriteRune(' ')
				capitalize = true
			}
			continue
		}
		if capitalize {
			b.WriteRune(unicode.ToUpper(r))
			capitalize = false
		} else {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

package user

import (
	"context"
	"errors"

	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	// SessionIndexPrefix keys the set of session ids a user holds.
	SessionIndexPrefix = "user_sessions:"
	// SessionRedisPrefix matches the key prefix of the session middleware.
	SessionRedisPrefix = "session:"
)

func loadTarget(tx *gorm.DB, id uuid.UUID) (*domain.User, error) {
	var target domain.User
	if err := tx.Where("user_id = ?", id).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: "user", ID: id.String()}
		}
		return nil, err
	}
	return &target, nil
}

// lastApprover reports whether target is the only active L4 left.
func lastApprover(tx *gorm.DB, target *domain.User) (bool, error) {
	if target.Role != constants.RoleApprover || !target.IsActive {
		return false, nil
	}
	var count int64
	err := tx.Model(&domain.User{}).
		Where("role = ? AND is_active = ?", constants.RoleApprover, true).
		Count(&count).Error
	return count <= 1, err
}

// ValidateRoleAssignment checks a role change before it is written.
func ValidateRoleAssignment(tx *gorm.DB, actor domain.Actor, targetID uuid.UUID, role string) (*domain.User, error) {
	if !constants.IsValidRole(role) {
		return nil, &domain.ValidationError{Field: "role", Rule: "must be one of L1, L2, L3, L4"}
	}
	if actor.ID == targetID {
		return nil, &domain.ValidationError{Field: "user_id", Rule: "users cannot modify their own role"}
	}
	target, err := loadTarget(tx, targetID)
	if err != nil {
		return nil, err
	}
	if role != constants.RoleApprover {
		last, err := lastApprover(tx, target)
		if err != nil {
			return nil, err
		}
		if last {
			return nil, &domain.ValidationError{Field: "role", Rule: "at least one active approver must remain"}
		}
	}
	return target, nil
}

// ValidateDeactivation checks that target may be deactivated by actor.
func ValidateDeactivation(tx *gorm.DB, actor domain.Actor, targetID uuid.UUID) (*domain.User, error) {
	if actor.ID == targetID {
		return nil, &domain.ValidationError{Field: "user_id", Rule: "users cannot deactivate themselves"}
	}
	target, err := loadTarget(tx, targetID)
	if err != nil {
		return nil, err
	}
	last, err := lastApprover(tx, target)
	if err != nil {
		return nil, err
	}
	if last {
		return nil, &domain.ValidationError{Field: "user_id", Rule: "at least one active approver must remain"}
	}
	return target, nil
}

// TrackSession records sid under the user's session index so it can be revoked.
func TrackSession(ctx context.Context, rdb *redis.Client, userID, sid string) {
	if rdb == nil || userID == "" || sid == "" {
		return
	}
	rdb.SAdd(ctx, SessionIndexPrefix+userID, sid)
}

// DestroyUserSessions deletes every session:<sid> the user holds and the index itself.
func DestroyUserSessions(ctx context.Context, rdb *redis.Client, userID string) {
	if rdb == nil || userID == "" {
		return
	}
	key := SessionIndexPrefix + userID
	sessionIDs, err := rdb.SMembers(ctx, key).Result()
	if err == nil {
		for _, sid := range sessionIDs {
			rdb.Del(ctx, SessionRedisPrefix+sid)
		}
	}
	rdb.Del(ctx, key)
}

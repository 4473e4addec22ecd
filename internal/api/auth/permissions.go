package auth

import (
	"errors"

	"github.com/tagreview/pkg/models"
)

// Common auth errors
var (
	ErrInvalidToken            = errors.New("invalid or expired token")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrUserNotFound            = errors.New("user not found")
	ErrInvalidCredentials      = errors.New("invalid email or password")
	ErrTokenExpired            = errors.New("token has expired")
	ErrRefreshTokenInvalid     = errors.New("refresh token is invalid or expired")
	ErrUserNotInProject        = errors.New("user is not a member of this project")
	ErrProjectNotFound         = errors.New("project not found")
)

// IsValidRole checks if a role name is valid
func IsValidRole(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleLead, models.RoleEngineer:
		return true
	default:
		return false
	}
}

// GetRoleHierarchy returns the role hierarchy level (higher number = more permissions)
func GetRoleHierarchy(role string) int {
	switch role {
	case models.RoleAdmin:
		return 3
	case models.RoleLead:
		return 2
	case models.RoleEngineer:
		return 1
	default:
		return 0
	}
}

// CanRoleManageRole checks if one role can manage another role
func CanRoleManageRole(managerRole, targetRole string) bool {
	return GetRoleHierarchy(managerRole) > GetRoleHierarchy(targetRole)
}

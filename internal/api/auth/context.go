package auth

import (
	"github.com/tagreview/pkg/models"
)

// PermissionContext holds the permission context for a request
// This is built by middleware and passed to handlers
type PermissionContext struct {
	User           *models.User    `json:"user"`
	CurrentProject *models.Project `json:"current_project,omitempty"`
	Role           string          `json:"role,omitempty"`
	IsAdmin        bool            `json:"is_admin"`
	IsLead         bool            `json:"is_lead"`
	IsEngineer     bool            `json:"is_engineer"`
	ProjectID      int64           `json:"project_id,omitempty"`
}

// Permission represents a specific permission
type Permission string

const (
	// User management permissions
	PermissionViewUsers   Permission = "view_users"
	PermissionCreateUsers Permission = "create_users"
	PermissionEditUsers   Permission = "edit_users"
	PermissionDeleteUsers Permission = "delete_users"
	PermissionManageRoles Permission = "manage_roles"

	// Project permissions
	PermissionViewProject Permission = "view_project"
	PermissionEditProject Permission = "edit_project"

	// Review permissions
	PermissionViewReviews    Permission = "view_reviews"
	PermissionCreateReviews  Permission = "create_reviews"
	PermissionResolveReviews Permission = "resolve_reviews"

	// Import permissions
	PermissionRunImports Permission = "run_imports"

	// Global admin permissions
	PermissionAdmin Permission = "admin"
)

// GetProjectID returns the current project ID
func (pc *PermissionContext) GetProjectID() int64 {
	return pc.ProjectID
}

// GetUserID returns the current user ID
func (pc *PermissionContext) GetUserID() int64 {
	if pc.User == nil {
		return 0
	}
	return pc.User.ID
}

// HasPermission checks if the user has a specific permission
func (pc *PermissionContext) HasPermission(permission Permission) bool {
	// Admins have all permissions
	if pc.IsAdmin {
		return true
	}

	switch permission {
	case PermissionAdmin:
		return pc.IsAdmin

	// User management permissions
	case PermissionViewUsers:
		return pc.IsAdmin || pc.IsLead || pc.IsEngineer
	case PermissionCreateUsers, PermissionEditUsers, PermissionDeleteUsers, PermissionManageRoles:
		return pc.IsAdmin

	// Project permissions
	case PermissionViewProject:
		return pc.IsAdmin || pc.IsLead || pc.IsEngineer
	case PermissionEditProject:
		return pc.IsAdmin || pc.IsLead

	// Review permissions - reviews are created by any member, resolved by leads
	case PermissionViewReviews, PermissionCreateReviews:
		return pc.IsAdmin || pc.IsLead || pc.IsEngineer
	case PermissionResolveReviews:
		return pc.IsAdmin || pc.IsLead

	// Import permissions - sheet uploads change tag data in bulk
	case PermissionRunImports:
		return pc.IsAdmin || pc.IsLead

	default:
		return false
	}
}

// CanManageUsersInProject checks if user can manage users in the current project
func (pc *PermissionContext) CanManageUsersInProject() bool {
	return pc.HasPermission(PermissionCreateUsers)
}

// CanViewUsersInProject checks if user can view users in the current project
func (pc *PermissionContext) CanViewUsersInProject() bool {
	return pc.HasPermission(PermissionViewUsers)
}

// RequirePermission checks if user has permission and returns error if not
func (pc *PermissionContext) RequirePermission(permission Permission) error {
	if !pc.HasPermission(permission) {
		return ErrInsufficientPermissions
	}
	return nil
}

// RequireAdmin checks if user is an admin
func (pc *PermissionContext) RequireAdmin() error {
	if !pc.IsAdmin {
		return ErrInsufficientPermissions
	}
	return nil
}

// RequireLead checks if user is a lead or admin
func (pc *PermissionContext) RequireLead() error {
	if !pc.IsLead && !pc.IsAdmin {
		return ErrInsufficientPermissions
	}
	return nil
}

package users

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tagreview/internal/api/auth"
)

// UserHandlers contains the user management handler methods
type UserHandlers struct {
	userService *UserService
	db          *sql.DB
}

// NewUserHandlers creates a new user handlers instance
func NewUserHandlers(userService *UserService, db *sql.DB) *UserHandlers {
	return &UserHandlers{
		userService: userService,
		db:          db,
	}
}

// CreateUser handles creating a new user in a project
func (uh *UserHandlers) CreateUser(c echo.Context) error {
	// Get permission context from middleware
	permCtx := auth.MustGetPermissionContext(c)

	// Check permission to create users
	if !permCtx.HasPermission(auth.PermissionCreateUsers) {
		return echo.NewHTTPError(http.StatusForbidden, "Permission denied: cannot create users")
	}

	// Parse request
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	// Create user
	user, err := uh.userService.CreateUserInProject(permCtx.ProjectID, permCtx.User.ID, req)
	if err != nil {
		if err.Error() == "user with email "+req.Email+" already exists" {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create user")
	}

	return c.JSON(http.StatusCreated, user)
}

// GetUser handles getting a specific user in a project
func (uh *UserHandlers) GetUser(c echo.Context) error {
	// Get permission context from middleware
	permCtx := auth.MustGetPermissionContext(c)

	// Get user ID from URL
	userIDStr := c.Param("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	// Check permission to view users
	if !permCtx.HasPermission(auth.PermissionViewUsers) {
		return echo.NewHTTPError(http.StatusForbidden, "Permission denied: cannot view users")
	}

	// Get user
	user, err := uh.userService.GetUserInProject(permCtx.ProjectID, userID)
	if err != nil {
		if err.Error() == "user not found in project" {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get user")
	}

	return c.JSON(http.StatusOK, user)
}

// ListUsers handles listing users in a project with pagination
func (uh *UserHandlers) ListUsers(c echo.Context) error {
	// Get permission context from middleware
	permCtx := auth.MustGetPermissionContext(c)

	// Check permission to view users
	if !permCtx.HasPermission(auth.PermissionViewUsers) {
		return echo.NewHTTPError(http.StatusForbidden, "Permission denied: cannot view users")
	}

	// Parse pagination parameters
	offset := 0
	limit := 50 // Default page size

	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	// Get users
	users, totalCount, err := uh.userService.ListUsersInProject(permCtx.ProjectID, offset, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list users")
	}

	response := map[string]interface{}{
		"users":       users,
		"total_count": totalCount,
		"offset":      offset,
		"limit":       limit,
	}

	return c.JSON(http.StatusOK, response)
}

// UpdateUser handles updating a user in a project
func (uh *UserHandlers) UpdateUser(c echo.Context) error {
	// Get permission context from middleware
	permCtx := auth.MustGetPermissionContext(c)

	// Check permission to manage users
	if !permCtx.HasPermission(auth.PermissionEditUsers) {
		return echo.NewHTTPError(http.StatusForbidden, "Permission denied: cannot update users")
	}

	// Get user ID from URL
	userIDStr := c.Param("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	// Parse request
	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	// Update user
	user, err := uh.userService.UpdateUserInProject(permCtx.ProjectID, userID, permCtx.User.ID, req)
	if err != nil {
		if err.Error() == "user not found in project" {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update user")
	}

	return c.JSON(http.StatusOK, user)
}

// DeactivateUser handles deactivating a user account
func (uh *UserHandlers) DeactivateUser(c echo.Context) error {
	// Get permission context from middleware
	permCtx := auth.MustGetPermissionContext(c)

	// Check permission to manage users
	if !permCtx.HasPermission(auth.PermissionDeleteUsers) {
		return echo.NewHTTPError(http.StatusForbidden, "Permission denied: cannot deactivate users")
	}

	// Get user ID from URL
	userIDStr := c.Param("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	// Prevent users from deactivating themselves
	if userID == permCtx.User.ID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot deactivate yourself")
	}

	// Deactivate user
	err = uh.userService.DeactivateUserInProject(permCtx.ProjectID, userID, permCtx.User.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to deactivate user")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "User deactivated successfully",
	})
}

// ChangeUserRole handles changing a user's role in a project
func (uh *UserHandlers) ChangeUserRole(c echo.Context) error {
	// Get permission context from middleware
	permCtx := auth.MustGetPermissionContext(c)

	// Check permission to manage users
	if !permCtx.HasPermission(auth.PermissionManageRoles) {
		return echo.NewHTTPError(http.StatusForbidden, "Permission denied: cannot change user roles")
	}

	// Get user ID from URL
	userIDStr := c.Param("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	// Parse request
	var req struct {
		RoleID int64 `json:"role_id" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	// Update user role
	updateReq := UpdateUserRequest{
		RoleID: &req.RoleID,
	}

	user, err := uh.userService.UpdateUserInProject(permCtx.ProjectID, userID, permCtx.User.ID, updateReq)
	if err != nil {
		if err.Error() == "user not found in project" {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to change user role")
	}

	return c.JSON(http.StatusOK, user)
}

// AssignUser handles granting an existing user a role in the current project
func (uh *UserHandlers) AssignUser(c echo.Context) error {
	// Get permission context from middleware
	permCtx := auth.MustGetPermissionContext(c)

	// Check permission to manage users
	if !permCtx.HasPermission(auth.PermissionManageRoles) {
		return echo.NewHTTPError(http.StatusForbidden, "Permission denied: cannot assign users")
	}

	// Get user ID from URL
	userIDStr := c.Param("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	// Parse request
	var req struct {
		RoleID int64 `json:"role_id" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	// Assign user to the current project
	user, err := uh.userService.AssignUserToProject(permCtx.ProjectID, userID, req.RoleID, permCtx.User.ID)
	if err != nil {
		if err.Error() == "user not found" {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		if err.Error() == "target role does not exist" {
			return echo.NewHTTPError(http.StatusNotFound, "Role not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to assign user")
	}

	return c.JSON(http.StatusOK, user)
}

// RemoveUser handles revoking a user's membership in the current project
func (uh *UserHandlers) RemoveUser(c echo.Context) error {
	// Get permission context from middleware
	permCtx := auth.MustGetPermissionContext(c)

	// Check permission to manage users
	if !permCtx.HasPermission(auth.PermissionManageRoles) {
		return echo.NewHTTPError(http.StatusForbidden, "Permission denied: cannot remove users")
	}

	// Get user ID from URL
	userIDStr := c.Param("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	// Members cannot remove themselves from a project
	if userID == permCtx.User.ID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot remove yourself from the project")
	}

	// Remove user from the current project
	err = uh.userService.RemoveUserFromProject(permCtx.ProjectID, userID, permCtx.User.ID)
	if err != nil {
		if err.Error() == "user not found in project" {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to remove user")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "User removed from project",
	})
}

// ForcePasswordReset handles forcing a user to reset their password
func (uh *UserHandlers) ForcePasswordReset(c echo.Context) error {
	// Get permission context from middleware
	permCtx := auth.MustGetPermissionContext(c)

	// Check permission to manage users
	if !permCtx.HasPermission(auth.PermissionEditUsers) {
		return echo.NewHTTPError(http.StatusForbidden, "Permission denied: cannot force password reset")
	}

	// Get user ID from URL
	userIDStr := c.Param("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	// Force password reset
	err = uh.userService.ForcePasswordReset(permCtx.ProjectID, userID, permCtx.User.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to force password reset")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Password reset required - user will be prompted to change password on next login",
	})
}

// GetUserAuditLog handles getting the audit log for a user
func (uh *UserHandlers) GetUserAuditLog(c echo.Context) error {
	// Get permission context from middleware
	permCtx := auth.MustGetPermissionContext(c)

	// Check permission to view users (audit logs are sensitive)
	if !permCtx.HasPermission(auth.PermissionViewUsers) {
		return echo.NewHTTPError(http.StatusForbidden, "Permission denied: cannot view audit logs")
	}

	// Get user ID from URL
	userIDStr := c.Param("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	// Parse pagination parameters
	offset := 0
	limit := 20 // Default page size for audit logs

	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 50 {
			limit = l
		}
	}

	// Get audit log
	auditEntries, err := uh.userService.GetUserAuditLog(permCtx.ProjectID, userID, offset, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get audit log")
	}

	response := map[string]interface{}{
		"audit_entries": auditEntries,
		"offset":        offset,
		"limit":         limit,
	}

	return c.JSON(http.StatusOK, response)
}

// ListAllUsers handles listing all users across all projects (admin only)
func (uh *UserHandlers) ListAllUsers(c echo.Context) error {
	// Parse pagination parameters
	offset := 0
	limit := 50 // Default page size

	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	// Get all users (admin endpoints have RequireAdmin middleware)
	users, totalCount, err := uh.userService.ListAllUsers(offset, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list all users")
	}

	response := map[string]interface{}{
		"users":       users,
		"total_count": totalCount,
		"offset":      offset,
		"limit":       limit,
	}

	return c.JSON(http.StatusOK, response)
}

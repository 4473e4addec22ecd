package auth

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tagreview/pkg/models"
)

// ContextKey represents keys for context values
type ContextKey string

const (
	// Context keys
	UserContextKey       ContextKey = "user"
	PermissionContextKey ContextKey = "permission_context"
	ProjectContextKey    ContextKey = "project"
)

// RequireAuth is a helper function that creates authentication middleware
// This can be used directly without creating an AuthMiddleware instance
func RequireAuth(tokenService *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Extract token from Authorization header
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			// Check Bearer token format
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			tokenString := tokenParts[1]

			// Validate token
			user, err := tokenService.ValidateAccessToken(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			// Add user to context
			c.Set(string(UserContextKey), user)

			return next(c)
		}
	}
}

// AuthMiddleware holds the dependencies for auth middleware
type AuthMiddleware struct {
	tokenService *TokenService
	db           *sql.DB
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(tokenService *TokenService, db *sql.DB) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
		db:           db,
	}
}

// RequireAuth middleware validates that a valid JWT token is present
func (am *AuthMiddleware) RequireAuth() echo.MiddlewareFunc {
	return RequireAuth(am.tokenService)
}

// BuildProjectContextFromHeader middleware extracts project id from the
// X-Project-Context header and validates the project exists
func (am *AuthMiddleware) BuildProjectContextFromHeader() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			projectIDStr := c.Request().Header.Get("X-Project-Context")
			if projectIDStr == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "Project context header required")
			}

			projectID, err := strconv.ParseInt(projectIDStr, 10, 64)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid project ID in header")
			}

			return am.loadProject(c, next, projectID)
		}
	}
}

// loadProject fetches the project and stores it in the request context
func (am *AuthMiddleware) loadProject(c echo.Context, next echo.HandlerFunc, projectID int64) error {
	project := &models.Project{}
	err := am.db.QueryRow(`
		SELECT id, external_key, name, description, is_active, created_at, updated_at
		FROM projects WHERE id = $1
	`, projectID).Scan(&project.ID, &project.ExternalKey, &project.Name, &project.Description, &project.IsActive, &project.CreatedAt, &project.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return echo.NewHTTPError(http.StatusNotFound, "Project not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch project")
	}

	c.Set(string(ProjectContextKey), project)
	return next(c)
}

// ValidateProjectAccess middleware checks if user has access to the project
func (am *AuthMiddleware) ValidateProjectAccess() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Get user from context
			userInterface := c.Get(string(UserContextKey))
			if userInterface == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not found in context")
			}
			user := userInterface.(*models.User)

			// Get project from context
			projectInterface := c.Get(string(ProjectContextKey))
			if projectInterface == nil {
				return echo.NewHTTPError(http.StatusBadRequest, "Project not found in context")
			}
			project := projectInterface.(*models.Project)

			// Check if user is an admin first - admins have access to all projects
			var isAdmin bool
			err := am.db.QueryRow(`
				SELECT EXISTS(
					SELECT 1 FROM user_roles ur
					JOIN roles r ON ur.role_id = r.id
					WHERE ur.user_id = $1 AND r.name = $2
				)
			`, user.ID, models.RoleAdmin).Scan(&isAdmin)

			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to check admin status")
			}

			// If admin, grant access with admin role
			if isAdmin {
				c.Set("user_role", models.RoleAdmin)
				return next(c)
			}

			// Check if user has access to this project
			var userRole string
			err = am.db.QueryRow(`
				SELECT r.name
				FROM user_roles ur
				JOIN roles r ON ur.role_id = r.id
				WHERE ur.user_id = $1 AND ur.project_id = $2
			`, user.ID, project.ID).Scan(&userRole)

			if err != nil {
				if err == sql.ErrNoRows {
					return echo.NewHTTPError(http.StatusForbidden, "Access denied to this project")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to check project access")
			}

			// Store role information in context for later use
			c.Set("user_role", userRole)
			return next(c)
		}
	}
}

// BuildPermissionContext middleware builds the complete permission context
func (am *AuthMiddleware) BuildPermissionContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Get user from context
			userInterface := c.Get(string(UserContextKey))
			if userInterface == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not found in context")
			}
			user := userInterface.(*models.User)

			// Get project from context
			projectInterface := c.Get(string(ProjectContextKey))
			if projectInterface == nil {
				return echo.NewHTTPError(http.StatusBadRequest, "Project not found in context")
			}
			project := projectInterface.(*models.Project)

			// Get user role from context
			userRole := c.Get("user_role").(string)

			// Build permission context
			permissionContext := &PermissionContext{
				User:           user,
				CurrentProject: project,
				Role:           userRole,
				IsAdmin:        userRole == models.RoleAdmin,
				IsLead:         userRole == models.RoleLead,
				IsEngineer:     userRole == models.RoleEngineer,
				ProjectID:      project.ID,
			}

			// Store permission context
			c.Set(string(PermissionContextKey), permissionContext)
			return next(c)
		}
	}
}

// BuildGlobalPermissionContext middleware builds a permission context for
// endpoints that don't require project context (like listing projects)
func (am *AuthMiddleware) BuildGlobalPermissionContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Get user from context
			userInterface := c.Get(string(UserContextKey))
			if userInterface == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not found in context")
			}
			user := userInterface.(*models.User)

			// Check if user is an admin in any project
			var isAdmin bool
			err := am.db.QueryRow(`
				SELECT EXISTS(
					SELECT 1 FROM user_roles ur
					JOIN roles r ON ur.role_id = r.id
					WHERE ur.user_id = $1 AND r.name = $2
				)
			`, user.ID, models.RoleAdmin).Scan(&isAdmin)

			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to check admin status")
			}

			// Build minimal permission context with just the admin flag
			permissionContext := &PermissionContext{
				User:    user,
				IsAdmin: isAdmin,
			}

			// Store permission context
			c.Set(string(PermissionContextKey), permissionContext)
			return next(c)
		}
	}
}

// RequireAdmin middleware checks if user is an admin
func (am *AuthMiddleware) RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Get user from context
			userInterface := c.Get(string(UserContextKey))
			if userInterface == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not found in context")
			}
			user := userInterface.(*models.User)

			// Check if user is an admin in any project
			var isAdmin bool
			err := am.db.QueryRow(`
				SELECT EXISTS(
					SELECT 1 FROM user_roles ur
					JOIN roles r ON ur.role_id = r.id
					WHERE ur.user_id = $1 AND r.name = $2
				)
			`, user.ID, models.RoleAdmin).Scan(&isAdmin)

			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to check admin status")
			}

			if !isAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "Admin access required")
			}

			return next(c)
		}
	}
}

// Helper functions to extract context values

// GetUser extracts user from echo context
func GetUser(c echo.Context) *models.User {
	userInterface := c.Get(string(UserContextKey))
	if userInterface == nil {
		return nil
	}
	return userInterface.(*models.User)
}

// GetPermissionContext extracts permission context from echo context
func GetPermissionContext(c echo.Context) *PermissionContext {
	permCtxInterface := c.Get(string(PermissionContextKey))
	if permCtxInterface == nil {
		return nil
	}
	return permCtxInterface.(*PermissionContext)
}

// MustGetPermissionContext extracts permission context and panics if not found
// Use this only in handlers where permission context is guaranteed by middleware
func MustGetPermissionContext(c echo.Context) *PermissionContext {
	permCtx := GetPermissionContext(c)
	if permCtx == nil {
		panic("Permission context not found - ensure middleware is properly configured")
	}
	return permCtx
}

package auth

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/tagreview/pkg/models"
)

// AuthHandlers contains the authentication handler methods
type AuthHandlers struct {
	tokenService *TokenService
	db           *sql.DB
}

// NewAuthHandlers creates a new authentication handlers instance
func NewAuthHandlers(tokenService *TokenService, db *sql.DB) *AuthHandlers {
	return &AuthHandlers{
		tokenService: tokenService,
		db:           db,
	}
}

// Register wires the authentication routes into the given group. Routes that
// operate on an established session take the auth middleware per-route; the
// rest must stay reachable without a token.
func (h *AuthHandlers) Register(g *echo.Group, requireAuth echo.MiddlewareFunc) {
	g.POST("/auth/login", h.Login)
	g.POST("/auth/refresh", h.RefreshToken)
	g.GET("/auth/setup", h.CheckSetupStatus)
	g.POST("/auth/setup", h.SetupAdmin)
	g.POST("/auth/logout", h.Logout, requireAuth)
	g.GET("/auth/me", h.Me, requireAuth)
	g.POST("/auth/change-password", h.ChangePassword, requireAuth)
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	User      *UserInfo     `json:"user"`
	TokenPair *TokenPair    `json:"tokens"`
	Projects  []ProjectInfo `json:"projects"`
}

// UserInfo represents basic user information (no sensitive data)
type UserInfo struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectInfo represents project membership information for the user
type ProjectInfo struct {
	ID   int64  `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
	Role string `json:"role"` // admin, lead, engineer
}

// RefreshRequest represents the token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ChangePasswordRequest represents change password request (for temp passwords)
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// SetupAdminRequest represents initial admin setup request
type SetupAdminRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	ProjectKey  string `json:"project_key" validate:"required"`
	ProjectName string `json:"project_name" validate:"required"`
}

// Login handles user authentication with email/password
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	// Get user by email
	user := &models.User{}
	err := h.db.QueryRow(`
		SELECT id, email, password_hash, first_name, last_name, is_active, created_at, updated_at
		FROM users WHERE email = $1
	`, req.Email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Invalid email or password",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Database error",
		})
	}

	// Deactivated accounts get the same answer as bad credentials
	if !user.IsActive {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Invalid email or password",
		})
	}

	// Verify password
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Invalid email or password",
		})
	}

	// Get user agent and IP for token tracking
	userAgent := c.Request().Header.Get("User-Agent")
	ipAddress := c.RealIP()

	// Create token pair
	tokenPair, err := h.tokenService.CreateTokenPair(user, userAgent, ipAddress)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to create session",
		})
	}

	// Record the login time
	_, err = h.db.Exec(`UPDATE users SET last_login_at = NOW() WHERE id = $1`, user.ID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to update last_login_at")
	}

	// Get user's projects and roles
	projects, err := h.getUserProjects(user.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to get user projects",
		})
	}

	// Build response
	response := LoginResponse{
		User: &UserInfo{
			ID:        user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			CreatedAt: user.CreatedAt,
			UpdatedAt: user.UpdatedAt,
		},
		TokenPair: tokenPair,
		Projects:  projects,
	}

	return c.JSON(http.StatusOK, response)
}

// Logout handles user logout (revokes tokens)
func (h *AuthHandlers) Logout(c echo.Context) error {
	// Get the access token from the request
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Authorization header required",
		})
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	// Validate token to get the user
	user, err := h.tokenService.ValidateAccessToken(tokenString)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Invalid token",
		})
	}

	// Parse JWT to get token hash (we need this to revoke the specific session)
	claims, err := h.tokenService.parseTokenClaims(tokenString)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Invalid token",
		})
	}

	// Check if refresh token is provided for single-session logout
	var req struct {
		RefreshToken string `json:"refresh_token,omitempty"`
		LogoutAll    bool   `json:"logout_all,omitempty"`
	}
	c.Bind(&req)

	if req.LogoutAll {
		// Logout from all devices
		err = h.tokenService.RevokeAllUserTokens(user.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "Failed to logout from all devices",
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"message": "Logged out from all devices",
		})
	} else {
		// Single session logout - revoke current access token
		err = h.tokenService.RevokeToken(claims.TokenHash, "session")
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "Failed to revoke session",
			})
		}

		// Also revoke the refresh token if provided
		if req.RefreshToken != "" {
			refreshTokenHash := h.tokenService.hashToken(req.RefreshToken)
			h.tokenService.RevokeToken(refreshTokenHash, "refresh")
		}

		return c.JSON(http.StatusOK, map[string]string{
			"message": "Logged out successfully",
		})
	}
}

// Me returns information about the currently authenticated user
func (h *AuthHandlers) Me(c echo.Context) error {
	// Get user from context (set by middleware)
	user, ok := c.Get("user").(*models.User)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "User not found in context",
		})
	}

	// Get user's projects and roles
	projects, err := h.getUserProjects(user.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to get user projects",
		})
	}

	response := struct {
		User     *UserInfo     `json:"user"`
		Projects []ProjectInfo `json:"projects"`
	}{
		User: &UserInfo{
			ID:        user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			CreatedAt: user.CreatedAt,
			UpdatedAt: user.UpdatedAt,
		},
		Projects: projects,
	}

	return c.JSON(http.StatusOK, response)
}

// RefreshToken handles token refresh using a valid refresh token
func (h *AuthHandlers) RefreshToken(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	// Get user agent and IP for token tracking
	userAgent := c.Request().Header.Get("User-Agent")
	ipAddress := c.RealIP()

	// Refresh the token pair
	tokenPair, err := h.tokenService.RefreshTokenPair(req.RefreshToken, userAgent, ipAddress)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Invalid or expired refresh token",
		})
	}

	return c.JSON(http.StatusOK, tokenPair)
}

// SetupAdmin handles initial admin user setup on a fresh install
func (h *AuthHandlers) SetupAdmin(c echo.Context) error {
	var req SetupAdminRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	// Check if any users already exist
	var userCount int
	err := h.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&userCount)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Database error",
		})
	}

	if userCount > 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Admin user already exists",
		})
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to hash password",
		})
	}

	// Start transaction
	tx, err := h.db.Begin()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Database transaction error",
		})
	}
	defer tx.Rollback()

	// Create the first project
	var projectID int64
	err = tx.QueryRow(`
		INSERT INTO projects (external_key, name, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id
	`, req.ProjectKey, req.ProjectName).Scan(&projectID)

	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to create project",
		})
	}

	// Create admin user
	var userID int64
	err = tx.QueryRow(`
		INSERT INTO users (email, password_hash, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id
	`, req.Email, string(hashedPassword)).Scan(&userID)

	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to create user",
		})
	}

	// Get the admin role ID
	var roleID int64
	err = tx.QueryRow(`
		SELECT id FROM roles WHERE name = 'admin'
	`).Scan(&roleID)

	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to find admin role",
		})
	}

	// Add admin role to user
	_, err = tx.Exec(`
		INSERT INTO user_roles (user_id, project_id, role_id, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`, userID, projectID, roleID)

	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to assign role",
		})
	}

	// Commit transaction
	if err = tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to commit transaction",
		})
	}

	// Create user object for token generation
	user := &models.User{
		ID:           userID,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	// Get user agent and IP for token tracking
	userAgent := c.Request().Header.Get("User-Agent")
	ipAddress := c.RealIP()

	// Create token pair for immediate login
	tokenPair, err := h.tokenService.CreateTokenPair(user, userAgent, ipAddress)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Admin created but failed to create session",
		})
	}

	// Get user's projects and roles
	projects, err := h.getUserProjects(userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Admin created but failed to get projects",
		})
	}

	// Build response similar to login
	response := struct {
		Message   string        `json:"message"`
		User      *UserInfo     `json:"user"`
		TokenPair *TokenPair    `json:"tokens"`
		Projects  []ProjectInfo `json:"projects"`
	}{
		Message: "Admin user created successfully",
		User: &UserInfo{
			ID:        userID,
			Email:     req.Email,
			CreatedAt: user.CreatedAt,
			UpdatedAt: user.UpdatedAt,
		},
		TokenPair: tokenPair,
		Projects:  projects,
	}

	return c.JSON(http.StatusOK, response)
}

// ChangePassword handles password changes (useful for temp passwords)
func (h *AuthHandlers) ChangePassword(c echo.Context) error {
	// Get user from context (set by middleware)
	user, ok := c.Get("user").(*models.User)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "User not found in context",
		})
	}

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	// Verify current password
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Current password is incorrect",
		})
	}

	// Hash new password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to hash password",
		})
	}

	// Update password
	_, err = h.db.Exec(`
		UPDATE users
		SET password_hash = $1, updated_at = NOW()
		WHERE id = $2
	`, string(hashedPassword), user.ID)

	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to update password",
		})
	}

	// Revoke all existing tokens to force re-login on password change
	err = h.tokenService.RevokeAllUserTokens(user.ID)
	if err != nil {
		// Password change succeeded, the stale sessions just live on
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to revoke tokens after password change")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Password changed successfully",
	})
}

// CheckSetupStatus checks if initial setup is needed
func (h *AuthHandlers) CheckSetupStatus(c echo.Context) error {
	// Check if any users exist
	var userCount int
	err := h.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&userCount)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Database error",
		})
	}

	response := map[string]interface{}{
		"setup_required": userCount == 0,
		"user_count":     userCount,
	}

	return c.JSON(http.StatusOK, response)
}

// Helper method to get user's projects and roles
func (h *AuthHandlers) getUserProjects(userID int64) ([]ProjectInfo, error) {
	rows, err := h.db.Query(`
		SELECT p.id, p.external_key, p.name, r.name
		FROM projects p
		JOIN user_roles ur ON p.id = ur.project_id
		JOIN roles r ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY p.name
	`, userID)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []ProjectInfo
	for rows.Next() {
		var project ProjectInfo
		err := rows.Scan(&project.ID, &project.Key, &project.Name, &project.Role)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}

	return projects, nil
}

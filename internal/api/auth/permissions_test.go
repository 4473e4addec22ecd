package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tagreview/pkg/models"
)

func TestIsValidRole(t *testing.T) {
	assert.True(t, IsValidRole(models.RoleAdmin))
	assert.True(t, IsValidRole(models.RoleLead))
	assert.True(t, IsValidRole(models.RoleEngineer))
	assert.False(t, IsValidRole("superuser"))
	assert.False(t, IsValidRole(""))
}

func TestRoleHierarchy(t *testing.T) {
	assert.Greater(t, GetRoleHierarchy(models.RoleAdmin), GetRoleHierarchy(models.RoleLead))
	assert.Greater(t, GetRoleHierarchy(models.RoleLead), GetRoleHierarchy(models.RoleEngineer))
	assert.Equal(t, 0, GetRoleHierarchy("unknown"))
}

func TestCanRoleManageRole(t *testing.T) {
	assert.True(t, CanRoleManageRole(models.RoleAdmin, models.RoleLead))
	assert.True(t, CanRoleManageRole(models.RoleAdmin, models.RoleEngineer))
	assert.True(t, CanRoleManageRole(models.RoleLead, models.RoleEngineer))

	// Equal rank cannot manage itself, lower cannot manage higher
	assert.False(t, CanRoleManageRole(models.RoleAdmin, models.RoleAdmin))
	assert.False(t, CanRoleManageRole(models.RoleLead, models.RoleAdmin))
	assert.False(t, CanRoleManageRole(models.RoleEngineer, models.RoleLead))
}

func permCtx(role string) *PermissionContext {
	return &PermissionContext{
		User:       &models.User{ID: 7},
		Role:       role,
		IsAdmin:    role == models.RoleAdmin,
		IsLead:     role == models.RoleLead,
		IsEngineer: role == models.RoleEngineer,
		ProjectID:  42,
	}
}

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role       string
		permission Permission
		want       bool
	}{
		{models.RoleAdmin, PermissionAdmin, true},
		{models.RoleAdmin, PermissionCreateUsers, true},
		{models.RoleAdmin, PermissionRunImports, true},

		{models.RoleLead, PermissionAdmin, false},
		{models.RoleLead, PermissionCreateUsers, false},
		{models.RoleLead, PermissionViewUsers, true},
		{models.RoleLead, PermissionEditProject, true},
		{models.RoleLead, PermissionResolveReviews, true},
		{models.RoleLead, PermissionRunImports, true},

		{models.RoleEngineer, PermissionViewUsers, true},
		{models.RoleEngineer, PermissionViewReviews, true},
		{models.RoleEngineer, PermissionCreateReviews, true},
		{models.RoleEngineer, PermissionResolveReviews, false},
		{models.RoleEngineer, PermissionRunImports, false},
		{models.RoleEngineer, PermissionManageRoles, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+string(tt.permission), func(t *testing.T) {
			got := permCtx(tt.role).HasPermission(tt.permission)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasPermissionUnknown(t *testing.T) {
	assert.False(t, permCtx(models.RoleEngineer).HasPermission(Permission("launch_rockets")))
	// Admins pass the blanket check even for unknown permissions
	assert.True(t, permCtx(models.RoleAdmin).HasPermission(Permission("launch_rockets")))
}

func TestRequireHelpers(t *testing.T) {
	admin := permCtx(models.RoleAdmin)
	lead := permCtx(models.RoleLead)
	engineer := permCtx(models.RoleEngineer)

	assert.NoError(t, admin.RequireAdmin())
	assert.ErrorIs(t, lead.RequireAdmin(), ErrInsufficientPermissions)

	assert.NoError(t, admin.RequireLead())
	assert.NoError(t, lead.RequireLead())
	assert.ErrorIs(t, engineer.RequireLead(), ErrInsufficientPermissions)

	assert.NoError(t, lead.RequirePermission(PermissionRunImports))
	assert.ErrorIs(t, engineer.RequirePermission(PermissionRunImports), ErrInsufficientPermissions)
}

func TestPermissionContextAccessors(t *testing.T) {
	ctx := permCtx(models.RoleLead)
	assert.Equal(t, int64(42), ctx.GetProjectID())
	assert.Equal(t, int64(7), ctx.GetUserID())

	ctx.User = nil
	assert.Equal(t, int64(0), ctx.GetUserID())

	assert.True(t, permCtx(models.RoleAdmin).CanManageUsersInProject())
	assert.False(t, permCtx(models.RoleLead).CanManageUsersInProject())
	assert.True(t, permCtx(models.RoleEngineer).CanViewUsersInProject())
}

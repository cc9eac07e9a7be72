package services

import (
	"accessgov/internal/models"
	"accessgov/internal/store"
	apperrors "accessgov/pkg/errors"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestCustomRoleService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	role, err := env.roles.Create(ctx, "admin@example.com", &CustomRoleRequest{
		Name:        "Auditor Financeiro",
		SystemRoles: []string{"auditor"},
		EntityPermissions: map[string][]models.EntityOperation{
			"FinancialRecord": {models.OpRead, models.OpUpdate, models.OpRead},
			"Customer":        {},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStatusActive, role.Status)
	assert.Equal(t, models.EntityPermissions{
		"FinancialRecord": {models.OpRead, models.OpUpdate},
	}, role.Grants())

	entries := env.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditCustomRoleCreated, entries[0].ActionType)
	assert.Equal(t, models.TargetCustomRole, entries[0].TargetType)

	_, err = env.roles.Create(ctx, "admin", &CustomRoleRequest{Name: "Auditor Financeiro"})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

func TestCustomRoleService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CustomRoleRequest
	}{
		{"empty name", CustomRoleRequest{Name: ""}},
		{"unknown entity", CustomRoleRequest{Name: "X", EntityPermissions: map[string][]models.EntityOperation{"Invoice": {models.OpRead}}}},
		{"bad operation", CustomRoleRequest{Name: "X", EntityPermissions: map[string][]models.EntityOperation{"Customer": {"approve"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := env.roles.Create(ctx, "admin", &req)
			assert.True(t, apperrors.Is(err, apperrors.KindValidation), "got %v", err)
		})
	}
	assert.Empty(t, env.auditEntries(t))
}

func TestCustomRoleService_UpdateAndDeactivate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	role := env.createRole(t, "Estoquista", models.EntityPermissions{"Product": {models.OpRead}})
	env.createEmployee(t, models.Employee{FullName: "Caio", CustomRoleIDs: datatypes.JSONSlice[uint]{role.ID}})
	env.createEmployee(t, models.Employee{FullName: "Duda", CustomRoleIDs: datatypes.JSONSlice[uint]{role.ID + 100}})

	updated, err := env.roles.Update(ctx, "admin", role.ID, &CustomRoleRequest{
		Name:              "Estoquista Sênior",
		EntityPermissions: map[string][]models.EntityOperation{"Product": {models.OpRead, models.OpCreate}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Estoquista Sênior", updated.Name)
	assert.True(t, updated.Grants().Allows("Product", models.OpCreate))

	deactivated, err := env.roles.Deactivate(ctx, "admin", role.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive())

	entries, _, err := env.audit.Query(ctx, AuditQuery{TargetType: models.TargetCustomRole})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, 1, entry.AffectedUsersCount)
	}

	// 停用后不再授予实体权限
	employees, err := env.stores.Employees.Filter(ctx, store.Filter{"full_name": "Caio"}, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, employees, 1)
	user := env.createUser(t, models.User{Email: "caio@example.com", Name: "Caio"})
	_, err = env.stores.Employees.Update(ctx, employees[0].ID, store.Fields{"user_id": user.ID})
	require.NoError(t, err)
	actor, err := env.actors.Load(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, env.resolver.Allowed(actor, EntityRequest("Product", models.OpRead)))
}

func TestCustomRoleService_List(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createRole(t, "B", nil)
	inactive := env.createRole(t, "A", nil)
	_, err := env.roles.Deactivate(ctx, "admin", inactive.ID)
	require.NoError(t, err)

	roles, total, err := env.roles.List(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, roles, 2)
	assert.Equal(t, "A", roles[0].Name)

	roles, total, err = env.roles.List(ctx, models.RoleStatusActive, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "B", roles[0].Name)

	_, err = env.roles.Get(ctx, 999)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

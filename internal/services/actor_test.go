package services

import (
	"accessgov/internal/models"
	apperrors "accessgov/pkg/errors"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestActorService_LoadMergesEmployee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	workshop := uint(7)
	user := env.createUser(t, models.User{Email: "ana@example.com", Name: "Ana", JobRole: "mecanico", Area: "oficina"})
	profile := env.createProfile(t, "Financeiro", models.ModulePermissions{"resultados": models.LevelTotal}, "finance")
	role := env.createRole(t, "Clientes", models.EntityPermissions{"Customer": {models.OpRead}}, "auditor")
	emp := env.createEmployee(t, models.Employee{
		UserID:        &user.ID,
		FullName:      "Ana",
		JobRole:       "financeiro",
		WorkshopID:    &workshop,
		ProfileID:     &profile.ID,
		CustomRoleIDs: datatypes.JSONSlice[uint]{role.ID, 404},
		TipoVinculo:   models.VinculoInterno,
	})

	actor, err := env.actors.Load(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "financeiro", actor.JobRole())
	assert.Equal(t, "oficina", actor.Area())
	assert.True(t, actor.IsInternal())
	require.NotNil(t, actor.WorkshopID())
	assert.Equal(t, workshop, *actor.WorkshopID())

	employeeID, ok := actor.EmployeeID()
	assert.True(t, ok)
	assert.Equal(t, emp.ID, employeeID)
	profileID, ok := actor.ProfileID()
	assert.True(t, ok)
	assert.Equal(t, profile.ID, profileID)

	assert.Equal(t, models.LevelTotal, actor.ModuleLevel("resultados"))
	assert.True(t, actor.HasCapability("finance"))
	assert.True(t, actor.HasCapability("auditor"))
	assert.True(t, actor.GrantsEntity("Customer", models.OpRead))
	assert.Equal(t, []uint{role.ID}, actor.CustomRoleIDs())
}

func TestActorService_LoadFindsEmployeeByEmail(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, models.User{Email: "bia@example.com", Name: "Bia"})
	env.createEmployee(t, models.Employee{Email: "bia@example.com", FullName: "Bia", JobRole: "rh"})

	actor, err := env.actors.Load(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "rh", actor.JobRole())
	_, ok := actor.EmployeeID()
	assert.True(t, ok)
}

func TestActorService_LoadWithoutEmployee(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, models.User{Email: "root@example.com", Name: "Root", Role: models.UserRoleAdmin})

	actor, err := env.actors.Load(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, actor.IsAdmin())
	assert.False(t, actor.HasProfile())
	_, ok := actor.EmployeeID()
	assert.False(t, ok)
}

func TestActorService_LoadMissingProfileIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, models.User{Email: "caio@example.com", Name: "Caio"})
	missing := uint(404)
	env.createEmployee(t, models.Employee{UserID: &user.ID, FullName: "Caio", ProfileID: &missing})

	actor, err := env.actors.Load(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, actor.HasProfile())
	assert.Equal(t, models.LevelBlocked, actor.ModuleLevel("dashboard"))
}

func TestActorService_LoadErrors(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.actors.Load(context.Background(), 999)
		assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))
	})

	t.Run("user store down", func(t *testing.T) {
		stores := NewMemoryStores()
		stores.Users = &failingCollection[models.User]{Collection: stores.Users, failGet: true}
		env := newTestEnvWithStores(t, stores)
		_, err := env.actors.Load(context.Background(), 1)
		assert.True(t, apperrors.Is(err, apperrors.KindInternal))
	})

	t.Run("employee store down", func(t *testing.T) {
		stores := NewMemoryStores()
		stores.Employees = &failingCollection[models.Employee]{Collection: stores.Employees, failFilter: true}
		env := newTestEnvWithStores(t, stores)
		user := env.createUser(t, models.User{Email: "x@example.com", Name: "X"})
		_, err := env.actors.Load(context.Background(), user.ID)
		assert.True(t, apperrors.Is(err, apperrors.KindInternal))
	})

	t.Run("profile store down", func(t *testing.T) {
		stores := NewMemoryStores()
		failing := &failingCollection[models.Profile]{Collection: stores.Profiles}
		stores.Profiles = failing
		env := newTestEnvWithStores(t, stores)
		user := env.createUser(t, models.User{Email: "y@example.com", Name: "Y"})
		profile := env.createProfile(t, "P", models.ModulePermissions{})
		env.createEmployee(t, models.Employee{UserID: &user.ID, FullName: "Y", ProfileID: &profile.ID})

		failing.failGet = true
		_, err := env.actors.Load(context.Background(), user.ID)
		assert.True(t, apperrors.Is(err, apperrors.KindInternal))
	})
}

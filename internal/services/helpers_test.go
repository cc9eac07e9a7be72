package services

import (
	"accessgov/internal/catalog"
	"accessgov/internal/models"
	"accessgov/internal/store"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var errStoreDown = errors.New("store unavailable")

type testEnv struct {
	stores     *Stores
	catalog    *catalog.Catalog
	resolver   *Resolver
	audit      *AuditService
	notifier   *RecordingNotifier
	autoAssign *AutoAssignService
	profiles   *ProfileService
	roles      *CustomRoleService
	requests   *PermissionRequestService
	actors     *ActorService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStores(t, NewMemoryStores())
}

func newTestEnvWithStores(t *testing.T, stores *Stores) *testEnv {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)

	bestEffort := NewBestEffort(nil)
	audit := NewAuditService(stores.AuditLogs, bestEffort, 0)
	resolver := NewResolver(c)
	notifier := &RecordingNotifier{}

	return &testEnv{
		stores:     stores,
		catalog:    c,
		resolver:   resolver,
		audit:      audit,
		notifier:   notifier,
		autoAssign: NewAutoAssignService(stores, c, audit),
		profiles:   NewProfileService(stores, c, audit),
		roles:      NewCustomRoleService(stores, c, audit),
		requests:   NewPermissionRequestService(stores, resolver, audit, notifier, bestEffort, []string{"approver@example.com"}),
		actors:     NewActorService(stores),
	}
}

func (e *testEnv) createUser(t *testing.T, u models.User) *models.User {
	t.Helper()
	if u.Role == "" {
		u.Role = models.UserRoleUser
	}
	if u.Status == "" {
		u.Status = models.UserStatusActive
	}
	require.NoError(t, e.stores.Users.Create(context.Background(), &u))
	return &u
}

func (e *testEnv) createEmployee(t *testing.T, emp models.Employee) *models.Employee {
	t.Helper()
	if emp.UserStatus == "" {
		emp.UserStatus = models.EmployeeStatusActive
	}
	require.NoError(t, e.stores.Employees.Create(context.Background(), &emp))
	return &emp
}

func (e *testEnv) createProfile(t *testing.T, name string, perms models.ModulePermissions, roles ...string) *models.Profile {
	t.Helper()
	p := &models.Profile{
		Name:              name,
		Type:              models.ProfileTypeInternal,
		ModulePermissions: datatypes.NewJSONType(perms),
		Roles:             datatypes.JSONSlice[string](roles),
		Status:            models.ProfileStatusActive,
	}
	require.NoError(t, e.stores.Profiles.Create(context.Background(), p))
	return p
}

func (e *testEnv) createRole(t *testing.T, name string, grants models.EntityPermissions, systemRoles ...string) *models.CustomRole {
	t.Helper()
	r := &models.CustomRole{
		Name:              name,
		SystemRoles:       datatypes.JSONSlice[string](systemRoles),
		EntityPermissions: datatypes.NewJSONType(grants),
		Status:            models.RoleStatusActive,
	}
	require.NoError(t, e.stores.CustomRoles.Create(context.Background(), r))
	return r
}

func (e *testEnv) auditEntries(t *testing.T) []models.AuditLogEntry {
	t.Helper()
	entries, err := e.stores.AuditLogs.List(context.Background(), store.ListOptions{})
	require.NoError(t, err)
	return entries
}

// adminActor 全局管理员
func adminActor() *EffectiveActor {
	return MergeActor(&models.User{BaseModel: models.BaseModel{ID: 1}, Email: "admin@example.com", Role: models.UserRoleAdmin}, nil, nil, nil)
}

// approverActor 持有admin_rbac能力的内部员工
func approverActor() *EffectiveActor {
	user := &models.User{BaseModel: models.BaseModel{ID: 2}, Email: "approver@example.com"}
	employee := &models.Employee{BaseModel: models.BaseModel{ID: 900}, IsInternal: true, UserStatus: models.EmployeeStatusActive}
	profile := &models.Profile{
		Name:              "RBAC Admin",
		Status:            models.ProfileStatusActive,
		ModulePermissions: datatypes.NewJSONType(models.ModulePermissions{"administracao": models.LevelView}),
		Roles:             datatypes.JSONSlice[string]{"admin_rbac"},
	}
	return MergeActor(user, employee, profile, nil)
}

// managerActor 可以提交变更申请的门店经理
func managerActor() *EffectiveActor {
	user := &models.User{BaseModel: models.BaseModel{ID: 3}, Email: "manager@example.com"}
	employee := &models.Employee{BaseModel: models.BaseModel{ID: 901}, JobRole: "gerente", UserStatus: models.EmployeeStatusActive}
	profile := &models.Profile{
		Name:              "Gerência",
		Status:            models.ProfileStatusActive,
		ModulePermissions: datatypes.NewJSONType(models.ModulePermissions{"colaboradores": models.LevelView}),
	}
	return MergeActor(user, employee, profile, nil)
}

// failingCollection 指定操作返回错误的集合
type failingCollection[T any] struct {
	store.Collection[T]
	failCreate bool
	failGet    bool
	failFilter bool
	failUpdate bool
	err        error // 为空时返回errStoreDown
}

func (c *failingCollection[T]) failure() error {
	if c.err != nil {
		return c.err
	}
	return errStoreDown
}

func (c *failingCollection[T]) Create(ctx context.Context, record *T) error {
	if c.failCreate {
		return c.failure()
	}
	return c.Collection.Create(ctx, record)
}

func (c *failingCollection[T]) Get(ctx context.Context, id uint) (*T, error) {
	if c.failGet {
		return nil, c.failure()
	}
	return c.Collection.Get(ctx, id)
}

func (c *failingCollection[T]) Filter(ctx context.Context, filter store.Filter, opts store.ListOptions) ([]T, error) {
	if c.failFilter {
		return nil, c.failure()
	}
	return c.Collection.Filter(ctx, filter, opts)
}

func (c *failingCollection[T]) Update(ctx context.Context, id uint, fields store.Fields) (*T, error) {
	if c.failUpdate {
		return nil, c.failure()
	}
	return c.Collection.Update(ctx, id, fields)
}

package services

import (
	"accessgov/internal/models"
	"accessgov/internal/store"
	apperrors "accessgov/pkg/errors"
	"context"
	"sort"
)

// EffectiveActor 用户与员工合并后的权限主体，创建后不可修改。
// 员工存在时，岗位、区域、门店等字段以员工记录为准。
type EffectiveActor struct {
	userID      uint
	email       string
	name        string
	admin       bool
	jobRole     string
	area        string
	workshopID  *uint
	internal    bool
	employeeID  uint
	hasEmployee bool
	status      string

	profileID    uint
	profileName  string
	hasProfile   bool
	modules      models.ModulePermissions
	capabilities map[string]struct{}
	entityGrants models.EntityPermissions
	customRoles  []uint
}

// MergeActor 合并用户、员工、档案和自定义角色。
// 停用的档案和角色不产生授权；员工状态为inativo时不保留任何授权（管理员通配不受影响）。
func MergeActor(user *models.User, employee *models.Employee, profile *models.Profile, roles []models.CustomRole) *EffectiveActor {
	a := &EffectiveActor{
		capabilities: make(map[string]struct{}),
		entityGrants: make(models.EntityPermissions),
	}

	if user != nil {
		a.userID = user.ID
		a.email = user.Email
		a.name = user.Name
		a.admin = user.IsAdmin()
		a.jobRole = user.JobRole
		a.area = user.Area
		a.workshopID = copyUint(user.WorkshopID)
		a.internal = user.IsInternal
	}

	if employee != nil {
		a.employeeID = employee.ID
		a.hasEmployee = true
		a.status = employee.UserStatus
		if employee.JobRole != "" {
			a.jobRole = employee.JobRole
		}
		if employee.Area != "" {
			a.area = employee.Area
		}
		if employee.WorkshopID != nil {
			a.workshopID = copyUint(employee.WorkshopID)
		}
		if a.email == "" {
			a.email = employee.Email
		}
		if a.name == "" {
			a.name = employee.FullName
		}
		a.internal = a.internal || employee.InternalByContract()
	}

	if a.status == models.EmployeeStatusInactive {
		return a
	}

	if profile != nil && profile.IsActive() {
		a.profileID = profile.ID
		a.profileName = profile.Name
		a.hasProfile = true
		a.modules = profile.Permissions().Clone()
		for _, tag := range profile.Roles {
			a.capabilities[tag] = struct{}{}
		}
	}

	for i := range roles {
		role := &roles[i]
		if !role.IsActive() {
			continue
		}
		a.customRoles = append(a.customRoles, role.ID)
		for _, tag := range role.SystemRoles {
			a.capabilities[tag] = struct{}{}
		}
		for entity, ops := range role.Grants() {
			for _, op := range ops {
				if !a.entityGrants.Allows(entity, op) {
					a.entityGrants[entity] = append(a.entityGrants[entity], op)
				}
			}
		}
	}

	return a
}

func copyUint(v *uint) *uint {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func (a *EffectiveActor) UserID() uint        { return a.userID }
func (a *EffectiveActor) Email() string       { return a.email }
func (a *EffectiveActor) Name() string        { return a.name }
func (a *EffectiveActor) IsAdmin() bool       { return a.admin }
func (a *EffectiveActor) JobRole() string     { return a.jobRole }
func (a *EffectiveActor) Area() string        { return a.area }
func (a *EffectiveActor) IsInternal() bool    { return a.internal }
func (a *EffectiveActor) Status() string      { return a.status }
func (a *EffectiveActor) HasProfile() bool    { return a.hasProfile }
func (a *EffectiveActor) ProfileName() string { return a.profileName }

// WorkshopID 门店ID
func (a *EffectiveActor) WorkshopID() *uint {
	return copyUint(a.workshopID)
}

// EmployeeID 关联的员工ID
func (a *EffectiveActor) EmployeeID() (uint, bool) {
	return a.employeeID, a.hasEmployee
}

// ProfileID 生效的档案ID
func (a *EffectiveActor) ProfileID() (uint, bool) {
	return a.profileID, a.hasProfile
}

// CustomRoleIDs 生效的自定义角色ID
func (a *EffectiveActor) CustomRoleIDs() []uint {
	return append([]uint(nil), a.customRoles...)
}

// ModuleLevel 模块级别，无档案时为blocked
func (a *EffectiveActor) ModuleLevel(module string) models.PermissionLevel {
	return a.modules.Level(module)
}

// HasCapability 是否持有任一能力标签
func (a *EffectiveActor) HasCapability(tags ...string) bool {
	for _, tag := range tags {
		if _, ok := a.capabilities[tag]; ok {
			return true
		}
	}
	return false
}

// Capabilities 能力标签（排序）
func (a *EffectiveActor) Capabilities() []string {
	out := make([]string, 0, len(a.capabilities))
	for tag := range a.capabilities {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// GrantsEntity 自定义角色是否显式授予实体操作
func (a *EffectiveActor) GrantsEntity(entity string, op models.EntityOperation) bool {
	return a.entityGrants.Allows(entity, op)
}

// ========== 加载 ==========

// ActorService 从存储加载权限主体
type ActorService struct {
	stores *Stores
}

// NewActorService 创建主体加载服务
func NewActorService(stores *Stores) *ActorService {
	return &ActorService{stores: stores}
}

// Load 按用户ID加载。用户不存在视为未认证；档案或角色缺失视为无授权；其余存储错误向上返回
func (s *ActorService) Load(ctx context.Context, userID uint) (*EffectiveActor, error) {
	user, err := s.stores.Users.Get(ctx, userID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, apperrors.Unauthorized("用户不存在")
		}
		return nil, apperrors.Internal("加载用户失败", err)
	}

	employee, err := s.findEmployee(ctx, user)
	if err != nil {
		return nil, err
	}

	var profile *models.Profile
	var roles []models.CustomRole
	if employee != nil {
		if employee.ProfileID != nil {
			profile, err = s.stores.Profiles.Get(ctx, *employee.ProfileID)
			if err != nil && !store.IsNotFound(err) {
				return nil, apperrors.Internal("加载权限档案失败", err)
			}
		}

		for _, roleID := range employee.RoleIDs() {
			role, err := s.stores.CustomRoles.Get(ctx, roleID)
			if err != nil {
				if store.IsNotFound(err) {
					continue
				}
				return nil, apperrors.Internal("加载自定义角色失败", err)
			}
			roles = append(roles, *role)
		}
	}

	return MergeActor(user, employee, profile, roles), nil
}

// findEmployee 先按user_id，再按email查找关联员工
func (s *ActorService) findEmployee(ctx context.Context, user *models.User) (*models.Employee, error) {
	employees, err := s.stores.Employees.Filter(ctx, store.Filter{"user_id": user.ID}, store.ListOptions{Limit: 1})
	if err != nil {
		return nil, apperrors.Internal("加载员工信息失败", err)
	}
	if len(employees) == 0 && user.Email != "" {
		employees, err = s.stores.Employees.Filter(ctx, store.Filter{"email": user.Email}, store.ListOptions{Limit: 1})
		if err != nil {
			return nil, apperrors.Internal("加载员工信息失败", err)
		}
	}
	if len(employees) == 0 {
		return nil, nil
	}
	return &employees[0], nil
}

package services

import (
	"accessgov/internal/catalog"
	"accessgov/internal/models"
	"accessgov/internal/store"
	apperrors "accessgov/pkg/errors"
	"context"
	"sort"
	"strings"

	"gorm.io/datatypes"
)

// CustomRoleService 自定义角色管理
type CustomRoleService struct {
	stores  *Stores
	catalog *catalog.Catalog
	audit   *AuditService
}

// NewCustomRoleService 创建自定义角色服务
func NewCustomRoleService(stores *Stores, c *catalog.Catalog, audit *AuditService) *CustomRoleService {
	return &CustomRoleService{stores: stores, catalog: c, audit: audit}
}

// CustomRoleRequest 创建/更新自定义角色
type CustomRoleRequest struct {
	Name              string                              `json:"name" binding:"required,max=100"`
	Description       string                              `json:"description" binding:"max=255"`
	SystemRoles       []string                            `json:"system_roles"`
	EntityPermissions map[string][]models.EntityOperation `json:"entity_permissions"`
}

// Create 创建自定义角色
func (s *CustomRoleService) Create(ctx context.Context, performedBy string, req *CustomRoleRequest) (*models.CustomRole, error) {
	name := strings.TrimSpace(req.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	grants, err := s.normalizeGrants(req.EntityPermissions)
	if err != nil {
		return nil, err
	}

	existing, err := s.stores.CustomRoles.Count(ctx, store.Filter{"name": name})
	if err != nil {
		return nil, apperrors.Internal("查询自定义角色失败", err)
	}
	if existing > 0 {
		return nil, apperrors.Conflict("角色名称已存在")
	}

	role := &models.CustomRole{
		Name:              name,
		Description:       req.Description,
		SystemRoles:       datatypes.JSONSlice[string](req.SystemRoles),
		EntityPermissions: datatypes.NewJSONType(grants),
		Status:            models.RoleStatusActive,
		CreatedBy:         performedBy,
	}
	if err := s.stores.CustomRoles.Create(ctx, role); err != nil {
		if store.IsDuplicate(err) {
			return nil, apperrors.Conflict("角色名称已存在")
		}
		return nil, apperrors.Internal("创建自定义角色失败", err)
	}

	s.audit.Record(ctx, &models.AuditLogEntry{
		ActionType:  models.AuditCustomRoleCreated,
		PerformedBy: performedBy,
		TargetType:  models.TargetCustomRole,
		TargetID:    idString(role.ID),
		TargetName:  role.Name,
		Changes: datatypes.NewJSONType(models.AuditChanges{
			Before: map[string]interface{}{},
			After:  roleSnapshot(role),
		}),
	})
	return role, nil
}

// Get 根据ID获取
func (s *CustomRoleService) Get(ctx context.Context, id uint) (*models.CustomRole, error) {
	role, err := s.stores.CustomRoles.Get(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, apperrors.NotFound("自定义角色不存在")
		}
		return nil, apperrors.Internal("获取自定义角色失败", err)
	}
	return role, nil
}

// List 列表，status为空时返回全部
func (s *CustomRoleService) List(ctx context.Context, status string, page, pageSize int) ([]models.CustomRole, int64, error) {
	filter := store.Filter{}
	if status != "" {
		filter["status"] = status
	}
	total, err := s.stores.CustomRoles.Count(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Internal("查询自定义角色失败", err)
	}
	roles, err := s.stores.CustomRoles.Filter(ctx, filter, pageOptions("name ASC", page, pageSize))
	if err != nil {
		return nil, 0, apperrors.Internal("查询自定义角色失败", err)
	}
	return roles, total, nil
}

// Update 整体替换角色内容
func (s *CustomRoleService) Update(ctx context.Context, performedBy string, id uint, req *CustomRoleRequest) (*models.CustomRole, error) {
	role, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	grants, err := s.normalizeGrants(req.EntityPermissions)
	if err != nil {
		return nil, err
	}

	updated, err := s.stores.CustomRoles.Update(ctx, id, store.Fields{
		"name":               name,
		"description":        req.Description,
		"system_roles":       datatypes.JSONSlice[string](req.SystemRoles),
		"entity_permissions": datatypes.NewJSONType(grants),
	})
	if err != nil {
		if store.IsDuplicate(err) {
			return nil, apperrors.Conflict("角色名称已存在")
		}
		return nil, apperrors.Internal("更新自定义角色失败", err)
	}

	s.recordRoleChange(ctx, models.AuditCustomRoleUpdated, performedBy, role, updated)
	return updated, nil
}

// Deactivate 停用角色，员工上的引用保留
func (s *CustomRoleService) Deactivate(ctx context.Context, performedBy string, id uint) (*models.CustomRole, error) {
	role, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !role.IsActive() {
		return role, nil
	}

	updated, err := s.stores.CustomRoles.Update(ctx, id, store.Fields{"status": models.RoleStatusInactive})
	if err != nil {
		return nil, apperrors.Internal("停用自定义角色失败", err)
	}

	s.recordRoleChange(ctx, models.AuditCustomRoleDeactivated, performedBy, role, updated)
	return updated, nil
}

// AffectedEmployees 引用该角色的员工数。角色ID存放在JSON列中，只能逐条检查
func (s *CustomRoleService) AffectedEmployees(ctx context.Context, roleID uint) (int, error) {
	employees, err := s.stores.Employees.List(ctx, store.ListOptions{})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range employees {
		for _, id := range e.RoleIDs() {
			if id == roleID {
				count++
				break
			}
		}
	}
	return count, nil
}

func (s *CustomRoleService) recordRoleChange(ctx context.Context, action, performedBy string, before, after *models.CustomRole) {
	affected, _ := s.AffectedEmployees(ctx, after.ID)
	s.audit.Record(ctx, &models.AuditLogEntry{
		ActionType:  action,
		PerformedBy: performedBy,
		TargetType:  models.TargetCustomRole,
		TargetID:    idString(after.ID),
		TargetName:  after.Name,
		Changes: datatypes.NewJSONType(models.AuditChanges{
			Before: roleSnapshot(before),
			After:  roleSnapshot(after),
		}),
		AffectedUsersCount: affected,
	})
}

// normalizeGrants 校验实体和操作，去重并排序
func (s *CustomRoleService) normalizeGrants(grants map[string][]models.EntityOperation) (models.EntityPermissions, error) {
	out := make(models.EntityPermissions, len(grants))
	for entity, ops := range grants {
		if !s.catalog.HasEntity(entity) {
			return nil, apperrors.Validation("未知实体: " + entity)
		}
		seen := make(map[models.EntityOperation]struct{}, len(ops))
		normalized := make([]models.EntityOperation, 0, len(ops))
		for _, op := range ops {
			if !op.Valid() {
				return nil, apperrors.Validation("无效的实体操作: " + string(op))
			}
			if _, ok := seen[op]; ok {
				continue
			}
			seen[op] = struct{}{}
			normalized = append(normalized, op)
		}
		sort.Slice(normalized, func(i, j int) bool { return normalized[i] < normalized[j] })
		if len(normalized) > 0 {
			out[entity] = normalized
		}
	}
	return out, nil
}

func roleSnapshot(r *models.CustomRole) map[string]interface{} {
	return map[string]interface{}{
		"name":               r.Name,
		"status":             r.Status,
		"system_roles":       []string(r.SystemRoles),
		"entity_permissions": r.Grants(),
	}
}

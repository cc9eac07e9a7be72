package services

import (
	"accessgov/internal/catalog"
	"accessgov/internal/models"
	"accessgov/internal/store"
	apperrors "accessgov/pkg/errors"
	"accessgov/pkg/logger"
	"accessgov/pkg/pagination"
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// ProfileService 权限档案管理
type ProfileService struct {
	stores  *Stores
	catalog *catalog.Catalog
	audit   *AuditService
	log     *logrus.Logger
}

// NewProfileService 创建档案服务
func NewProfileService(stores *Stores, c *catalog.Catalog, audit *AuditService) *ProfileService {
	return &ProfileService{
		stores:  stores,
		catalog: c,
		audit:   audit,
		log:     logger.GetLogger(),
	}
}

// CreateProfileRequest 创建档案
type CreateProfileRequest struct {
	Name              string                            `json:"name" binding:"required,max=100"`
	Type              string                            `json:"type" binding:"omitempty,oneof=internal external"`
	Description       string                            `json:"description" binding:"max=255"`
	JobRoles          []string                          `json:"job_roles"`
	ModulePermissions map[string]models.PermissionLevel `json:"module_permissions"`
	Roles             []string                          `json:"roles"`
	Template          string                            `json:"template"` // 目录中的层级，作为模块权限的起点
}

// UpdateProfileRequest 更新档案，nil字段不修改
type UpdateProfileRequest struct {
	Name              *string                           `json:"name" binding:"omitempty,max=100"`
	Description       *string                           `json:"description" binding:"omitempty,max=255"`
	JobRoles          []string                          `json:"job_roles"`
	ModulePermissions map[string]models.PermissionLevel `json:"module_permissions"`
	Roles             []string                          `json:"roles"`
}

// ProfileListQuery 档案列表条件
type ProfileListQuery struct {
	Type     string `form:"type"`
	Status   string `form:"status"`
	Keyword  string `form:"keyword"`
	Page     int    `form:"-"`
	PageSize int    `form:"-"`
}

// ========== 基础CRUD方法 ==========

// Create 创建档案
func (s *ProfileService) Create(ctx context.Context, performedBy string, req *CreateProfileRequest) (*models.Profile, error) {
	name := strings.TrimSpace(req.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	profileType := req.Type
	if profileType == "" {
		profileType = models.ProfileTypeInternal
	}
	if !models.IsValidProfileType(profileType) {
		return nil, apperrors.Validation("无效的档案类型")
	}

	var perms models.ModulePermissions
	if req.Template != "" {
		if _, ok := s.catalog.Tier(req.Template); !ok {
			return nil, apperrors.Validation("模板不存在: " + req.Template)
		}
		perms = s.catalog.DefaultsFor(req.Template)
	} else {
		perms = s.catalog.DefaultsFor("")
	}
	if err := s.validateModules(req.ModulePermissions); err != nil {
		return nil, err
	}
	for module, level := range req.ModulePermissions {
		perms[module] = level
	}

	roles := req.Roles
	if roles == nil && req.Template != "" {
		roles = s.catalog.RolesFor(req.Template)
	}

	if err := s.ensureUniqueName(ctx, name, profileType, 0); err != nil {
		return nil, err
	}

	profile := &models.Profile{
		Name:              name,
		Type:              profileType,
		Description:       req.Description,
		JobRoles:          datatypes.JSONSlice[string](normalizeJobRoles(req.JobRoles)),
		ModulePermissions: datatypes.NewJSONType(perms),
		Roles:             datatypes.JSONSlice[string](roles),
		Status:            models.ProfileStatusActive,
		Template:          req.Template,
		CreatedBy:         performedBy,
	}
	if err := s.stores.Profiles.Create(ctx, profile); err != nil {
		if store.IsDuplicate(err) {
			return nil, apperrors.Conflict("同类型下档案名称已存在")
		}
		return nil, apperrors.Internal("创建档案失败", err)
	}

	s.audit.Record(ctx, &models.AuditLogEntry{
		ActionType:  models.AuditProfileCreated,
		PerformedBy: performedBy,
		TargetType:  models.TargetProfile,
		TargetID:    idString(profile.ID),
		TargetName:  profile.Name,
		Changes: datatypes.NewJSONType(models.AuditChanges{
			Before: map[string]interface{}{},
			After:  profileSnapshot(profile),
		}),
	})
	return profile, nil
}

// Get 根据ID获取档案
func (s *ProfileService) Get(ctx context.Context, id uint) (*models.Profile, error) {
	profile, err := s.stores.Profiles.Get(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, apperrors.NotFound("档案不存在")
		}
		return nil, apperrors.Internal("获取档案失败", err)
	}
	return profile, nil
}

// List 档案列表
func (s *ProfileService) List(ctx context.Context, q ProfileListQuery) ([]models.Profile, int64, error) {
	filter := store.Filter{}
	if q.Type != "" {
		filter["type"] = q.Type
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}

	if keyword := strings.TrimSpace(q.Keyword); keyword != "" {
		filter["keyword"] = store.Contains{Columns: []string{"name", "description"}, Term: keyword}
	}

	total, err := s.stores.Profiles.Count(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Internal("查询档案失败", err)
	}
	profiles, err := s.stores.Profiles.Filter(ctx, filter, pageOptions("name ASC", q.Page, q.PageSize))
	if err != nil {
		return nil, 0, apperrors.Internal("查询档案失败", err)
	}
	return profiles, total, nil
}

// Update 更新档案
func (s *ProfileService) Update(ctx context.Context, performedBy string, id uint, req *UpdateProfileRequest) (*models.Profile, error) {
	profile, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := store.Fields{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		if name != profile.Name {
			if err := s.ensureUniqueName(ctx, name, profile.Type, profile.ID); err != nil {
				return nil, err
			}
			fields["name"] = name
		}
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.JobRoles != nil {
		fields["job_roles"] = datatypes.JSONSlice[string](normalizeJobRoles(req.JobRoles))
	}
	if req.ModulePermissions != nil {
		if err := s.validateModules(req.ModulePermissions); err != nil {
			return nil, err
		}
		perms := profile.Permissions().Clone()
		for module, level := range req.ModulePermissions {
			perms[module] = level
		}
		fields["module_permissions"] = datatypes.NewJSONType(perms)
	}
	if req.Roles != nil {
		fields["roles"] = datatypes.JSONSlice[string](req.Roles)
	}
	if len(fields) == 0 {
		return profile, nil
	}

	updated, err := s.stores.Profiles.Update(ctx, id, fields)
	if err != nil {
		if store.IsDuplicate(err) {
			return nil, apperrors.Conflict("同类型下档案名称已存在")
		}
		return nil, apperrors.Internal("更新档案失败", err)
	}

	s.recordProfileChange(ctx, models.AuditProfileUpdated, performedBy, profile, updated, "")
	return updated, nil
}

// Deactivate 停用档案，引用它的员工保留profile_id，判定时视为无授权
func (s *ProfileService) Deactivate(ctx context.Context, performedBy string, id uint) (*models.Profile, error) {
	return s.setStatus(ctx, performedBy, id, models.ProfileStatusInactive, models.AuditProfileDeactivated)
}

// Activate 重新启用档案
func (s *ProfileService) Activate(ctx context.Context, performedBy string, id uint) (*models.Profile, error) {
	return s.setStatus(ctx, performedBy, id, models.ProfileStatusActive, models.AuditProfileActivated)
}

// Delete 删除档案，仅限没有员工引用的非系统档案
func (s *ProfileService) Delete(ctx context.Context, performedBy string, id uint) error {
	profile, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if profile.IsSystem {
		return apperrors.Forbidden("系统档案不允许删除")
	}

	referenced, err := s.stores.Employees.Count(ctx, store.Filter{"profile_id": id})
	if err != nil {
		return apperrors.Internal("统计档案引用失败", err)
	}
	if referenced > 0 {
		return apperrors.Conflict("档案已被员工引用，只能停用")
	}

	if err := s.stores.Profiles.Delete(ctx, id); err != nil {
		if store.IsNotFound(err) {
			return apperrors.NotFound("档案不存在")
		}
		return apperrors.Internal("删除档案失败", err)
	}

	s.audit.Record(ctx, &models.AuditLogEntry{
		ActionType:  models.AuditProfileDeleted,
		PerformedBy: performedBy,
		TargetType:  models.TargetProfile,
		TargetID:    idString(profile.ID),
		TargetName:  profile.Name,
		Changes: datatypes.NewJSONType(models.AuditChanges{
			Before: profileSnapshot(profile),
			After:  map[string]interface{}{"deleted": true},
		}),
	})
	return nil
}

// Templates 可用的档案模板
func (s *ProfileService) Templates() []catalog.Tier {
	return s.catalog.Tiers
}

func (s *ProfileService) setStatus(ctx context.Context, performedBy string, id uint, status, action string) (*models.Profile, error) {
	profile, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile.Status == status {
		return profile, nil
	}
	if profile.IsSystem && status == models.ProfileStatusInactive {
		return nil, apperrors.Forbidden("系统档案不允许停用")
	}

	updated, err := s.stores.Profiles.Update(ctx, id, store.Fields{"status": status})
	if err != nil {
		return nil, apperrors.Internal("更新档案状态失败", err)
	}

	s.recordProfileChange(ctx, action, performedBy, profile, updated, "")
	return updated, nil
}

func (s *ProfileService) recordProfileChange(ctx context.Context, action, performedBy string, before, after *models.Profile, notes string) {
	affected, err := s.stores.Employees.Count(ctx, store.Filter{"profile_id": after.ID})
	if err != nil {
		s.log.WithError(err).WithField("profile_id", after.ID).Warn("统计受影响员工失败")
	}
	s.audit.Record(ctx, &models.AuditLogEntry{
		ActionType:  action,
		PerformedBy: performedBy,
		TargetType:  models.TargetProfile,
		TargetID:    idString(after.ID),
		TargetName:  after.Name,
		Changes: datatypes.NewJSONType(models.AuditChanges{
			Before: profileSnapshot(before),
			After:  profileSnapshot(after),
		}),
		AffectedUsersCount: int(affected),
		Notes:              notes,
	})
}

func (s *ProfileService) ensureUniqueName(ctx context.Context, name, profileType string, selfID uint) error {
	existing, err := s.stores.Profiles.Filter(ctx, store.Filter{"name": name, "type": profileType}, store.ListOptions{Limit: 2})
	if err != nil {
		return apperrors.Internal("查询档案失败", err)
	}
	for _, p := range existing {
		if p.ID != selfID {
			return apperrors.Conflict("同类型下档案名称已存在")
		}
	}
	return nil
}

func (s *ProfileService) validateModules(perms map[string]models.PermissionLevel) error {
	for module, level := range perms {
		if _, ok := s.catalog.Module(module); !ok {
			return apperrors.Validation("未知模块: " + module)
		}
		if !level.Valid() {
			return apperrors.Validation("无效的权限级别: " + string(level))
		}
	}
	return nil
}

// ========== 辅助函数 ==========

func validateName(name string) error {
	if name == "" {
		return apperrors.Validation("名称不能为空")
	}
	if utf8.RuneCountInString(name) > 100 {
		return apperrors.Validation("名称长度不能超过100个字符")
	}
	return nil
}

func normalizeJobRoles(jobRoles []string) []string {
	out := make([]string, 0, len(jobRoles))
	seen := make(map[string]struct{}, len(jobRoles))
	for _, role := range jobRoles {
		normalized := catalog.NormalizeJobRole(role)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func profileSnapshot(p *models.Profile) map[string]interface{} {
	return map[string]interface{}{
		"name":               p.Name,
		"type":               p.Type,
		"status":             p.Status,
		"job_roles":          []string(p.JobRoles),
		"module_permissions": p.Permissions(),
		"roles":              []string(p.Roles),
	}
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// pageOptions 排序加分页窗口
func pageOptions(order string, page, pageSize int) store.ListOptions {
	offset, limit := pagination.Window(page, pageSize)
	return store.ListOptions{Order: order, Limit: limit, Offset: offset}
}

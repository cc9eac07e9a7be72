package services

import (
	"accessgov/internal/catalog"
	"accessgov/internal/models"
	"accessgov/internal/store"
	apperrors "accessgov/pkg/errors"
	"accessgov/pkg/logger"
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// AutoAssignCreator 自动创建档案时记录的创建人
const AutoAssignCreator = "auto-assign"

// AssignResult 自动分配结果
type AssignResult struct {
	ProfileID    uint   `json:"profile_id"`
	ProfileName  string `json:"profile_name"`
	Created      bool   `json:"created"`       // 本次新建了档案
	AutoAssigned bool   `json:"auto_assigned"` // 本次修改了员工的档案
}

// AutoAssignService 按岗位为员工分配默认档案
type AutoAssignService struct {
	stores  *Stores
	catalog *catalog.Catalog
	audit   *AuditService
	log     *logrus.Logger
}

// NewAutoAssignService 创建自动分配服务
func NewAutoAssignService(stores *Stores, c *catalog.Catalog, audit *AuditService) *AutoAssignService {
	return &AutoAssignService{
		stores:  stores,
		catalog: c,
		audit:   audit,
		log:     logger.GetLogger(),
	}
}

// AssignDefaultProfile 为员工分配岗位对应的默认档案。
// 员工已有档案且未指定force时不做任何修改，保留人工设置。
func (s *AutoAssignService) AssignDefaultProfile(ctx context.Context, performedBy string, employeeID uint, jobRole string, force bool) (*AssignResult, error) {
	if employeeID == 0 {
		return nil, apperrors.Validation("employee_id不能为空")
	}
	if catalog.NormalizeJobRole(jobRole) == "" {
		return nil, apperrors.Validation("job_role不能为空")
	}

	employee, err := s.stores.Employees.Get(ctx, employeeID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, apperrors.NotFound("员工不存在")
		}
		return nil, apperrors.Internal("获取员工信息失败", err)
	}

	if employee.ProfileID != nil && !force {
		result := &AssignResult{ProfileID: *employee.ProfileID}
		if profile, err := s.stores.Profiles.Get(ctx, *employee.ProfileID); err == nil {
			result.ProfileName = profile.Name
		}
		return result, nil
	}

	profileName, tier := s.catalog.ProfileNameFor(jobRole)
	profile, created, err := s.findOrCreateProfile(ctx, profileName, tier, jobRole)
	if err != nil {
		return nil, err
	}

	result := &AssignResult{ProfileID: profile.ID, ProfileName: profile.Name, Created: created}
	if employee.ProfileID != nil && *employee.ProfileID == profile.ID {
		return result, nil
	}

	if _, err := s.stores.Employees.Update(ctx, employee.ID, store.Fields{"profile_id": profile.ID}); err != nil {
		if store.IsNotFound(err) {
			return nil, apperrors.NotFound("员工不存在")
		}
		return nil, apperrors.Internal("更新员工档案失败", err)
	}
	result.AutoAssigned = true

	s.log.WithFields(logrus.Fields{
		"employee_id": employee.ID,
		"job_role":    jobRole,
		"profile_id":  profile.ID,
		"created":     created,
	}).Info("已按岗位分配默认档案")

	action := models.AuditProfileUpdated
	if created {
		action = models.AuditProfileCreated
	}
	s.audit.Record(ctx, &models.AuditLogEntry{
		ActionType:  action,
		PerformedBy: performedBy,
		TargetType:  models.TargetEmployee,
		TargetID:    strconv.FormatUint(uint64(employee.ID), 10),
		TargetName:  employee.FullName,
		Changes: datatypes.NewJSONType(models.AuditChanges{
			Before: map[string]interface{}{"profile_id": employee.ProfileID, "job_role": employee.JobRole},
			After:  map[string]interface{}{"profile_id": profile.ID, "profile_name": profile.Name},
		}),
		AffectedUsersCount: 1,
		Notes:              fmt.Sprintf("按岗位 %s 自动分配档案", jobRole),
	})

	return result, nil
}

// findOrCreateProfile 按名称查找内部档案，不存在时按目录默认值创建。
// 并发创建撞到唯一索引时重新读取胜出的记录。
func (s *AutoAssignService) findOrCreateProfile(ctx context.Context, name, tier, jobRole string) (*models.Profile, bool, error) {
	existing, err := s.findProfile(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if !existing.IsActive() {
			s.log.WithField("profile_id", existing.ID).Warn("默认档案已停用，分配后不会产生授权")
		}
		return existing, false, nil
	}

	jobRoles := s.catalog.JobRolesFor(name)
	if len(jobRoles) == 0 {
		jobRoles = []string{catalog.NormalizeJobRole(jobRole)}
	}
	profile := &models.Profile{
		Name:              name,
		Type:              models.ProfileTypeInternal,
		Description:       "岗位默认档案",
		JobRoles:          datatypes.JSONSlice[string](jobRoles),
		ModulePermissions: datatypes.NewJSONType(s.catalog.DefaultsFor(tier)),
		Roles:             datatypes.JSONSlice[string](s.catalog.RolesFor(tier)),
		Status:            models.ProfileStatusActive,
		Template:          tier,
		CreatedBy:         AutoAssignCreator,
	}

	if err := s.stores.Profiles.Create(ctx, profile); err != nil {
		if store.IsDuplicate(err) {
			winner, findErr := s.findProfile(ctx, name)
			if findErr == nil && winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, apperrors.Internal("创建默认档案失败", err)
	}
	return profile, true, nil
}

// findProfile 同名多条时取ID最小的一条
func (s *AutoAssignService) findProfile(ctx context.Context, name string) (*models.Profile, error) {
	profiles, err := s.stores.Profiles.Filter(ctx,
		store.Filter{"name": name, "type": models.ProfileTypeInternal},
		store.ListOptions{Order: "id ASC", Limit: 1})
	if err != nil {
		return nil, apperrors.Internal("查询档案失败", err)
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	return &profiles[0], nil
}

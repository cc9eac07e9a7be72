package services

import (
	"accessgov/internal/models"
	"accessgov/internal/store"
	apperrors "accessgov/pkg/errors"
	"accessgov/pkg/logger"
	"accessgov/pkg/metrics"
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// ApprovalPage 审批权限变更所需的页面权限
const ApprovalPage = "admin.profiles"

// RequestChangePage 提交权限变更所需的页面权限
const RequestChangePage = "rbac.request_change"

// PermissionRequestService 权限变更申请（pending -> approved | rejected）
type PermissionRequestService struct {
	stores     *Stores
	resolver   *Resolver
	audit      *AuditService
	notifier   Notifier
	bestEffort *BestEffort
	approvers  []string
	now        func() time.Time
	log        *logrus.Logger
}

// NewPermissionRequestService 创建申请服务
func NewPermissionRequestService(stores *Stores, resolver *Resolver, audit *AuditService, notifier Notifier, bestEffort *BestEffort, approvers []string) *PermissionRequestService {
	if bestEffort == nil {
		bestEffort = NewBestEffort(nil)
	}
	return &PermissionRequestService{
		stores:     stores,
		resolver:   resolver,
		audit:      audit,
		notifier:   notifier,
		bestEffort: bestEffort,
		approvers:  approvers,
		now:        time.Now,
		log:        logger.GetLogger(),
	}
}

// SubmitRequest 提交变更申请
type SubmitRequest struct {
	EmployeeID             uint   `json:"employee_id" binding:"required"`
	ChangeType             string `json:"change_type" binding:"required,oneof=profile_change custom_roles_change status_change"`
	RequestedProfileID     *uint  `json:"requested_profile_id"`
	RequestedCustomRoleIDs []uint `json:"requested_custom_role_ids"`
	RequestedStatus        string `json:"requested_status"`
	Justification          string `json:"justification" binding:"required,max=1000"`
}

// RequestListQuery 申请列表条件
type RequestListQuery struct {
	Status     string `form:"status"`
	ChangeType string `form:"change_type"`
	EmployeeID uint   `form:"employee_id"`
	Page       int    `form:"-"`
	PageSize   int    `form:"-"`
}

// ResolveResult 审批结果
type ResolveResult struct {
	Approved bool                            `json:"approved"`
	Message  string                          `json:"message"`
	Request  *models.PermissionChangeRequest `json:"request"`
}

// Submit 提交申请，当前值在提交时快照
func (s *PermissionRequestService) Submit(ctx context.Context, actor *EffectiveActor, req *SubmitRequest) (*models.PermissionChangeRequest, error) {
	if req.EmployeeID == 0 {
		return nil, apperrors.Validation("employee_id不能为空")
	}
	if !models.IsValidChangeType(req.ChangeType) {
		return nil, apperrors.Validation("无效的变更类型")
	}
	if actor == nil {
		return nil, apperrors.Unauthorized("未登录")
	}
	if !s.resolver.Allowed(actor, PageRequest(RequestChangePage)) {
		return nil, apperrors.Forbidden("无权提交权限变更申请")
	}

	employee, err := s.stores.Employees.Get(ctx, req.EmployeeID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, apperrors.NotFound("员工不存在")
		}
		return nil, apperrors.Internal("获取员工信息失败", err)
	}

	request := &models.PermissionChangeRequest{
		EmployeeID:    employee.ID,
		EmployeeName:  employee.FullName,
		ChangeType:    req.ChangeType,
		Status:        models.RequestStatusPending,
		Justification: req.Justification,
		RequestedBy:   actor.Email(),
		RequestedByID: actor.UserID(),
	}
	if err := s.fillChange(ctx, request, employee, req); err != nil {
		return nil, err
	}

	pending, err := s.stores.Requests.Count(ctx, store.Filter{
		"employee_id": employee.ID,
		"change_type": req.ChangeType,
		"status":      models.RequestStatusPending,
	})
	if err != nil {
		return nil, apperrors.Internal("查询待处理申请失败", err)
	}
	if pending > 0 {
		return nil, apperrors.Conflict("该员工已有同类型的待处理申请")
	}

	if err := s.stores.Requests.Create(ctx, request); err != nil {
		// 并发提交时由部分唯一索引兜底
		if store.IsDuplicate(err) {
			return nil, apperrors.Conflict("该员工已有同类型的待处理申请")
		}
		return nil, apperrors.Internal("创建申请失败", err)
	}
	metrics.PermissionRequestTransitions.WithLabelValues(models.RequestStatusPending).Inc()

	if len(s.approvers) > 0 {
		s.notify(ctx, &Notification{
			Type:       NotificationRequestSubmitted,
			Subject:    fmt.Sprintf("新的权限变更申请：%s", employee.FullName),
			Body:       fmt.Sprintf("%s 申请修改 %s 的%s。理由：%s", actor.Email(), employee.FullName, request.ChangedField(), request.Justification),
			Recipients: s.approvers,
			Metadata:   map[string]interface{}{"request_id": request.ID, "employee_id": employee.ID},
		})
	}
	return request, nil
}

// fillChange 校验目标值并写入当前值快照
func (s *PermissionRequestService) fillChange(ctx context.Context, request *models.PermissionChangeRequest, employee *models.Employee, req *SubmitRequest) error {
	switch req.ChangeType {
	case models.ChangeTypeProfile:
		if req.RequestedProfileID == nil {
			return apperrors.Validation("requested_profile_id不能为空")
		}
		profile, err := s.stores.Profiles.Get(ctx, *req.RequestedProfileID)
		if err != nil {
			if store.IsNotFound(err) {
				return apperrors.NotFound("目标档案不存在")
			}
			return apperrors.Internal("获取档案失败", err)
		}
		if !profile.IsActive() {
			return apperrors.Validation("目标档案已停用")
		}
		if employee.ProfileID != nil && *employee.ProfileID == profile.ID {
			return apperrors.Validation("申请的档案与当前档案相同")
		}
		request.CurrentProfileID = copyUint(employee.ProfileID)
		request.RequestedProfileID = copyUint(req.RequestedProfileID)

	case models.ChangeTypeCustomRoles:
		if req.RequestedCustomRoleIDs == nil {
			return apperrors.Validation("requested_custom_role_ids不能为空")
		}
		for _, id := range req.RequestedCustomRoleIDs {
			role, err := s.stores.CustomRoles.Get(ctx, id)
			if err != nil {
				if store.IsNotFound(err) {
					return apperrors.NotFound(fmt.Sprintf("自定义角色 %d 不存在", id))
				}
				return apperrors.Internal("获取自定义角色失败", err)
			}
			if !role.IsActive() {
				return apperrors.Validation(fmt.Sprintf("自定义角色 %s 已停用", role.Name))
			}
		}
		request.CurrentCustomRoleIDs = append(datatypes.JSONSlice[uint]{}, employee.RoleIDs()...)
		request.RequestedCustomRoleIDs = append(datatypes.JSONSlice[uint]{}, req.RequestedCustomRoleIDs...)

	case models.ChangeTypeStatus:
		if !models.IsValidEmployeeStatus(req.RequestedStatus) {
			return apperrors.Validation("无效的员工状态")
		}
		if employee.UserStatus == req.RequestedStatus {
			return apperrors.Validation("申请的状态与当前状态相同")
		}
		request.CurrentStatus = employee.UserStatus
		request.RequestedStatus = req.RequestedStatus
	}
	return nil
}

// Resolve 审批申请。先检查权限，再以条件更新抢占状态流转，
// 只有抢占成功的调用才会修改员工记录。
func (s *PermissionRequestService) Resolve(ctx context.Context, actor *EffectiveActor, requestID uint, approve bool, feedback string) (*ResolveResult, error) {
	if requestID == 0 {
		return nil, apperrors.Validation("request_id不能为空")
	}
	if actor == nil || !s.resolver.Allowed(actor, PageRequest(ApprovalPage)) {
		return nil, apperrors.Unauthorized("无权审批权限变更申请")
	}

	request, err := s.stores.Requests.Get(ctx, requestID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, apperrors.NotFound("申请不存在")
		}
		return nil, apperrors.Internal("获取申请失败", err)
	}
	if !request.IsPending() {
		return nil, apperrors.Conflict("申请已处理")
	}

	now := s.now()
	claimed, err := s.stores.Requests.UpdateIf(ctx, request.ID,
		store.Filter{"status": models.RequestStatusPending},
		store.Fields(request.ResolutionFields(approve, actor.Email(), feedback, now)))
	if err != nil {
		return nil, apperrors.Internal("更新申请状态失败", err)
	}
	if !claimed {
		return nil, apperrors.Conflict("申请已处理")
	}

	status := models.RequestStatusRejected
	if approve {
		status = models.RequestStatusApproved
	}
	metrics.PermissionRequestTransitions.WithLabelValues(status).Inc()

	log := s.log.WithFields(logrus.Fields{
		"request_id":  request.ID,
		"employee_id": request.EmployeeID,
		"change_type": request.ChangeType,
		"status":      status,
		"resolved_by": actor.Email(),
	})

	if approve {
		if applyErr := s.apply(ctx, actor, request, feedback, now); applyErr != nil {
			log.WithError(applyErr).Error("申请已批准，但变更写入员工记录失败")
			s.bestEffort.Do("record_apply_error", logrus.Fields{"request_id": request.ID}, func() error {
				_, err := s.stores.Requests.Update(ctx, request.ID, store.Fields{
					"apply_error": models.TruncateRunes(applyErr.Error(), models.ApplyErrorMaxLen),
				})
				return err
			})
			return nil, apperrors.Internal("申请已批准，但变更未能生效", applyErr)
		}
	}
	log.Info("权限变更申请已处理")

	s.notifyRequester(ctx, request, approve, feedback)

	resolved, err := s.stores.Requests.Get(ctx, request.ID)
	if err != nil {
		// 重新读取失败时按本次写入的字段返回
		resolved = request
		resolved.Status = status
		resolved.ApprovedBy = actor.Email()
		resolved.Feedback = feedback
		resolved.ResolvedAt = &now
		if !approve {
			resolved.RejectionReason = feedback
		}
	}

	message := "申请已拒绝"
	if approve {
		message = "申请已批准，变更已生效"
	}
	return &ResolveResult{Approved: approve, Message: message, Request: resolved}, nil
}

// apply 把申请的变更和一条内联历史一起写入员工记录，然后记审计日志
func (s *PermissionRequestService) apply(ctx context.Context, actor *EffectiveActor, request *models.PermissionChangeRequest, feedback string, at time.Time) error {
	employee, err := s.stores.Employees.Get(ctx, request.EmployeeID)
	if err != nil {
		return err
	}

	field := request.ChangedField()
	var value interface{}
	switch request.ChangeType {
	case models.ChangeTypeProfile:
		value = request.RequestedProfileID
	case models.ChangeTypeCustomRoles:
		value = append(datatypes.JSONSlice[uint]{}, request.RequestedCustomRoleIDs...)
	case models.ChangeTypeStatus:
		value = request.RequestedStatus
	default:
		return fmt.Errorf("未知的变更类型: %s", request.ChangeType)
	}

	history := append(datatypes.JSONSlice[models.EmployeeHistoryEntry]{}, employee.AuditHistory...)
	history = append(history, models.EmployeeHistoryEntry{
		Action:      "permission_change_approved",
		Field:       field,
		Before:      request.CurrentValue(),
		After:       request.RequestedValue(),
		PerformedBy: actor.Email(),
		RequestID:   request.ID,
		Notes:       feedback,
		At:          at,
	})

	if _, err := s.stores.Employees.Update(ctx, employee.ID, store.Fields{
		field:           value,
		"audit_history": history,
	}); err != nil {
		return err
	}

	s.audit.Record(ctx, &models.AuditLogEntry{
		ActionType:  models.AuditUserPermissionChanged,
		PerformedBy: actor.Email(),
		TargetType:  models.TargetEmployee,
		TargetID:    idString(employee.ID),
		TargetName:  employee.FullName,
		Changes: datatypes.NewJSONType(models.AuditChanges{
			Before: map[string]interface{}{field: request.CurrentValue()},
			After:  map[string]interface{}{field: request.RequestedValue()},
		}),
		AffectedUsersCount: 1,
		Notes:              fmt.Sprintf("申请 #%d：%s", request.ID, request.Justification),
	})
	return nil
}

func (s *PermissionRequestService) notifyRequester(ctx context.Context, request *models.PermissionChangeRequest, approve bool, feedback string) {
	if request.RequestedBy == "" {
		return
	}
	outcome := "已被拒绝"
	if approve {
		outcome = "已被批准"
	}
	body := fmt.Sprintf("你提交的关于 %s 的权限变更申请%s。", request.EmployeeName, outcome)
	if feedback != "" {
		body += "审批意见：" + feedback
	}
	s.notify(ctx, &Notification{
		Type:       NotificationRequestResolved,
		Subject:    "权限变更申请" + outcome,
		Body:       body,
		Recipients: []string{request.RequestedBy},
		Metadata:   map[string]interface{}{"request_id": request.ID, "approved": approve},
	})
}

func (s *PermissionRequestService) notify(ctx context.Context, n *Notification) {
	if s.notifier == nil {
		return
	}
	s.bestEffort.Do("notification", logrus.Fields{"type": n.Type, "recipients": n.Recipients}, func() error {
		return s.notifier.Notify(ctx, n)
	})
}

// ========== 查询 ==========

// Get 获取申请，仅审批人或申请人本人可见
func (s *PermissionRequestService) Get(ctx context.Context, actor *EffectiveActor, id uint) (*models.PermissionChangeRequest, error) {
	request, err := s.stores.Requests.Get(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, apperrors.NotFound("申请不存在")
		}
		return nil, apperrors.Internal("获取申请失败", err)
	}
	if actor == nil {
		return nil, apperrors.Unauthorized("未登录")
	}
	if request.RequestedByID != actor.UserID() && !s.resolver.Allowed(actor, PageRequest(ApprovalPage)) {
		return nil, apperrors.Forbidden("无权查看该申请")
	}
	return request, nil
}

// List 按条件列出申请，最新的在前
func (s *PermissionRequestService) List(ctx context.Context, q RequestListQuery) ([]models.PermissionChangeRequest, int64, error) {
	filter := store.Filter{}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.ChangeType != "" {
		filter["change_type"] = q.ChangeType
	}
	if q.EmployeeID != 0 {
		filter["employee_id"] = q.EmployeeID
	}
	return s.list(ctx, filter, q.Page, q.PageSize)
}

// ListMine 当前用户提交的申请
func (s *PermissionRequestService) ListMine(ctx context.Context, actor *EffectiveActor, page, pageSize int) ([]models.PermissionChangeRequest, int64, error) {
	return s.list(ctx, store.Filter{"requested_by_id": actor.UserID()}, page, pageSize)
}

// Pending 提交时间早于before的待处理申请
func (s *PermissionRequestService) Pending(ctx context.Context, before time.Time) ([]models.PermissionChangeRequest, error) {
	requests, err := s.stores.Requests.Filter(ctx, store.Filter{"status": models.RequestStatusPending}, store.ListOptions{Order: "created_at ASC"})
	if err != nil {
		return nil, apperrors.Internal("查询待处理申请失败", err)
	}
	stale := requests[:0]
	for _, r := range requests {
		if r.CreatedAt.Before(before) {
			stale = append(stale, r)
		}
	}
	return stale, nil
}

func (s *PermissionRequestService) list(ctx context.Context, filter store.Filter, page, pageSize int) ([]models.PermissionChangeRequest, int64, error) {
	total, err := s.stores.Requests.Count(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Internal("查询申请失败", err)
	}
	requests, err := s.stores.Requests.Filter(ctx, filter, pageOptions("created_at DESC", page, pageSize))
	if err != nil {
		return nil, 0, apperrors.Internal("查询申请失败", err)
	}
	return requests, total, nil
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// PermissionChangeRequest 权限变更申请
type PermissionChangeRequest struct {
	BaseModel
	EmployeeID             uint                      `gorm:"not null;index;uniqueIndex:idx_pending_request,where:status = 'pending'" json:"employee_id"`
	EmployeeName           string                    `gorm:"size:100" json:"employee_name"`
	ChangeType             string                    `gorm:"size:30;not null;uniqueIndex:idx_pending_request" json:"change_type"` // 同一员工同类型最多一条待审批
	CurrentProfileID       *uint                     `json:"current_profile_id"`
	RequestedProfileID     *uint                     `json:"requested_profile_id"`
	CurrentCustomRoleIDs   datatypes.JSONSlice[uint] `gorm:"type:jsonb" json:"current_custom_role_ids"`
	RequestedCustomRoleIDs datatypes.JSONSlice[uint] `gorm:"type:jsonb" json:"requested_custom_role_ids"`
	CurrentStatus          string                    `gorm:"size:20" json:"current_status"`
	RequestedStatus        string                    `gorm:"size:20" json:"requested_status"`
	Status                 string                    `gorm:"size:20;not null;default:'pending';index" json:"status"` // pending/approved/rejected
	Justification          string                    `gorm:"size:1000" json:"justification"`
	RequestedBy            string                    `gorm:"size:100;index" json:"requested_by"`
	RequestedByID          uint                      `json:"requested_by_id"`
	ApprovedBy             string                    `gorm:"size:100" json:"approved_by,omitempty"`
	RejectionReason        string                    `gorm:"size:1000" json:"rejection_reason,omitempty"`
	Feedback               string                    `gorm:"size:1000" json:"feedback,omitempty"`
	ResolvedAt             *time.Time                `json:"resolved_at,omitempty"`
	ApplyError             string                    `gorm:"size:500" json:"apply_error,omitempty"` // 审批通过但变更未能写入员工记录时的错误
}

// TableName 指定表名
func (PermissionChangeRequest) TableName() string {
	return "permission_change_requests"
}

// ApplyErrorMaxLen apply_error列宽
const ApplyErrorMaxLen = 500

// 申请状态常量
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// 变更类型常量
const (
	ChangeTypeProfile     = "profile_change"
	ChangeTypeCustomRoles = "custom_roles_change"
	ChangeTypeStatus      = "status_change"
)

// IsValidChangeType 检查变更类型
func IsValidChangeType(t string) bool {
	switch t {
	case ChangeTypeProfile, ChangeTypeCustomRoles, ChangeTypeStatus:
		return true
	default:
		return false
	}
}

// IsPending 是否待审批
func (r *PermissionChangeRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// ChangedField 变更涉及的员工字段
func (r *PermissionChangeRequest) ChangedField() string {
	switch r.ChangeType {
	case ChangeTypeProfile:
		return "profile_id"
	case ChangeTypeCustomRoles:
		return "custom_role_ids"
	case ChangeTypeStatus:
		return "user_status"
	default:
		return ""
	}
}

// CurrentValue 提交时的字段快照
func (r *PermissionChangeRequest) CurrentValue() interface{} {
	switch r.ChangeType {
	case ChangeTypeProfile:
		return r.CurrentProfileID
	case ChangeTypeCustomRoles:
		return []uint(r.CurrentCustomRoleIDs)
	default:
		return r.CurrentStatus
	}
}

// RequestedValue 申请的目标值
func (r *PermissionChangeRequest) RequestedValue() interface{} {
	switch r.ChangeType {
	case ChangeTypeProfile:
		return r.RequestedProfileID
	case ChangeTypeCustomRoles:
		return []uint(r.RequestedCustomRoleIDs)
	default:
		return r.RequestedStatus
	}
}

// ResolutionFields 终态流转需要写入的字段
func (r *PermissionChangeRequest) ResolutionFields(approve bool, resolvedBy, feedback string, at time.Time) map[string]interface{} {
	fields := map[string]interface{}{
		"approved_by": resolvedBy,
		"feedback":    feedback,
		"resolved_at": at,
	}
	if approve {
		fields["status"] = RequestStatusApproved
	} else {
		fields["status"] = RequestStatusRejected
		fields["rejection_reason"] = feedback
	}
	return fields
}

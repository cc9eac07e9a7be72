package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLogEntry 权限审计日志，只追加不修改
type AuditLogEntry struct {
	ID                 uint                             `gorm:"primarykey" json:"id"`
	ActionType         string                           `gorm:"size:50;not null;index" json:"action_type"`
	PerformedBy        string                           `gorm:"size:100;index" json:"performed_by"`
	TargetType         string                           `gorm:"size:50;index" json:"target_type"`
	TargetID           string                           `gorm:"size:64;index" json:"target_id"`
	TargetName         string                           `gorm:"size:200" json:"target_name"`
	Changes            datatypes.JSONType[AuditChanges] `gorm:"type:jsonb" json:"changes"`
	AffectedUsersCount int                              `gorm:"default:0" json:"affected_users_count"`
	Notes              string                           `gorm:"size:1000" json:"notes"`
	CreatedAt          time.Time                        `gorm:"index" json:"created_at"`
}

// TableName 表名
func (AuditLogEntry) TableName() string {
	return "rbac_audit_logs"
}

// 文本列宽度，与gorm size标签一致
const (
	auditPerformedByMaxLen = 100
	auditTargetIDMaxLen    = 64
	auditTargetNameMaxLen  = 200
	AuditNotesMaxLen       = 1000
)

// FitColumns 把文本字段截断到列宽
func (e *AuditLogEntry) FitColumns() {
	e.PerformedBy = TruncateRunes(e.PerformedBy, auditPerformedByMaxLen)
	e.TargetID = TruncateRunes(e.TargetID, auditTargetIDMaxLen)
	e.TargetName = TruncateRunes(e.TargetName, auditTargetNameMaxLen)
	e.Notes = TruncateRunes(e.Notes, AuditNotesMaxLen)
}

// AuditChanges 变更前后快照
type AuditChanges struct {
	Before map[string]interface{} `json:"before"`
	After  map[string]interface{} `json:"after"`
}

// 审计动作类型
const (
	AuditProfileCreated        = "profile_created"
	AuditProfileUpdated        = "profile_updated"
	AuditProfileDeactivated    = "profile_deactivated"
	AuditProfileActivated      = "profile_activated"
	AuditProfileDeleted        = "profile_deleted"
	AuditCustomRoleCreated     = "custom_role_created"
	AuditCustomRoleUpdated     = "custom_role_updated"
	AuditCustomRoleDeactivated = "custom_role_deactivated"
	AuditUserPermissionChanged = "user_permission_changed"
)

// 审计目标类型
const (
	TargetProfile    = "profile"
	TargetCustomRole = "custom_role"
	TargetEmployee   = "employee"
)

// IsValidAuditAction 检查审计动作类型
func IsValidAuditAction(action string) bool {
	switch action {
	case AuditProfileCreated, AuditProfileUpdated, AuditProfileDeactivated, AuditProfileActivated,
		AuditProfileDeleted, AuditCustomRoleCreated, AuditCustomRoleUpdated, AuditCustomRoleDeactivated,
		AuditUserPermissionChanged:
		return true
	default:
		return false
	}
}

// GetChanges 变更快照
func (e *AuditLogEntry) GetChanges() AuditChanges {
	return e.Changes.Data()
}

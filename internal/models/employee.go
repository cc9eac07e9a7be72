package models

import (
	"time"

	"gorm.io/datatypes"
)

// Employee 员工模型，员工存在时是权限判定的事实来源
type Employee struct {
	BaseModel
	UserID        *uint                                     `json:"user_id" gorm:"index"`
	Email         string                                    `json:"email" gorm:"size:100;index"`
	FullName      string                                    `json:"full_name" gorm:"size:100"`
	JobRole       string                                    `json:"job_role" gorm:"size:50"`
	Area          string                                    `json:"area" gorm:"size:50"`
	WorkshopID    *uint                                     `json:"workshop_id" gorm:"index"`
	ProfileID     *uint                                     `json:"profile_id" gorm:"index"`
	CustomRoleIDs datatypes.JSONSlice[uint]                 `json:"custom_role_ids" gorm:"type:jsonb"`
	UserStatus    string                                    `json:"user_status" gorm:"default:'ativo';size:20"`
	IsInternal    bool                                      `json:"is_internal" gorm:"default:false"`
	TipoVinculo   string                                    `json:"tipo_vinculo" gorm:"size:20"`
	AuditHistory  datatypes.JSONSlice[EmployeeHistoryEntry] `json:"audit_history" gorm:"type:jsonb"`
}

// TableName 表名
func (Employee) TableName() string {
	return "employees"
}

// 员工状态常量
const (
	EmployeeStatusActive    = "ativo"
	EmployeeStatusInactive  = "inativo"
	EmployeeStatusSuspended = "afastado"
)

// 雇佣关系常量
const (
	VinculoInterno = "interno"
	VinculoExterno = "externo"
)

// EmployeeHistoryEntry 员工记录上的轻量变更历史
type EmployeeHistoryEntry struct {
	Action      string      `json:"action"`
	Field       string      `json:"field"`
	Before      interface{} `json:"before"`
	After       interface{} `json:"after"`
	PerformedBy string      `json:"performed_by"`
	RequestID   uint        `json:"request_id,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	At          time.Time   `json:"at"`
}

// IsValidEmployeeStatus 检查员工状态是否有效
func IsValidEmployeeStatus(status string) bool {
	switch status {
	case EmployeeStatusActive, EmployeeStatusInactive, EmployeeStatusSuspended:
		return true
	default:
		return false
	}
}

// InternalByContract 是否按雇佣关系视为内部人员
func (e *Employee) InternalByContract() bool {
	return e.IsInternal || e.TipoVinculo == VinculoInterno
}

// RoleIDs 自定义角色ID列表
func (e *Employee) RoleIDs() []uint {
	return []uint(e.CustomRoleIDs)
}

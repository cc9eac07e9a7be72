package models

import "gorm.io/datatypes"

// CustomRole 自定义角色：粗粒度能力标签 + 实体级细粒度授权，可叠加在档案之上
type CustomRole struct {
	BaseModel
	Name              string                                `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description       string                                `gorm:"size:255" json:"description"`
	SystemRoles       datatypes.JSONSlice[string]           `gorm:"type:jsonb" json:"system_roles"`
	EntityPermissions datatypes.JSONType[EntityPermissions] `gorm:"type:jsonb" json:"entity_permissions"`
	Status            string                                `gorm:"size:20;default:'active'" json:"status"` // 状态：active, inactive
	CreatedBy         string                                `gorm:"size:100" json:"created_by"`
}

// TableName 表名
func (CustomRole) TableName() string {
	return "custom_roles"
}

// 角色状态常量
const (
	RoleStatusActive   = "active"
	RoleStatusInactive = "inactive"
)

// IsActive 是否启用
func (r *CustomRole) IsActive() bool {
	return r.Status == RoleStatusActive
}

// Grants 实体授权
func (r *CustomRole) Grants() EntityPermissions {
	return r.EntityPermissions.Data()
}

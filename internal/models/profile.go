package models

import "gorm.io/datatypes"

// Profile 权限档案：按模块的访问级别集合，每个员工同一时间只绑定一个档案
type Profile struct {
	BaseModel
	Name              string                                `gorm:"size:100;not null;uniqueIndex:idx_profile_name_type" json:"name"`
	Type              string                                `gorm:"size:20;not null;default:'internal';uniqueIndex:idx_profile_name_type" json:"type"`
	Description       string                                `gorm:"size:255" json:"description"`
	JobRoles          datatypes.JSONSlice[string]           `gorm:"type:jsonb" json:"job_roles"`
	ModulePermissions datatypes.JSONType[ModulePermissions] `gorm:"type:jsonb" json:"module_permissions"`
	Roles             datatypes.JSONSlice[string]           `gorm:"type:jsonb" json:"roles"`
	Status            string                                `gorm:"size:20;default:'active';index" json:"status"`
	IsSystem          bool                                  `gorm:"default:false" json:"is_system"`
	Template          string                                `gorm:"size:50" json:"template"` // 创建时使用的模板（层级）
	CreatedBy         string                                `gorm:"size:100" json:"created_by"`
}

// TableName 表名
func (Profile) TableName() string {
	return "profiles"
}

// 档案类型常量
const (
	ProfileTypeInternal = "internal"
	ProfileTypeExternal = "external"
)

// 档案状态常量
const (
	ProfileStatusActive   = "active"
	ProfileStatusInactive = "inactive"
)

// IsActive 是否启用
func (p *Profile) IsActive() bool {
	return p.Status == ProfileStatusActive
}

// Permissions 模块权限
func (p *Profile) Permissions() ModulePermissions {
	return p.ModulePermissions.Data()
}

// IsValidProfileType 检查档案类型
func IsValidProfileType(t string) bool {
	return t == ProfileTypeInternal || t == ProfileTypeExternal
}

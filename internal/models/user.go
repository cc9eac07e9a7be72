package models

// User 用户模型（全局身份，由外部身份服务维护）
type User struct {
	BaseModel
	Email      string `json:"email" gorm:"unique;not null;size:100;index"`
	Name       string `json:"name" gorm:"not null;size:100"`
	Role       string `json:"role" gorm:"default:'user';size:20"` // admin 为全局通配
	JobRole    string `json:"job_role" gorm:"size:50"`
	Area       string `json:"area" gorm:"size:50"`
	WorkshopID *uint  `json:"workshop_id" gorm:"index"`
	IsInternal bool   `json:"is_internal" gorm:"default:false"`
	Status     string `json:"status" gorm:"default:'active';size:20"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// 用户全局角色常量
const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// IsAdmin 是否为全局管理员
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

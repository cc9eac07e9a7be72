package services

import (
	"accessgov/internal/models"
	"accessgov/internal/store"

	"gorm.io/gorm"
)

// Stores 权限引擎依赖的全部集合
type Stores struct {
	Users       store.Collection[models.User]
	Employees   store.Collection[models.Employee]
	Profiles    store.Collection[models.Profile]
	CustomRoles store.Collection[models.CustomRole]
	Requests    store.Collection[models.PermissionChangeRequest]
	AuditLogs   store.Collection[models.AuditLogEntry]
}

// NewStores 基于数据库的集合
func NewStores(db *gorm.DB) *Stores {
	return &Stores{
		Users:       store.NewGormCollection[models.User](db),
		Employees:   store.NewGormCollection[models.Employee](db),
		Profiles:    store.NewGormCollection[models.Profile](db),
		CustomRoles: store.NewGormCollection[models.CustomRole](db),
		Requests:    store.NewGormCollection[models.PermissionChangeRequest](db),
		AuditLogs:   store.NewGormCollection[models.AuditLogEntry](db),
	}
}

// NewMemoryStores 内存集合，唯一约束与数据库索引保持一致
func NewMemoryStores(opts ...store.MemoryOption) *Stores {
	with := func(extra ...store.MemoryOption) []store.MemoryOption {
		return append(append([]store.MemoryOption{}, opts...), extra...)
	}
	onePending := store.WithPartialUnique(store.Filter{"status": models.RequestStatusPending}, "employee_id", "change_type")
	return &Stores{
		Users:       store.NewMemoryCollection[models.User](with(store.WithUnique("email"))...),
		Employees:   store.NewMemoryCollection[models.Employee](opts...),
		Profiles:    store.NewMemoryCollection[models.Profile](with(store.WithUnique("name", "type"))...),
		CustomRoles: store.NewMemoryCollection[models.CustomRole](with(store.WithUnique("name"))...),
		Requests:    store.NewMemoryCollection[models.PermissionChangeRequest](with(onePending)...),
		AuditLogs:   store.NewMemoryCollection[models.AuditLogEntry](opts...),
	}
}

package database

import (
	"accessgov/internal/models"
	"accessgov/pkg/logger"
)

// Migrate 执行数据库迁移
func Migrate() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	err := DB.AutoMigrate(
		&models.User{},
		&models.Employee{},
		&models.Profile{},
		&models.CustomRole{},
		// 审批与审计
		&models.PermissionChangeRequest{},
		&models.AuditLogEntry{},
	)
	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")
	return nil
}

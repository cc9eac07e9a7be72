package main

import (
	"accessgov/internal/catalog"
	"accessgov/internal/models"
	"accessgov/internal/services"
	"accessgov/internal/store"
	"accessgov/pkg/logger"
	"context"
	"fmt"

	"gorm.io/datatypes"
)

// seedData 初始化种子数据
func seedData(ctx context.Context, stores *services.Stores, c *catalog.Catalog, adminEmail string) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	// 1. 创建默认管理员用户
	if err := createDefaultAdmin(ctx, stores, adminEmail); err != nil {
		return fmt.Errorf("创建默认管理员失败: %v", err)
	}

	// 2. 创建兜底档案
	if err := createFallbackProfile(ctx, stores, c); err != nil {
		return fmt.Errorf("创建兜底档案失败: %v", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createDefaultAdmin 创建全局管理员
func createDefaultAdmin(ctx context.Context, stores *services.Stores, email string) error {
	if email == "" {
		return nil
	}
	count, err := stores.Users.Count(ctx, store.Filter{"email": email})
	if err != nil {
		return err
	}
	if count > 0 {
		logger.GetLogger().Info("默认管理员已存在，跳过创建")
		return nil
	}

	admin := &models.User{
		Email:      email,
		Name:       "Administrador",
		Role:       models.UserRoleAdmin,
		IsInternal: true,
		Status:     models.UserStatusActive,
	}
	if err := stores.Users.Create(ctx, admin); err != nil && !store.IsDuplicate(err) {
		return err
	}

	logger.GetLogger().Infof("默认管理员创建成功: %s", email)
	return nil
}

// createFallbackProfile 创建未知岗位使用的兜底档案，标记为系统档案
func createFallbackProfile(ctx context.Context, stores *services.Stores, c *catalog.Catalog) error {
	existing, err := stores.Profiles.Filter(ctx, store.Filter{
		"name": c.FallbackProfile,
		"type": models.ProfileTypeInternal,
	}, store.ListOptions{Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		if !existing[0].IsSystem {
			_, err := stores.Profiles.Update(ctx, existing[0].ID, store.Fields{"is_system": true})
			return err
		}
		logger.GetLogger().Info("兜底档案已存在，跳过创建")
		return nil
	}

	profile := &models.Profile{
		Name:              c.FallbackProfile,
		Type:              models.ProfileTypeInternal,
		Description:       "未在目录中配置的岗位使用的默认档案",
		ModulePermissions: datatypes.NewJSONType(c.DefaultsFor("")),
		Status:            models.ProfileStatusActive,
		IsSystem:          true,
		CreatedBy:         "system",
	}
	if err := stores.Profiles.Create(ctx, profile); err != nil && !store.IsDuplicate(err) {
		return err
	}

	logger.GetLogger().Infof("兜底档案创建成功: %s", c.FallbackProfile)
	return nil
}

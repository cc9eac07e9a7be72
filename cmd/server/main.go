package main

import (
	"accessgov/internal/catalog"
	"accessgov/internal/database"
	"accessgov/internal/router"
	"accessgov/internal/services"
	"accessgov/pkg/config"
	"accessgov/pkg/jwt"
	"accessgov/pkg/logger"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.GetConfig()

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting access governance service...")

	// 加载权限目录
	permissionCatalog, err := catalog.Load(cfg.RBAC.CatalogPath)
	if err != nil {
		appLogger.Fatalf("Failed to load permission catalog: %v", err)
	}
	appLogger.Infof("Permission catalog loaded, version %s", permissionCatalog.Version)

	// 初始化实体存储
	var stores *services.Stores
	if cfg.RBAC.Store == "memory" {
		appLogger.Warn("使用内存存储，重启后数据丢失")
		stores = services.NewMemoryStores()
	} else {
		if err := database.Initialize(cfg); err != nil {
			appLogger.Fatalf("Failed to initialize database: %v", err)
		}
		defer func() {
			// 关闭数据库连接
			if err := database.Close(); err != nil {
				appLogger.Error("Failed to close database:", err)
			}
		}()

		if err := database.Migrate(); err != nil {
			appLogger.Fatalf("Failed to migrate database: %v", err)
		}
		stores = services.NewStores(database.GetDB())
	}

	// 执行种子数据初始化
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	err = seedData(seedCtx, stores, permissionCatalog, cfg.RBAC.AdminEmail)
	cancelSeed()
	if err != nil {
		appLogger.Fatalf("Failed to initialize seed data: %v", err)
	}

	// 通知：Redis可用时投递到队列，否则只写日志
	var notifier services.Notifier = services.NewLogNotifier(appLogger)
	redisQueue := database.GetRedisQueue()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisQueue.Ping(pingCtx); err != nil {
		appLogger.Warnf("Redis不可用，通知仅写入日志: %v", err)
	} else {
		notifier = services.NewQueueNotifier(redisQueue, cfg.RBAC.NotificationQueue)
	}
	cancelPing()
	defer func() {
		// 关闭Redis连接
		if err := database.CloseRedisQueue(); err != nil {
			appLogger.Error("Failed to close Redis:", err)
		}
	}()

	// 组装服务
	bestEffort := services.NewBestEffort(appLogger)
	audit := services.NewAuditService(stores.AuditLogs, bestEffort, cfg.RBAC.AuditExportBatch)
	resolver := services.NewResolver(permissionCatalog)
	requests := services.NewPermissionRequestService(stores, resolver, audit, notifier, bestEffort, cfg.RBAC.ApproverEmails)

	// 启动待审批提醒调度器
	if cfg.RBAC.ReminderCron != "" {
		reminder := services.NewReminderScheduler(requests, notifier, cfg.RBAC.ApproverEmails,
			cfg.RBAC.ReminderCron, cfg.RBAC.ReminderAfter, cfg.RBAC.StoreTimeout)
		if err := reminder.Start(); err != nil {
			appLogger.Errorf("Failed to start reminder scheduler: %v", err)
			// 不影响主服务启动
		}
		defer reminder.Stop()
	}

	// 通知走队列时在健康检查中报告积压
	backlog, _ := notifier.(services.BacklogReporter)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	r := router.SetupRouter(&router.Dependencies{
		Config:      cfg,
		JWT:         jwt.GetJWTManager(),
		Resolver:    resolver,
		Actors:      services.NewActorService(stores),
		AutoAssign:  services.NewAutoAssignService(stores, permissionCatalog, audit),
		Profiles:    services.NewProfileService(stores, permissionCatalog, audit),
		CustomRoles: services.NewCustomRoleService(stores, permissionCatalog, audit),
		Requests:    requests,
		Audit:       audit,
		Backlog:     backlog,
	})

	// 启动服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}

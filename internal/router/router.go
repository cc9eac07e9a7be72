package router

import (
	"accessgov/internal/handlers"
	"accessgov/internal/middleware"
	"accessgov/internal/models"
	"accessgov/internal/services"
	"accessgov/pkg/config"
	"accessgov/pkg/jwt"
	"accessgov/pkg/response"
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies 路由依赖的服务
type Dependencies struct {
	Config      *config.Config
	JWT         *jwt.JWTManager
	Resolver    *services.Resolver
	Actors      *services.ActorService
	AutoAssign  *services.AutoAssignService
	Profiles    *services.ProfileService
	CustomRoles *services.CustomRoleService
	Requests    *services.PermissionRequestService
	Audit       *services.AuditService
	Backlog     services.BacklogReporter // 可选，通知走队列时报告积压
}

// SetupRouter 设置路由
func SetupRouter(deps *Dependencies) *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.RequestMetrics())
	router.Use(middleware.SetupCORS(&deps.Config.CORS))

	// 注册路由
	registerRoutes(router, deps)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, deps *Dependencies) {
	timeout := deps.Config.RBAC.StoreTimeout
	auth := middleware.NewAuthMiddleware(deps.Actors, deps.Resolver, deps.JWT, timeout)

	health := healthCheck(deps.Backlog)
	router.GET("/health", health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API路由组
	api := router.Group("/api/v1")
	{
		api.GET("/health", health)
		api.GET("/ping", ping)
	}

	rbac := api.Group("/rbac", auth.RequireLogin())

	// 权限目录与自检
	permissionHandler := handlers.NewPermissionHandler(deps.Resolver)
	{
		rbac.GET("/catalog", permissionHandler.Catalog)
		rbac.POST("/access/check", permissionHandler.Check)
		rbac.GET("/me/access", permissionHandler.MyAccess)
	}

	// 按岗位自动分配档案
	assignmentHandler := handlers.NewAssignmentHandler(deps.AutoAssign, timeout)
	rbac.POST("/auto-assign", auth.RequireAccess(services.EntityRequest("Employee", models.OpUpdate)), assignmentHandler.AutoAssign)

	// 权限变更申请，提交和审批的权限由服务自行判定
	requestHandler := handlers.NewPermissionRequestHandler(deps.Requests, timeout)
	requests := rbac.Group("/permission-requests")
	{
		requests.POST("", requestHandler.Submit)
		requests.POST("/resolve", requestHandler.Resolve)
		requests.GET("/mine", requestHandler.Mine)
		requests.GET("/:id", requestHandler.GetByID)
		requests.GET("", auth.RequireAccess(services.PageRequest(services.ApprovalPage)), requestHandler.List)
	}

	// 档案管理
	profileHandler := handlers.NewProfileHandler(deps.Profiles, timeout)
	profiles := rbac.Group("/profiles", auth.RequireAccess(services.PageRequest("admin.profiles")))
	{
		profiles.GET("/templates", profileHandler.Templates)
		profiles.POST("", profileHandler.Create)
		profiles.GET("", profileHandler.List)
		profiles.GET("/:id", profileHandler.GetByID)
		profiles.PUT("/:id", profileHandler.Update)
		profiles.DELETE("/:id", profileHandler.Delete)
		profiles.POST("/:id/activate", profileHandler.Activate)
		profiles.POST("/:id/deactivate", profileHandler.Deactivate)
	}

	// 自定义角色
	roleHandler := handlers.NewCustomRoleHandler(deps.CustomRoles, timeout)
	roles := rbac.Group("/custom-roles", auth.RequireAccess(services.PageRequest("admin.profiles")))
	{
		roles.POST("", roleHandler.Create)
		roles.GET("", roleHandler.List)
		roles.GET("/:id", roleHandler.GetByID)
		roles.PUT("/:id", roleHandler.Update)
		roles.POST("/:id/deactivate", roleHandler.Deactivate)
		roles.GET("/:id/affected", roleHandler.Affected)
	}

	// 审计日志
	auditHandler := handlers.NewAuditHandler(deps.Audit, timeout)
	audit := rbac.Group("/audit-logs", auth.RequireAccess(services.PageRequest("admin.audit")))
	{
		audit.GET("", auditHandler.List)
		audit.GET("/export", auditHandler.Export)
	}
}

func healthCheck(backlog services.BacklogReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := map[string]interface{}{
			"status":    "ok",
			"timestamp": time.Now(),
			"service":   "accessgov",
			"version":   "1.0.0",
		}
		if backlog != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if pending, err := backlog.Backlog(ctx); err != nil {
				data["notification_queue"] = "unavailable"
			} else {
				data["notification_queue"] = "ok"
				data["notification_backlog"] = pending
			}
		}
		response.Success(c, data)
	}
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}

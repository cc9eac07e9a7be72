package handlers

import (
	"accessgov/internal/middleware"
	"accessgov/internal/models"
	"accessgov/internal/services"
	"accessgov/pkg/response"

	"github.com/gin-gonic/gin"
)

type PermissionHandler struct {
	resolver *services.Resolver
}

func NewPermissionHandler(resolver *services.Resolver) *PermissionHandler {
	return &PermissionHandler{
		resolver: resolver,
	}
}

// Catalog 当前加载的权限目录
func (h *PermissionHandler) Catalog(c *gin.Context) {
	response.Success(c, h.resolver.Catalog())
}

// Check 判定当前主体对目标的访问权限，拒绝也返回200
func (h *PermissionHandler) Check(c *gin.Context) {
	var req services.AccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Kind == services.RequestModule && req.MinLevel == "" {
		req.MinLevel = models.LevelView
	}

	decision := h.resolver.Resolve(middleware.GetActor(c), req)
	response.Success(c, gin.H{
		"request": req,
		"allowed": decision.Allowed,
		"rule":    decision.Rule,
	})
}

// MyAccess 当前主体的权限概览
func (h *PermissionHandler) MyAccess(c *gin.Context) {
	actor := middleware.GetActor(c)
	if actor == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	modules := make(map[string]models.PermissionLevel)
	for _, module := range h.resolver.Catalog().Modules {
		if actor.IsAdmin() {
			modules[module.Key] = models.LevelTotal
			continue
		}
		modules[module.Key] = actor.ModuleLevel(module.Key)
	}

	response.Success(c, gin.H{
		"user_id":          actor.UserID(),
		"email":            actor.Email(),
		"job_role":         actor.JobRole(),
		"is_admin":         actor.IsAdmin(),
		"is_internal":      actor.IsInternal(),
		"profile_name":     actor.ProfileName(),
		"capabilities":     actor.Capabilities(),
		"custom_role_ids":  actor.CustomRoleIDs(),
		"modules":          modules,
		"accessible_pages": h.resolver.AccessiblePages(actor),
	})
}

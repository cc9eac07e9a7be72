package handlers

import (
	"accessgov/internal/services"
	"accessgov/pkg/pagination"
	"accessgov/pkg/response"
	"time"

	"github.com/gin-gonic/gin"
)

type CustomRoleHandler struct {
	service *services.CustomRoleService
	scope   requestScope
}

func NewCustomRoleHandler(service *services.CustomRoleService, timeout time.Duration) *CustomRoleHandler {
	return &CustomRoleHandler{
		service: service,
		scope:   newRequestScope(timeout),
	}
}

// ========== 基础CRUD方法 ==========

// Create 创建自定义角色
func (h *CustomRoleHandler) Create(c *gin.Context) {
	var req services.CustomRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	role, err := h.service.Create(ctx, performedBy(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, role)
}

// GetByID 获取自定义角色
func (h *CustomRoleHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	role, err := h.service.Get(ctx, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, role)
}

// List 自定义角色列表（支持分页和状态筛选）
func (h *CustomRoleHandler) List(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)
	status := c.Query("status")

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	roles, total, err := h.service.List(ctx, status, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithPage(c, roles, pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total))
}

// Update 整体更新自定义角色
func (h *CustomRoleHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.CustomRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	role, err := h.service.Update(ctx, performedBy(c), id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, role)
}

// Deactivate 停用自定义角色
func (h *CustomRoleHandler) Deactivate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	role, err := h.service.Deactivate(ctx, performedBy(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, role)
}

// Affected 引用该角色的员工数
func (h *CustomRoleHandler) Affected(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	if _, err := h.service.Get(ctx, id); err != nil {
		response.FromError(c, err)
		return
	}
	count, err := h.service.AffectedEmployees(ctx, id)
	if err != nil {
		response.ServerError(c, "统计受影响员工失败")
		return
	}

	response.Success(c, gin.H{"role_id": id, "affected_users_count": count})
}

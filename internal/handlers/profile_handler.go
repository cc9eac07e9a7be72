package handlers

import (
	"accessgov/internal/models"
	"accessgov/internal/services"
	"accessgov/pkg/pagination"
	"accessgov/pkg/response"
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	service *services.ProfileService
	scope   requestScope
}

func NewProfileHandler(service *services.ProfileService, timeout time.Duration) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		scope:   newRequestScope(timeout),
	}
}

// ========== 基础CRUD方法 ==========

// Create 创建档案
func (h *ProfileHandler) Create(c *gin.Context) {
	var req services.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	profile, err := h.service.Create(ctx, performedBy(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, profile)
}

// GetByID 获取档案
func (h *ProfileHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	profile, err := h.service.Get(ctx, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, profile)
}

// List 档案列表（支持分页、类型、状态和关键字筛选）
func (h *ProfileHandler) List(c *gin.Context) {
	var q services.ProfileListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	pageParams := pagination.ParsePageParams(c)
	q.Page, q.PageSize = pageParams.Page, pageParams.PageSize

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	profiles, total, err := h.service.List(ctx, q)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithPage(c, profiles, pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total))
}

// Update 更新档案
func (h *ProfileHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	profile, err := h.service.Update(ctx, performedBy(c), id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, profile)
}

// Delete 删除档案
func (h *ProfileHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	if err := h.service.Delete(ctx, performedBy(c), id); err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// ========== 状态管理 ==========

// Activate 启用档案
func (h *ProfileHandler) Activate(c *gin.Context) {
	h.setStatus(c, h.service.Activate)
}

// Deactivate 停用档案
func (h *ProfileHandler) Deactivate(c *gin.Context) {
	h.setStatus(c, h.service.Deactivate)
}

func (h *ProfileHandler) setStatus(c *gin.Context, fn func(ctx context.Context, performedBy string, id uint) (*models.Profile, error)) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	profile, err := fn(ctx, performedBy(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, profile)
}

// Templates 档案模板（目录中的层级）
func (h *ProfileHandler) Templates(c *gin.Context) {
	response.Success(c, h.service.Templates())
}

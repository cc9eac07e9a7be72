package handlers

import (
	"accessgov/internal/middleware"
	"accessgov/internal/services"
	"accessgov/pkg/pagination"
	"accessgov/pkg/response"
	"time"

	"github.com/gin-gonic/gin"
)

// ResolveRequestBody 审批请求
type ResolveRequestBody struct {
	RequestID uint   `json:"request_id" binding:"required"`
	Approve   *bool  `json:"approve" binding:"required"`
	Feedback  string `json:"feedback" binding:"max=1000"`
}

type PermissionRequestHandler struct {
	service *services.PermissionRequestService
	scope   requestScope
}

func NewPermissionRequestHandler(service *services.PermissionRequestService, timeout time.Duration) *PermissionRequestHandler {
	return &PermissionRequestHandler{
		service: service,
		scope:   newRequestScope(timeout),
	}
}

// Submit 提交权限变更申请
func (h *PermissionRequestHandler) Submit(c *gin.Context) {
	var req services.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	request, err := h.service.Submit(ctx, middleware.GetActor(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "申请已提交", request)
}

// Resolve 批准或拒绝申请
func (h *PermissionRequestHandler) Resolve(c *gin.Context) {
	var req ResolveRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	result, err := h.service.Resolve(ctx, middleware.GetActor(c), req.RequestID, *req.Approve, req.Feedback)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Raw(c, gin.H{
		"success":  true,
		"approved": result.Approved,
		"message":  result.Message,
		"details":  result.Request,
	})
}

// List 申请列表（审批人）
func (h *PermissionRequestHandler) List(c *gin.Context) {
	var q services.RequestListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	pageParams := pagination.ParsePageParams(c)
	q.Page, q.PageSize = pageParams.Page, pageParams.PageSize

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	requests, total, err := h.service.List(ctx, q)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithPage(c, requests, pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total))
}

// Mine 当前用户提交的申请
func (h *PermissionRequestHandler) Mine(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	requests, total, err := h.service.ListMine(ctx, middleware.GetActor(c), pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithPage(c, requests, pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total))
}

// GetByID 申请详情
func (h *PermissionRequestHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	request, err := h.service.Get(ctx, middleware.GetActor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, request)
}

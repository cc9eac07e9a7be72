package handlers

import (
	"accessgov/internal/services"
	"accessgov/pkg/pagination"
	"accessgov/pkg/response"
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuditHandler struct {
	service *services.AuditService
	scope   requestScope
}

func NewAuditHandler(service *services.AuditService, timeout time.Duration) *AuditHandler {
	return &AuditHandler{
		service: service,
		scope:   newRequestScope(timeout),
	}
}

// List 审计日志列表，按时间倒序
func (h *AuditHandler) List(c *gin.Context) {
	var q services.AuditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	pageParams := pagination.ParsePageParams(c)
	q.Page, q.PageSize = pageParams.Page, pageParams.PageSize

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	entries, total, err := h.service.Query(ctx, q)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithPage(c, entries, pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total))
}

// Export 按相同条件导出CSV
func (h *AuditHandler) Export(c *gin.Context) {
	var q services.AuditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	var buf bytes.Buffer
	if _, err := h.service.Export(ctx, q, &buf); err != nil {
		response.FromError(c, err)
		return
	}

	filename := fmt.Sprintf("audit-logs-%s-%s.csv", time.Now().Format("20060102"), uuid.NewString()[:8])
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

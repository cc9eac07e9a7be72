package handlers

import (
	"accessgov/internal/services"
	"accessgov/pkg/response"
	"time"

	"github.com/gin-gonic/gin"
)

// AutoAssignRequest 按岗位分配默认档案
type AutoAssignRequest struct {
	EmployeeID uint   `json:"employee_id" binding:"required"`
	JobRole    string `json:"job_role" binding:"required"`
	Force      bool   `json:"force"`
}

type AssignmentHandler struct {
	service *services.AutoAssignService
	scope   requestScope
}

func NewAssignmentHandler(service *services.AutoAssignService, timeout time.Duration) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		scope:   newRequestScope(timeout),
	}
}

// AutoAssign 为员工分配岗位对应的默认档案
func (h *AssignmentHandler) AutoAssign(c *gin.Context) {
	var req AutoAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := h.scope.ctx(c)
	defer cancel()

	result, err := h.service.AssignDefaultProfile(ctx, performedBy(c), req.EmployeeID, req.JobRole, req.Force)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Raw(c, gin.H{
		"success":       true,
		"profile_id":    result.ProfileID,
		"profile_name":  result.ProfileName,
		"auto_assigned": result.AutoAssigned,
	})
}

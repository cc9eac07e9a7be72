package handlers

import (
	"accessgov/internal/middleware"
	"accessgov/pkg/response"
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// requestScope 每个请求访问实体存储的超时
type requestScope struct {
	timeout time.Duration
}

func newRequestScope(timeout time.Duration) requestScope {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return requestScope{timeout: timeout}
}

func (s requestScope) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.timeout)
}

// parseID 解析路径中的ID参数，失败时直接返回400
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "ID格式错误")
		return 0, false
	}
	return uint(id), true
}

// performedBy 当前操作人标识
func performedBy(c *gin.Context) string {
	actor := middleware.GetActor(c)
	if actor == nil {
		return ""
	}
	if actor.Email() != "" {
		return actor.Email()
	}
	return strconv.FormatUint(uint64(actor.UserID()), 10)
}

func bindError(c *gin.Context, err error) {
	response.BadRequest(c, "参数错误: "+err.Error())
}

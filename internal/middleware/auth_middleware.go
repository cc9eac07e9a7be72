package middleware

import (
	"accessgov/internal/services"
	"accessgov/pkg/errors"
	"accessgov/pkg/jwt"
	"accessgov/pkg/logger"
	"accessgov/pkg/response"
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ActorKey 上下文中保存权限主体的键
const ActorKey = "actor"

// AuthMiddleware 认证与权限中间件
type AuthMiddleware struct {
	actors     *services.ActorService
	resolver   *services.Resolver
	jwtManager *jwt.JWTManager
	timeout    time.Duration
}

// NewAuthMiddleware 创建中间件，timeout为加载主体时访问存储的超时
func NewAuthMiddleware(actors *services.ActorService, resolver *services.Resolver, jwtManager *jwt.JWTManager, timeout time.Duration) *AuthMiddleware {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AuthMiddleware{
		actors:     actors,
		resolver:   resolver,
		jwtManager: jwtManager,
		timeout:    timeout,
	}
}

// RequireLogin 校验令牌并加载权限主体
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从Authorization头获取JWT token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		// 检查Bearer格式
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		claims, err := m.jwtManager.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), m.timeout)
		defer cancel()

		actor, err := m.actors.Load(ctx, claims.UserID)
		if err != nil {
			if !errors.Is(err, errors.KindUnauthorized) {
				logger.GetLogger().WithError(err).WithField("user_id", claims.UserID).Error("加载权限主体失败")
			}
			response.FromError(c, err)
			c.Abort()
			return
		}

		c.Set(ActorKey, actor)
		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

// RequireAccess 要求当前主体通过指定的权限判定
func (m *AuthMiddleware) RequireAccess(req services.AccessRequest) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := GetActor(c)
		if actor == nil {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		decision := m.resolver.Resolve(actor, req)
		if !decision.Allowed {
			logger.GetLogger().WithFields(logrus.Fields{
				"user_id": actor.UserID(),
				"request": req.String(),
				"rule":    decision.Rule,
			}).Debug("权限判定拒绝")
			response.Forbidden(c, "权限不足："+req.String())
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetActor 获取当前请求的权限主体，未登录时为nil
func GetActor(c *gin.Context) *services.EffectiveActor {
	value, exists := c.Get(ActorKey)
	if !exists {
		return nil
	}
	actor, _ := value.(*services.EffectiveActor)
	return actor
}

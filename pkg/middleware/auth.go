package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"

	"tsync-social/pkg/auth"
	tracecontext "tsync-social/pkg/context"
	"tsync-social/pkg/httpx"
)

// UserIDKey gin上下文中的用户ID键
const UserIDKey = "userID"

// AuthMiddleware 认证中间件配置
type AuthMiddleware struct {
	logger    kratoslog.Logger
	jwtKey    string
	skipPaths []string
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(logger kratoslog.Logger, jwtKey string, skipPaths ...string) *AuthMiddleware {
	return &AuthMiddleware{
		logger:    logger,
		jwtKey:    jwtKey,
		skipPaths: append([]string{"/health"}, skipPaths...),
	}
}

// GinAuth Gin认证中间件
func (am *AuthMiddleware) GinAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 跳过健康检查和公开接口
		if am.shouldSkipAuth(c.Request.URL.Path) {
			c.Next()
			return
		}

		token := ExtractToken(c)
		if token == "" {
			am.logger.Log(kratoslog.LevelWarn, "msg", "Missing authorization token", "path", c.Request.URL.Path)
			httpx.WriteStatusError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization token")
			return
		}

		// 验证JWT token
		claims, err := auth.ValidateJWT(token, am.jwtKey)
		if err != nil {
			am.logger.Log(kratoslog.LevelWarn, "msg", "Invalid token", "error", err, "path", c.Request.URL.Path)
			httpx.WriteStatusError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		// 将用户信息存储到上下文
		c.Set(UserIDKey, claims.UserID)
		c.Request = c.Request.WithContext(tracecontext.WithUserID(c.Request.Context(), claims.UserID))

		am.logger.Log(kratoslog.LevelDebug, "msg", "User authenticated", "userID", claims.UserID, "path", c.Request.URL.Path)
		c.Next()
	}
}

// ExtractToken 从Authorization头或token查询参数中提取token，WebSocket握手只能使用后者
func ExtractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		// 支持 "Bearer token" 和直接的 "token" 格式
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("token")
}

// CurrentUserID 获取已认证的用户ID
func CurrentUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

// shouldSkipAuth 判断是否跳过认证
func (am *AuthMiddleware) shouldSkipAuth(path string) bool {
	for _, skipPath := range am.skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/blues/ideafund/internal/ledger"
	"github.com/blues/ideafund/internal/logger"
	"github.com/gin-gonic/gin"
)

const sessionKey = "ideafund.session"

// Authenticator 按访问令牌取得签名会话，由 wallet.Keyring 实现
type Authenticator interface {
	Authenticate(token string) (ledger.Session, error)
}

// RequireSession 校验 Authorization: Bearer <token>，并把对应账户的会话放入上下文
func RequireSession(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			unauthorized(c, "authentication required")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			unauthorized(c, "invalid token format")
			return
		}

		session, err := auth.Authenticate(strings.TrimSpace(parts[1]))
		if err != nil {
			logger.Warn("Rejected %s %s from %s: %v", c.Request.Method, c.Request.URL.Path, c.ClientIP(), err)
			unauthorized(c, "invalid token")
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// SessionFrom 取出 RequireSession 放入的会话
func SessionFrom(c *gin.Context) (ledger.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return ledger.Session{}, false
	}
	session, ok := v.(ledger.Session)
	return session, ok
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": message,
		"data":    nil,
	})
}

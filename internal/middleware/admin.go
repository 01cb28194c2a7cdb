package middleware

import (
	"net/http"

	"counselmeet/internal/utils"
	"counselmeet/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequireRole aborts with 403 unless the principal has one of roles.
// It must run after JWTAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			utils.UnauthorizedResponse(c, "Authentication required")
			return
		}
		if !allowed[p.Role] {
			logger.LogSecurityEvent("role_denied", p.UserID, c.ClientIP(), map[string]interface{}{
				"role": p.Role,
				"path": c.Request.URL.Path,
			})
			utils.ForbiddenResponse(c, "Insufficient role")
			return
		}
		c.Next()
	}
}

// AdminActivityLogger records every mutating admin request
func AdminActivityLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == http.MethodGet {
			return
		}
		p, ok := GetPrincipal(c)
		if !ok {
			return
		}
		logger.LogAdminAction(p.UserID, c.Request.Method+" "+c.FullPath(), c.Param("id"), map[string]interface{}{
			"ip":          c.ClientIP(),
			"status_code": c.Writer.Status(),
		})
	}
}

// SecurityHeaders sets browser hardening headers; hsts adds
// Strict-Transport-Security
func SecurityHeaders(hsts bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		if hsts {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

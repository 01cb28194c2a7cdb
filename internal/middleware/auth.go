package middleware

import (
	"strings"

	"counselmeet/internal/models"
	"counselmeet/internal/utils"
	"counselmeet/pkg/logger"

	"github.com/gin-gonic/gin"
)

// PrincipalKey is the gin context key holding the authenticated models.Principal
const PrincipalKey = "principal"

// TokenValidator verifies bearer tokens issued by the identity service
type TokenValidator interface {
	Validate(token string) (models.Principal, error)
}

var _ TokenValidator = (*utils.TokenIssuer)(nil)

// JWTAuth requires a valid bearer token and stores the principal in the context
func JWTAuth(tokens TokenValidator) gin.HandlerFunc {
	return authenticate(tokens, false)
}

// WebSocketAuth is JWTAuth that also accepts ?token= since browsers cannot
// set headers on WebSocket upgrades
func WebSocketAuth(tokens TokenValidator) gin.HandlerFunc {
	return authenticate(tokens, true)
}

func authenticate(tokens TokenValidator, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok && allowQuery {
			tokenString = c.Query("token")
			ok = tokenString != ""
		}
		if !ok {
			utils.UnauthorizedResponse(c, "Missing or malformed authorization header")
			return
		}

		principal, err := tokens.Validate(tokenString)
		if err != nil {
			logger.LogSecurityEvent("invalid_token", "", c.ClientIP(), map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			utils.UnauthorizedResponse(c, "Invalid token")
			return
		}

		c.Set(PrincipalKey, principal)
		c.Set("user_id", principal.UserID)
		c.Set("role", principal.Role)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader || tokenString == "" {
		return "", false
	}
	return tokenString, true
}

// GetPrincipal returns the principal stored by JWTAuth
func GetPrincipal(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

package middleware

import (
	"strings"

	"ctf_backend/internal/cache"
	"ctf_backend/internal/model"
	"ctf_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the bearer token and stores the claims on the
// request context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			util.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == header {
			util.Unauthorized(c, "authorization header must be a bearer token")
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, secret)
		if err != nil {
			util.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

// RequireRole gates a route to the given roles. Admin passes everything.
func RequireRole(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		if claims == nil {
			util.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}

		if claims.Role == model.Admin {
			c.Next()
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}

		util.Forbidden(c, "insufficient permissions")
		c.Abort()
	}
}

// BlacklistGuard rejects banned players before any scoring operation runs.
func BlacklistGuard(blacklist *cache.BlacklistCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		if claims != nil && blacklist.Has(claims.UserID) {
			util.Forbidden(c, "account is blacklisted")
			c.Abort()
			return
		}
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/pkg/auth"
	"github.com/nexuscrm/salescrm/pkg/constants"
)

// tokenQueryParam carries the token for clients that cannot set headers,
// such as EventSource.
const tokenQueryParam = "access_token"

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		constants.ResponseError: "Unauthorized",
		"message":               message,
		"code":                  "UNAUTHORIZED",
		"data":                  nil,
	})
}

// RequireAuth is a middleware that validates JWT tokens
func RequireAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		if authHeader := c.GetHeader(constants.HeaderAuthorization); authHeader != "" {
			// Extract token (format: "Bearer <token>")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				abortUnauthorized(c, "Invalid authorization header format")
				return
			}
			tokenString = strings.TrimSpace(parts[1])
		} else {
			tokenString = c.Query(tokenQueryParam)
		}
		if tokenString == "" {
			abortUnauthorized(c, "No authorization token provided")
			return
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		c.Set(constants.ContextKeyUser, services.SessionFromClaims(claims))
		c.Next()
	}
}

// RequireAdmin checks if the user has the admin role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(constants.ContextKeyUser)
		user, _ := v.(*models.UserSession)
		if !exists || user == nil {
			abortUnauthorized(c, "User not authenticated")
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				constants.ResponseError: "Forbidden",
				"message":               "Only administrators can access this resource",
				"code":                  "PERMISSION_DENIED",
				"data":                  nil,
			})
			return
		}
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/towerclub/ambassador-server/pkg/common"
)

const (
	// UserIDKey is the gin context key holding the authenticated user id
	UserIDKey = "user_id"
	// UserRoleKey is the gin context key holding the authenticated user role
	UserRoleKey = "user_role"
)

// Claims are the JWT claims issued by the auth service
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the Bearer token and stores the user identity in context
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == header {
			common.ErrorResponse(c, http.StatusUnauthorized, "invalid authorization header")
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			common.ErrorResponse(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserRoleKey, claims.Role)

		c.Next()
	}
}

// AdminOnly rejects requests from non-admin users. Must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(UserRoleKey)
		if role != "admin" {
			common.ErrorResponse(c, http.StatusForbidden, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID extracts the authenticated user id from a gin context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, common.NewUnauthorizedError("no authenticated user")
	}
	idStr, ok := raw.(string)
	if !ok {
		return uuid.Nil, common.NewUnauthorizedError("invalid user id in context")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, common.NewUnauthorizedError("invalid user id in context")
	}
	return id, nil
}

package middleware

import (
	"strings"

	"cera/internal/models"
	"cera/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JWTClaims are the claims issued at login time.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthRequired validates the bearer token and attaches the resolved actor to
// the request context.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c)
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			utils.UnauthorizedResponse(c)
			c.Abort()
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			utils.UnauthorizedResponse(c)
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok {
			utils.UnauthorizedResponse(c)
			c.Abort()
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			utils.UnauthorizedResponse(c)
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Set("role", claims.Role)
		c.Set("username", claims.Username)

		c.Next()
	}
}

// CoordinatorRequired ensures the caller is a coordinator.
func CoordinatorRequired() gin.HandlerFunc {
	return roleRequired(models.UserRoleCoordinator)
}

// VolunteerRequired ensures the caller is a volunteer.
func VolunteerRequired() gin.HandlerFunc {
	return roleRequired(models.UserRoleVolunteer)
}

func roleRequired(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("role")
		if !exists {
			utils.UnauthorizedResponse(c)
			c.Abort()
			return
		}

		roleStr, ok := value.(string)
		if !ok || models.UserRole(roleStr) != role {
			utils.ForbiddenResponse(c)
			c.Abort()
			return
		}

		c.Next()
	}
}

// ActorFromContext reads the identity set by AuthRequired. The second return
// is false on unauthenticated routes.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return models.Actor{}, false
	}

	id, ok := userID.(primitive.ObjectID)
	if !ok {
		return models.Actor{}, false
	}

	actor := models.Actor{ID: id}
	if role, exists := c.Get("role"); exists {
		if roleStr, ok := role.(string); ok {
			actor.Role = models.UserRole(roleStr)
		}
	}
	if username, exists := c.Get("username"); exists {
		if name, ok := username.(string); ok {
			actor.Name = name
		}
	}

	return actor, true
}

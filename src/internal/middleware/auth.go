package middleware

import (
	"net/http"
	"strings"

	"loadhub-core-svc/src/internal/models"
	"loadhub-core-svc/src/internal/response"
	"loadhub-core-svc/src/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Context keys set by RequireAuth.
const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
	ContextTokenID  = "token_id"
)

// AccessVerifier validates access credentials without touching the session store.
type AccessVerifier interface {
	VerifyAccess(accessToken string) (*token.Claims, error)
}

// AuthMiddleware handles authentication and authorization
type AuthMiddleware struct {
	verifier AccessVerifier
}

func NewAuthMiddleware(verifier AccessVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth validates the bearer access token and stores the caller in the context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized,
				"Authorization token is required", "Provide a Bearer access token")
			return
		}

		claims, err := m.verifier.VerifyAccess(tokenString)
		if err != nil {
			logrus.WithError(err).Debug("Access token validation failed")
			response.Error(c, models.ErrInvalidToken)
			return
		}

		c.Set(ContextUserID, claims.UserID())
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextTokenID, claims.ID)

		logrus.WithFields(logrus.Fields{
			"user_id":   claims.UserID(),
			"user_role": claims.Role,
		}).Debug("User authenticated successfully")

		c.Next()
	}
}

// RequireRole admits callers whose role is one of roles. Must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := UserRole(c)
		if role == "" {
			logrus.Error("User role not found in context - ensure RequireAuth middleware runs first")
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized,
				"Authentication required", "Please log in")
			return
		}

		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		logrus.WithFields(logrus.Fields{
			"user_id":   UserID(c),
			"user_role": role,
			"required":  roles,
		}).Warn("User attempted to access endpoint without the required role")

		response.Abort(c, http.StatusForbidden, response.CodeForbidden,
			"Access forbidden", "This action requires role "+strings.Join(roles, " or "))
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func UserRole(c *gin.Context) string {
	return c.GetString(ContextUserRole)
}

// extractToken extracts JWT token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	// Extract token from "Bearer <token>" format
	if !strings.HasPrefix(authHeader, "Bearer ") {
		logrus.Debug("Invalid authorization header format")
		return ""
	}

	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

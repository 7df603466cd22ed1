package response

import (
	"errors"
	"net/http"

	"loadhub-core-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Error codes returned alongside the HTTP status.
const (
	CodeValidation     = "VALIDATION_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeForbidden      = "FORBIDDEN"
	CodeConflict       = "CONFLICT"
	CodeReauthenticate = "REAUTHENTICATE"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeUnavailable    = "SERVICE_UNAVAILABLE"
	CodeRateLimited    = "TOO_MANY_REQUESTS"
	CodeInternal       = "INTERNAL_ERROR"
)

func Success(c *gin.Context, statusCode int, data any, message string) {
	body := gin.H{
		"success": true,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(statusCode, body)
}

// Error maps err onto its HTTP status and writes the error envelope.
func Error(c *gin.Context, err error) {
	status, code, title := classify(err)

	entry := logrus.WithError(err).WithFields(logrus.Fields{
		"status": status,
		"code":   code,
		"route":  c.GetString("route_name"),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Info("Request rejected")
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "An unexpected error occurred"
	}
	Abort(c, status, code, title, message)
}

func Abort(c *gin.Context, statusCode int, code, title, message string) {
	c.AbortWithStatusJSON(statusCode, gin.H{
		"success": false,
		"error":   title,
		"code":    code,
		"message": message,
	})
}

func classify(err error) (int, string, string) {
	switch kind := models.Kind(err); {
	case errors.Is(kind, models.ErrValidation):
		return http.StatusBadRequest, CodeValidation, "Validation failed"
	case errors.Is(kind, models.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "Not found"
	case errors.Is(kind, models.ErrForbidden):
		return http.StatusForbidden, CodeForbidden, "Forbidden"
	case errors.Is(kind, models.ErrConflict):
		return http.StatusConflict, CodeConflict, "Conflict, please refresh and try again"
	case errors.Is(kind, models.ErrRevokedCredential):
		return http.StatusUnauthorized, CodeReauthenticate, "Session revoked, please log in again"
	case errors.Is(kind, models.ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized, "Unauthorized"
	case errors.Is(kind, models.ErrTooManyRequests):
		return http.StatusTooManyRequests, CodeRateLimited, "Too many requests"
	case errors.Is(kind, models.ErrUnavailable):
		return http.StatusServiceUnavailable, CodeUnavailable, "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, CodeInternal, "Internal server error"
	}
}

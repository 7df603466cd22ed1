package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"loadhub-core-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{models.ErrIllegalTransition, http.StatusBadRequest, CodeValidation},
		{models.ErrLoadNotFound, http.StatusNotFound, CodeNotFound},
		{models.ErrNotAssignedDriver, http.StatusForbidden, CodeForbidden},
		{models.ErrLoadConflict, http.StatusConflict, CodeConflict},
		{models.ErrRefreshReuse, http.StatusUnauthorized, CodeReauthenticate},
		{models.ErrInvalidToken, http.StatusUnauthorized, CodeUnauthorized},
		{fmt.Errorf("wrapped: %w", models.ErrDatabaseQuery), http.StatusServiceUnavailable, CodeUnavailable},
		{models.ErrTooManyRequests, http.StatusTooManyRequests, CodeRateLimited},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			Error(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, false, body["success"])
			assert.True(t, c.IsAborted())
		})
	}
}

func TestInternalErrorsDoNotLeakDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("dial tcp 10.0.0.3:27017: refused"))

	assert.NotContains(t, w.Body.String(), "10.0.0.3")
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Success(c, http.StatusCreated, gin.H{"id": "l1"}, "Load created")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Load created","data":{"id":"l1"}}`, w.Body.String())
}

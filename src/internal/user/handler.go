package user

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/middleware"
	"loadhub-core-svc/src/internal/models"
	"loadhub-core-svc/src/internal/response"
	"loadhub-core-svc/src/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	Refresh(c *gin.Context)
	Logout(c *gin.Context)
	ForgotPassword(c *gin.Context)
	ResetPassword(c *gin.Context)
	GetAllUsers(c *gin.Context)
	ActivateUser(c *gin.Context)
	SuspendUser(c *gin.Context)
}

type handler struct {
	config  *config.Configuration
	service Service
}

func NewHandler(cfg *config.Configuration, service Service) Handler {
	return &handler{
		config:  cfg,
		service: service,
	}
}

func (h *handler) timeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}

func clientInfo(c *gin.Context) token.ClientInfo {
	return token.ClientInfo{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
}

func (h *handler) Register(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, models.ErrInvalidParams)
		return
	}

	result, err := h.service.Register(ctx, &req, clientInfo(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result, "User registered successfully")
}

func (h *handler) Login(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, models.ErrInvalidParams)
		return
	}

	result, err := h.service.Login(ctx, &req, clientInfo(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result, "Login successful")
}

func (h *handler) Refresh(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, models.ErrInvalidParams)
		return
	}

	pair, err := h.service.Refresh(ctx, req.RefreshToken, clientInfo(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, pair, "Token refreshed successfully")
}

func (h *handler) Logout(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	if err := h.service.Logout(ctx, middleware.UserID(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, nil, "Logged out successfully")
}

func (h *handler) ForgotPassword(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, models.ErrInvalidParams)
		return
	}

	if err := h.service.ForgotPassword(ctx, req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, nil, "If the account exists, a password reset link has been sent")
}

func (h *handler) ResetPassword(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, models.ErrInvalidParams)
		return
	}

	if err := h.service.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, nil, "Password updated successfully")
}

func (h *handler) GetAllUsers(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	req := &GetAllUsersRequest{
		Page:   parseIntParam(c, "page", 1),
		Limit:  parseIntParam(c, "limit", 20),
		Role:   c.Query("role"),
		Status: c.Query("status"),
		Search: c.Query("search"),
	}

	logrus.WithFields(logrus.Fields{
		"page":          req.Page,
		"limit":         req.Limit,
		"role":          req.Role,
		"status":        req.Status,
		"admin_user_id": middleware.UserID(c),
	}).Info("GetAllUsers request received")

	result, err := h.service.GetAllUsers(ctx, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"users_returned": len(result.Users),
		"total_count":    result.TotalCount,
		"page":           result.Page,
		"total_pages":    result.TotalPages,
	}).Info("GetAllUsers completed successfully")

	response.Success(c, http.StatusOK, result, "Users retrieved successfully")
}

func parseIntParam(c *gin.Context, param string, defaultValue int) int {
	value := c.Query(param)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"param": param,
			"value": value,
			"error": err,
		}).Warn("Invalid integer parameter, using default")

		return defaultValue
	}
	return parsed
}

func (h *handler) ActivateUser(c *gin.Context) {
	h.updateUserStatusHandler(c, StatusActive, "User activated successfully")
}

func (h *handler) SuspendUser(c *gin.Context) {
	h.updateUserStatusHandler(c, StatusSuspended, "User suspended successfully")
}

func (h *handler) updateUserStatusHandler(c *gin.Context, status, successMessage string) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	userID := c.Param("id")
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"status":  status,
	}).Info("Updating user status")

	var err error
	switch status {
	case StatusActive:
		err = h.service.ActivateUser(ctx, userID)
	case StatusSuspended:
		err = h.service.SuspendUser(ctx, userID)
	default:
		err = models.ErrInvalidUserState
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"status":  status,
	}).Info("User status updated successfully")

	response.Success(c, http.StatusOK, nil, successMessage)
}

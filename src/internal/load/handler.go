package load

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"loadhub-core-svc/src/internal/cache"
	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/middleware"
	"loadhub-core-svc/src/internal/models"
	"loadhub-core-svc/src/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Assigner runs the eligibility checked transitions. The assignment
// coordinator satisfies it.
type Assigner interface {
	Accept(ctx context.Context, loadID, ownerID string) (*Load, error)
	AssignDriver(ctx context.Context, loadID, ownerID, driverID string) (*Load, error)
	UpdateStatus(ctx context.Context, loadID, driverID string, status Status, expectedVersion *int64) (*Load, error)
}

type Handler interface {
	CreateLoad(c *gin.Context)
	GetLoad(c *gin.Context)
	ListOpen(c *gin.Context)
	ListMine(c *gin.Context)
	GetStats(c *gin.Context)
	AcceptLoad(c *gin.Context)
	AssignDriver(c *gin.Context)
	UpdateStatus(c *gin.Context)
	CancelLoad(c *gin.Context)
	DeleteLoad(c *gin.Context)
}

type AssignRequest struct {
	DriverID string `json:"driverId"`
}

type StatusRequest struct {
	Status          Status `json:"status"`
	ExpectedVersion *int64 `json:"expectedVersion"`
}

type handler struct {
	config       *config.Configuration
	service      Service
	assigner     Assigner
	cacheService cache.Service
}

func NewHandler(cfg *config.Configuration, service Service, assigner Assigner, cacheService cache.Service) Handler {
	return &handler{
		config:       cfg,
		service:      service,
		assigner:     assigner,
		cacheService: cacheService,
	}
}

func (h *handler) timeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}

func (h *handler) CreateLoad(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, models.ErrInvalidParams)
		return
	}

	l, err := h.service.Create(ctx, middleware.UserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, l, "Load created successfully")
}

func (h *handler) GetLoad(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	l, err := h.service.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, l, "Load retrieved successfully")
}

func (h *handler) ListOpen(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	result, err := h.service.ListOpen(ctx, listRequest(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result, "Open loads retrieved successfully")
}

// ListMine returns the caller's loads: created ones for customers, accepted
// ones for owners and assigned ones for drivers.
func (h *handler) ListMine(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	userID := middleware.UserID(c)
	req := listRequest(c)

	var (
		result *ListResponse
		err    error
	)
	switch middleware.UserRole(c) {
	case models.RoleCustomer:
		result, err = h.service.ListForCustomer(ctx, userID, req)
	case models.RoleOwner:
		result, err = h.service.ListForOwner(ctx, userID, req)
	case models.RoleDriver:
		result, err = h.service.ListForDriver(ctx, userID, req)
	default:
		err = models.ErrForbidden
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result, "Loads retrieved successfully")
}

func (h *handler) GetStats(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	stats, err := h.cacheService.GetLoadStats(ctx)
	if err == nil && stats != nil {
		logrus.Debug("Load statistics retrieved from cache")
		response.Success(c, http.StatusOK, stats, "Load statistics retrieved successfully (from cache)")
		return
	}

	stats, err = h.service.Stats(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.cacheService.SaveLoadStats(ctx, stats); err != nil {
		logrus.WithError(err).Warn("Failed to cache load statistics")
	}

	response.Success(c, http.StatusOK, stats, "Load statistics retrieved successfully")
}

func (h *handler) AcceptLoad(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	l, err := h.assigner.Accept(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, l, "Load accepted successfully")
}

func (h *handler) AssignDriver(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DriverID == "" {
		response.Error(c, models.ErrInvalidParams)
		return
	}

	l, err := h.assigner.AssignDriver(ctx, c.Param("id"), middleware.UserID(c), req.DriverID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, l, "Driver assigned successfully")
}

func (h *handler) UpdateStatus(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		response.Error(c, models.ErrInvalidParams)
		return
	}

	l, err := h.assigner.UpdateStatus(ctx, c.Param("id"), middleware.UserID(c), req.Status, req.ExpectedVersion)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, l, "Load status updated successfully")
}

func (h *handler) CancelLoad(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	l, err := h.service.Cancel(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, l, "Load cancelled successfully")
}

func (h *handler) DeleteLoad(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	if _, err := h.service.SoftDelete(ctx, c.Param("id"), middleware.UserID(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, nil, "Load deleted successfully")
}

func listRequest(c *gin.Context) *ListRequest {
	return &ListRequest{
		Page:  parseIntParam(c, "page", 1),
		Limit: parseIntParam(c, "limit", 0),
	}
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

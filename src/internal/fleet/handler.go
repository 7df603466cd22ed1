package fleet

import (
	"context"
	"net/http"
	"time"

	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/middleware"
	"loadhub-core-svc/src/internal/models"
	"loadhub-core-svc/src/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler interface {
	RegisterVehicle(c *gin.Context)
	ListVehicles(c *gin.Context)
	GetDriverProfile(c *gin.Context)
	SetAvailability(c *gin.Context)
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

func (h *handler) RegisterVehicle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	var req VehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, models.ErrInvalidParams)
		return
	}

	vehicle, err := h.service.RegisterVehicle(ctx, middleware.UserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, vehicle, "Vehicle registered successfully")
}

func (h *handler) ListVehicles(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	vehicles, err := h.service.ListVehicles(ctx, middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	logrus.WithField("count", len(vehicles)).Debug("Vehicles listed")
	response.Success(c, http.StatusOK, vehicles, "Vehicles retrieved successfully")
}

func (h *handler) GetDriverProfile(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	profile, err := h.service.GetDriverProfile(ctx, middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, profile, "Driver profile retrieved successfully")
}

func (h *handler) SetAvailability(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	var req struct {
		IsAvailable *bool `json:"isAvailable"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IsAvailable == nil {
		response.Error(c, models.ErrInvalidParams)
		return
	}

	profile, err := h.service.SetAvailability(ctx, middleware.UserID(c), *req.IsAvailable)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, profile, "Availability updated successfully")
}

package handler

import (
	"net/http"

	"github.com/alure/alure-api/internal/handler/dto"
	"github.com/alure/alure-api/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	activations *service.ActivationService
	logger      *zap.Logger
}

func NewDashboardHandler(activations *service.ActivationService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		activations: activations,
		logger:      logger.Named("DashboardHandler"),
	}
}

func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.activations.Summary(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.DashboardSummaryResponse{
		TotalLicenses:     summary.TotalLicenses,
		RevokedLicenses:   summary.RevokedLicenses,
		TotalActivations:  summary.TotalActivations,
		ActiveActivations: summary.ActiveActivations,
	})
}

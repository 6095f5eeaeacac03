package handler

import (
	"net/http"

	"github.com/alure/alure-api/internal/handler/dto"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/alure/alure-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ModuleHandler struct {
	activations *service.ActivationService
	logger      *zap.Logger
}

func NewModuleHandler(activations *service.ActivationService, logger *zap.Logger) *ModuleHandler {
	return &ModuleHandler{
		activations: activations,
		logger:      logger.Named("ModuleHandler"),
	}
}

func (h *ModuleHandler) GetLicenseModules(c *gin.Context) {
	licenseID, err := uuid.Parse(c.Param("license_id"))
	if err != nil {
		c.Error(ierr.ErrValidation)
		return
	}

	assignments, err := h.activations.GetLicenseModules(c.Request.Context(), licenseID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewModuleAssignmentResponses(assignments))
}

// SetLicenseModules replaces the license's module assignments wholesale and
// re-signs the receipts of its live activations.
func (h *ModuleHandler) SetLicenseModules(c *gin.Context) {
	licenseID, err := uuid.Parse(c.Param("license_id"))
	if err != nil {
		c.Error(ierr.ErrValidation)
		return
	}

	var req dto.SetLicenseModulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	inputs := make([]service.LicenseModuleInput, len(req.Modules))
	for i, m := range req.Modules {
		inputs[i] = service.LicenseModuleInput{
			Key:               m.Key,
			ForceActivation:   m.ForceActivation,
			ForceDeactivation: m.ForceDeactivation,
			Params:            m.Params,
		}
	}

	assignments, err := h.activations.SetLicenseModules(c.Request.Context(), licenseID, inputs)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewModuleAssignmentResponses(assignments))
}

func (h *ModuleHandler) GetActivationModules(c *gin.Context) {
	licenseID, activationID, err := pathIDs(c)
	if err != nil {
		c.Error(err)
		return
	}

	assignments, err := h.activations.GetActivationModules(c.Request.Context(), licenseID, activationID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewModuleAssignmentResponses(assignments))
}

// SetActivationModules grants the activation an explicit module set. This
// flips the activation into restricted mode and returns a fresh receipt.
func (h *ModuleHandler) SetActivationModules(c *gin.Context) {
	licenseID, activationID, err := pathIDs(c)
	if err != nil {
		c.Error(err)
		return
	}

	var req dto.SetActivationModulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	assignments, receipt, err := h.activations.SetActivationModules(c.Request.Context(), licenseID, activationID, req.ModuleKeys)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SetActivationModulesResponse{
		Modules:    dto.NewModuleAssignmentResponses(assignments),
		NewReceipt: receipt,
	})
}

func pathIDs(c *gin.Context) (uuid.UUID, uuid.UUID, error) {
	licenseID, err := uuid.Parse(c.Param("license_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, ierr.ErrValidation
	}
	activationID, err := uuid.Parse(c.Param("activation_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, ierr.ErrValidation
	}
	return licenseID, activationID, nil
}

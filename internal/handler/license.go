package handler

import (
	"net/http"

	"github.com/alure/alure-api/internal/handler/dto"
	"github.com/alure/alure-api/internal/handler/middleware"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/alure/alure-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LicenseHandler struct {
	activations *service.ActivationService
	bulk        *service.BulkService
	auth        *service.AuthService
	logger      *zap.Logger
}

func NewLicenseHandler(activations *service.ActivationService, bulk *service.BulkService, auth *service.AuthService, logger *zap.Logger) *LicenseHandler {
	return &LicenseHandler{
		activations: activations,
		bulk:        bulk,
		auth:        auth,
		logger:      logger.Named("LicenseHandler"),
	}
}

// Activate binds a device to a license and returns a signed receipt.
// Public: clients call this with the raw license key.
func (h *LicenseHandler) Activate(c *gin.Context) {
	var req dto.ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	in := service.ActivateInput{
		LicenseKey: req.LicenseKey,
		DeviceID:   req.DeviceID,
	}
	if req.DeviceMeta != nil {
		in.Hostname = req.DeviceMeta.Hostname
	}

	result, err := h.activations.Activate(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ActivateResponse{
		Receipt:         result.Receipt,
		ActivationID:    result.ActivationID,
		ExpiresAt:       result.ExpiresAt,
		GracePeriodDays: result.GracePeriodDays,
		ServerTime:      result.ServerTime,
	})
}

// Verify checks a receipt and, when valid, rotates it. Never returns an error
// status for an invalid receipt; invalidity is data, not failure.
func (h *LicenseHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	result, err := h.activations.Verify(c.Request.Context(), req.Receipt, req.DeviceID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.VerifyResponse{
		Valid:      result.Valid,
		Reason:     result.Reason,
		NewReceipt: result.NewReceipt,
		ExpiresAt:  result.ExpiresAt,
		ServerTime: result.ServerTime,
	})
}

func (h *LicenseHandler) Create(c *gin.Context) {
	var req dto.CreateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	lic, key, err := h.activations.CreateLicense(c.Request.Context(), service.CreateLicenseInput{
		ProjectID:      req.ProjectID,
		Plan:           req.Plan,
		MaxActivations: req.MaxActivations,
		DurationDays:   req.DurationDays,
		Notes:          req.Notes,
		ModuleKeys:     req.ModuleKeys,
	})
	if err != nil {
		c.Error(err)
		return
	}

	// The raw key is shown exactly once; only its hash is stored.
	c.JSON(http.StatusCreated, dto.CreateLicenseResponse{
		LicenseID:  lic.ID,
		LicenseKey: key,
	})
}

func (h *LicenseHandler) BulkCreate(c *gin.Context) {
	var req dto.BulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	result, err := h.bulk.CreateMany(c.Request.Context(), service.BulkCreateInput{
		ProjectID:      req.ProjectID,
		Plan:           req.Plan,
		MaxActivations: req.MaxActivations,
		DurationDays:   req.DurationDays,
		Notes:          req.Notes,
		Recipients:     req.Recipients,
		ModuleKeys:     req.ModuleKeys,
	})
	if err != nil {
		c.Error(err)
		return
	}

	status := http.StatusCreated
	if len(result.Created) == 0 {
		status = http.StatusOK
	}
	c.JSON(status, dto.NewBulkCreateResponse(result))
}

func (h *LicenseHandler) Revoke(c *gin.Context) {
	var req dto.RevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	result, err := h.activations.Revoke(c.Request.Context(), req.LicenseID, req.ActivationID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.RevokeResponse{
		Revoked:    result.Revoked,
		ServerTime: result.ServerTime,
	})
}

func (h *LicenseHandler) List(c *gin.Context) {
	projectID, err := uuid.Parse(c.Query("project_id"))
	if err != nil {
		c.Error(ierr.ErrValidation)
		return
	}

	licenses, err := h.activations.ListLicenses(c.Request.Context(), projectID)
	if err != nil {
		c.Error(err)
		return
	}

	responses := make([]*dto.LicenseResponse, len(licenses))
	for i, lic := range licenses {
		responses[i] = dto.NewLicenseResponse(lic)
	}
	c.JSON(http.StatusOK, responses)
}

func (h *LicenseHandler) ListActivations(c *gin.Context) {
	licenseID, err := uuid.Parse(c.Param("license_id"))
	if err != nil {
		c.Error(ierr.ErrValidation)
		return
	}

	infos, err := h.activations.ListActivations(c.Request.Context(), licenseID)
	if err != nil {
		c.Error(err)
		return
	}

	responses := make([]*dto.ActivationResponse, len(infos))
	for i, info := range infos {
		responses[i] = dto.NewActivationResponse(info)
	}
	c.JSON(http.StatusOK, responses)
}

// RevealHostname returns the decrypted hostname of one activation. The caller
// must re-enter their password; listings only ever show the masked form.
func (h *LicenseHandler) RevealHostname(c *gin.Context) {
	licenseID, err := uuid.Parse(c.Param("license_id"))
	if err != nil {
		c.Error(ierr.ErrValidation)
		return
	}
	activationID, err := uuid.Parse(c.Param("activation_id"))
	if err != nil {
		c.Error(ierr.ErrValidation)
		return
	}

	var req dto.RevealHostnameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.Error(ierr.ErrUnauthorized)
		return
	}
	if err := h.auth.CheckPassword(c.Request.Context(), claims.Username, req.Password); err != nil {
		c.Error(err)
		return
	}

	hostname, err := h.activations.RevealHostname(c.Request.Context(), licenseID, activationID)
	if err != nil {
		c.Error(err)
		return
	}

	h.logger.Info("hostname revealed",
		zap.String("username", claims.Username),
		zap.String("activation_id", activationID.String()),
	)
	c.JSON(http.StatusOK, dto.RevealHostnameResponse{Hostname: hostname})
}

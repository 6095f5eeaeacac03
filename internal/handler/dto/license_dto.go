package dto

import (
	"time"

	"github.com/alure/alure-api/internal/domain/license"
	"github.com/alure/alure-api/internal/service"
	"github.com/google/uuid"
)

type DeviceMeta struct {
	Hostname string `json:"hostname"`
}

type ActivateRequest struct {
	LicenseKey string      `json:"license_key" binding:"required"`
	DeviceID   string      `json:"device_id" binding:"required"`
	AppVersion string      `json:"app_version"`
	DeviceMeta *DeviceMeta `json:"device_meta"`
}

type ActivateResponse struct {
	Receipt         string     `json:"receipt"`
	ActivationID    uuid.UUID  `json:"activation_id"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	GracePeriodDays int        `json:"grace_period_days"`
	ServerTime      time.Time  `json:"server_time"`
}

type VerifyRequest struct {
	Receipt  string `json:"receipt" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
}

type VerifyResponse struct {
	Valid      bool       `json:"valid"`
	Reason     string     `json:"reason,omitempty"`
	NewReceipt string     `json:"new_receipt,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ServerTime time.Time  `json:"server_time"`
}

type CreateLicenseRequest struct {
	ProjectID      uuid.UUID `json:"project_id" binding:"required"`
	Plan           string    `json:"plan" binding:"required"`
	MaxActivations int       `json:"max_activations" binding:"gte=0"`
	DurationDays   int       `json:"duration_days" binding:"gte=0"`
	Notes          string    `json:"notes"`
	ModuleKeys     []string  `json:"module_keys"`
}

type CreateLicenseResponse struct {
	LicenseID  uuid.UUID `json:"license_id"`
	LicenseKey string    `json:"license_key"`
}

type BulkCreateRequest struct {
	ProjectID      uuid.UUID `json:"project_id" binding:"required"`
	Plan           string    `json:"plan" binding:"required"`
	MaxActivations int       `json:"max_activations" binding:"gte=0"`
	DurationDays   int       `json:"duration_days" binding:"gte=0"`
	Notes          string    `json:"notes"`
	Recipients     []string  `json:"recipients" binding:"required,min=1,dive,email"`
	ModuleKeys     []string  `json:"module_keys"`
}

type BulkCreatedEntry struct {
	Email      string    `json:"email"`
	LicenseID  uuid.UUID `json:"license_id"`
	LicenseKey string    `json:"license_key"`
}

type BulkFailedEntry struct {
	Email      string     `json:"email"`
	Error      string     `json:"error"`
	LicenseID  *uuid.UUID `json:"license_id,omitempty"`
	LicenseKey string     `json:"license_key,omitempty"`
}

type BulkCreateResponse struct {
	Created []BulkCreatedEntry `json:"created"`
	Failed  []BulkFailedEntry  `json:"failed"`
}

func NewBulkCreateResponse(result *service.BulkCreateResult) *BulkCreateResponse {
	resp := &BulkCreateResponse{
		Created: make([]BulkCreatedEntry, len(result.Created)),
		Failed:  make([]BulkFailedEntry, len(result.Failed)),
	}
	for i, c := range result.Created {
		resp.Created[i] = BulkCreatedEntry{Email: c.Email, LicenseID: c.LicenseID, LicenseKey: c.LicenseKey}
	}
	for i, f := range result.Failed {
		resp.Failed[i] = BulkFailedEntry{Email: f.Email, Error: f.Error, LicenseID: f.LicenseID, LicenseKey: f.LicenseKey}
	}
	return resp
}

type RevokeRequest struct {
	LicenseID    *uuid.UUID `json:"license_id"`
	ActivationID *uuid.UUID `json:"activation_id"`
	Reason       string     `json:"reason"`
}

type RevokeResponse struct {
	Revoked    bool      `json:"revoked"`
	ServerTime time.Time `json:"server_time"`
}

type LicenseResponse struct {
	ID             uuid.UUID  `json:"id"`
	ProjectID      uuid.UUID  `json:"project_id"`
	Plan           string     `json:"plan"`
	MaxActivations int        `json:"max_activations"`
	DurationDays   int        `json:"duration_days"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Revoked        bool       `json:"revoked"`
	Notes          *string    `json:"notes,omitempty"`
	BulkCreated    bool       `json:"bulk_created"`
	CreatedAt      time.Time  `json:"created_at"`
}

func NewLicenseResponse(lic *license.License) *LicenseResponse {
	resp := &LicenseResponse{
		ID:             lic.ID,
		ProjectID:      lic.ProjectID,
		Plan:           lic.Plan,
		MaxActivations: lic.MaxActivations,
		DurationDays:   lic.DurationDays,
		Revoked:        lic.Revoked,
		BulkCreated:    lic.BulkCreated,
		CreatedAt:      lic.CreatedAt,
	}
	if lic.ExpiresAt.Valid {
		expiry := lic.ExpiresAt.Time
		resp.ExpiresAt = &expiry
	}
	if lic.Notes.Valid {
		resp.Notes = &lic.Notes.String
	}
	return resp
}

type ActivationResponse struct {
	ActivationID   uuid.UUID  `json:"activation_id"`
	DeviceIDHash   string     `json:"device_id_hash"`
	Revoked        bool       `json:"revoked"`
	CreatedAt      time.Time  `json:"created_at"`
	LastSeenAt     *time.Time `json:"last_seen_at,omitempty"`
	HostnameMasked string     `json:"hostname_masked,omitempty"`
}

func NewActivationResponse(info *service.ActivationInfo) *ActivationResponse {
	return &ActivationResponse{
		ActivationID:   info.ActivationID,
		DeviceIDHash:   info.DeviceIDHash,
		Revoked:        info.Revoked,
		CreatedAt:      info.CreatedAt,
		LastSeenAt:     info.LastSeenAt,
		HostnameMasked: info.HostnameMasked,
	}
}

type RevealHostnameRequest struct {
	Password string `json:"password" binding:"required"`
}

type RevealHostnameResponse struct {
	Hostname string `json:"hostname"`
}

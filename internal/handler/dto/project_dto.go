package dto

import (
	"time"

	"github.com/alure/alure-api/internal/domain/module"
	"github.com/google/uuid"
)

type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

type ProjectResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateModuleRequest struct {
	Key           string                 `json:"key" binding:"required"`
	Name          string                 `json:"name" binding:"required"`
	DefaultParams map[string]interface{} `json:"default_params"`
}

type ModuleResponse struct {
	ID            uuid.UUID              `json:"id"`
	Key           string                 `json:"key"`
	Name          string                 `json:"name"`
	DefaultParams map[string]interface{} `json:"default_params,omitempty"`
}

func NewModuleResponse(mod *module.Module) *ModuleResponse {
	return &ModuleResponse{
		ID:            mod.ID,
		Key:           mod.Key,
		Name:          mod.Name,
		DefaultParams: mod.DefaultParams,
	}
}

type UpsertPlanRequest struct {
	Name            string `json:"name" binding:"required"`
	GracePeriodDays int    `json:"grace_period_days" binding:"gte=0"`
}

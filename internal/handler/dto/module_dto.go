package dto

import (
	"github.com/alure/alure-api/internal/service"
	"github.com/google/uuid"
)

type ModuleAssignmentResponse struct {
	ModuleID          uuid.UUID              `json:"module_id"`
	Key               string                 `json:"key"`
	Name              string                 `json:"name"`
	Enabled           bool                   `json:"enabled"`
	ForceActivation   bool                   `json:"force_activation"`
	ForceDeactivation bool                   `json:"force_deactivation"`
	Params            map[string]interface{} `json:"params,omitempty"`
}

func NewModuleAssignmentResponses(assignments []*service.ModuleAssignment) []*ModuleAssignmentResponse {
	responses := make([]*ModuleAssignmentResponse, len(assignments))
	for i, a := range assignments {
		responses[i] = &ModuleAssignmentResponse{
			ModuleID:          a.ModuleID,
			Key:               a.Key,
			Name:              a.Name,
			Enabled:           a.Enabled,
			ForceActivation:   a.ForceActivation,
			ForceDeactivation: a.ForceDeactivation,
			Params:            a.Params,
		}
	}
	return responses
}

type LicenseModuleEntry struct {
	Key               string                 `json:"key" binding:"required"`
	ForceActivation   bool                   `json:"force_activation"`
	ForceDeactivation bool                   `json:"force_deactivation"`
	Params            map[string]interface{} `json:"params"`
}

type SetLicenseModulesRequest struct {
	Modules []LicenseModuleEntry `json:"modules" binding:"dive"`
}

type SetActivationModulesRequest struct {
	// An empty list is allowed: it restricts the activation to forced-on
	// modules only.
	ModuleKeys []string `json:"module_keys"`
}

type SetActivationModulesResponse struct {
	Modules    []*ModuleAssignmentResponse `json:"modules"`
	NewReceipt string                      `json:"new_receipt"`
}

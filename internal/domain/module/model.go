package module

import (
	"time"

	"github.com/google/uuid"
)

// Module is a project-defined feature flag. Its key is unique within the
// project and is what receipts and admin calls reference.
type Module struct {
	ID            uuid.UUID              `db:"id"`
	ProjectID     uuid.UUID              `db:"project_id"`
	Key           string                 `db:"key"`
	Name          string                 `db:"name"`
	DefaultParams map[string]interface{} `db:"default_params"`
	CreatedAt     time.Time              `db:"created_at"`
}

// LicenseModule is a license-level entitlement grant with optional forced
// on/off overrides and a parameter override map.
type LicenseModule struct {
	LicenseID         uuid.UUID              `db:"license_id"`
	ModuleID          uuid.UUID              `db:"module_id"`
	ForceActivation   bool                   `db:"force_activation"`
	ForceDeactivation bool                   `db:"force_deactivation"`
	Params            map[string]interface{} `db:"params"`
}

// ActivationModule is a per-activation grant, consulted only once the
// activation is in restricted mode.
type ActivationModule struct {
	ActivationID uuid.UUID              `db:"activation_id"`
	ModuleID     uuid.UUID              `db:"module_id"`
	Params       map[string]interface{} `db:"params"`
}

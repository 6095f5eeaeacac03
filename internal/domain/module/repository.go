package module

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, mod *Module) (uuid.UUID, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Module, error)

	ListLicenseModules(ctx context.Context, licenseID uuid.UUID) ([]*LicenseModule, error)
	// ReplaceLicenseModules deletes all existing license-module rows for the
	// license and recreates them from rows, in one atomic unit.
	ReplaceLicenseModules(ctx context.Context, licenseID uuid.UUID, rows []*LicenseModule) error

	ListActivationModules(ctx context.Context, activationID uuid.UUID) ([]*ActivationModule, error)
	// ReplaceActivationModules replaces all activation-level overrides and
	// flips the activation into restricted mode, in one atomic unit.
	ReplaceActivationModules(ctx context.Context, activationID uuid.UUID, rows []*ActivationModule) error

	// DeleteActivationOverrides scrubs lingering activation overrides for the
	// given modules across every activation of the license, so a forced-off
	// entitlement cannot resurface.
	DeleteActivationOverrides(ctx context.Context, licenseID uuid.UUID, moduleIDs []uuid.UUID) error
}

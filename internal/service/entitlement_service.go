package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/alure/alure-api/internal/domain/activation"
	"github.com/alure/alure-api/internal/domain/module"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResolvedModule is one entry of the concrete feature list embedded in
// receipts and shown to admins.
type ResolvedModule struct {
	ModuleID uuid.UUID
	Key      string
	Name     string
	Params   map[string]interface{}
}

type EntitlementService struct {
	modules module.Repository
	logger  *zap.Logger
}

func NewEntitlementService(modules module.Repository, logger *zap.Logger) *EntitlementService {
	return &EntitlementService{
		modules: modules,
		logger:  logger.Named("EntitlementService"),
	}
}

// Resolve merges project module defaults, license-level overrides, and
// per-activation overrides. Precedence, highest first: force_deactivation
// excludes; force_activation includes; a restricted activation requires an
// explicit activation-module row; an unrestricted activation gets every
// non-forced-off license module. Params merge default < license < activation.
// act may be nil (resolution at issuance time, unrestricted).
func (s *EntitlementService) Resolve(ctx context.Context, projectID, licenseID uuid.UUID, act *activation.Activation) ([]ResolvedModule, error) {
	projectModules, err := s.modules.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project modules: %w", err)
	}
	byID := make(map[uuid.UUID]*module.Module, len(projectModules))
	for _, mod := range projectModules {
		byID[mod.ID] = mod
	}

	licenseModules, err := s.modules.ListLicenseModules(ctx, licenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load license modules: %w", err)
	}

	restricted := act != nil && act.ModulesRestricted
	overrides := make(map[uuid.UUID]*module.ActivationModule)
	if act != nil {
		activationModules, err := s.modules.ListActivationModules(ctx, act.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load activation modules: %w", err)
		}
		for _, am := range activationModules {
			overrides[am.ModuleID] = am
		}
	}

	resolved := make([]ResolvedModule, 0, len(licenseModules))
	for _, lm := range licenseModules {
		mod, ok := byID[lm.ModuleID]
		if !ok {
			// License module referencing a module deleted from the project.
			s.logger.Warn("License references unknown module",
				zap.String("license_id", licenseID.String()),
				zap.String("module_id", lm.ModuleID.String()),
			)
			continue
		}

		if lm.ForceDeactivation {
			continue
		}

		override, hasOverride := overrides[lm.ModuleID]
		if !lm.ForceActivation && restricted && !hasOverride {
			continue
		}

		params := mergeParams(mod.DefaultParams, lm.Params)
		if hasOverride {
			params = mergeParams(params, override.Params)
		}

		resolved = append(resolved, ResolvedModule{
			ModuleID: mod.ID,
			Key:      mod.Key,
			Name:     mod.Name,
			Params:   params,
		})
	}

	sort.Slice(resolved, func(i, j int) bool { return resolved[i].Key < resolved[j].Key })
	return resolved, nil
}

// mergeParams overlays overlay onto base, last writer per key wins. Returns
// nil when both inputs are empty so empty param maps stay out of receipts.
func mergeParams(base, overlay map[string]interface{}) map[string]interface{} {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	merged := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

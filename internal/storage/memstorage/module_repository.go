package memstorage

import (
	"context"

	"github.com/alure/alure-api/internal/domain/module"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/google/uuid"
)

type ModuleRepository struct {
	store *Store
}

func NewModuleRepository(store *Store) *ModuleRepository {
	return &ModuleRepository{store: store}
}

var _ module.Repository = (*ModuleRepository)(nil)

func (r *ModuleRepository) Create(ctx context.Context, mod *module.Module) (uuid.UUID, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.modules {
		if existing.ProjectID == mod.ProjectID && existing.Key == mod.Key {
			return uuid.Nil, ierr.ErrConflict
		}
	}

	if mod.ID == uuid.Nil {
		mod.ID = uuid.New()
	}
	stored := *mod
	stored.DefaultParams = copyParams(mod.DefaultParams)
	r.store.modules[mod.ID] = &stored
	return mod.ID, nil
}

func (r *ModuleRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*module.Module, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result := make([]*module.Module, 0)
	for _, mod := range r.store.modules {
		if mod.ProjectID == projectID {
			found := *mod
			found.DefaultParams = copyParams(mod.DefaultParams)
			result = append(result, &found)
		}
	}
	return result, nil
}

func (r *ModuleRepository) ListLicenseModules(ctx context.Context, licenseID uuid.UUID) ([]*module.LicenseModule, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result := make([]*module.LicenseModule, 0)
	for key, lm := range r.store.licenseModules {
		if key.licenseID == licenseID {
			found := *lm
			found.Params = copyParams(lm.Params)
			result = append(result, &found)
		}
	}
	return result, nil
}

func (r *ModuleRepository) ReplaceLicenseModules(ctx context.Context, licenseID uuid.UUID, mods []*module.LicenseModule) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for key := range r.store.licenseModules {
		if key.licenseID == licenseID {
			delete(r.store.licenseModules, key)
		}
	}
	for _, lm := range mods {
		stored := *lm
		stored.LicenseID = licenseID
		stored.Params = copyParams(lm.Params)
		r.store.licenseModules[licenseModuleKey{licenseID: licenseID, moduleID: lm.ModuleID}] = &stored
	}
	return nil
}

func (r *ModuleRepository) ListActivationModules(ctx context.Context, activationID uuid.UUID) ([]*module.ActivationModule, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result := make([]*module.ActivationModule, 0)
	for key, am := range r.store.activationModules {
		if key.activationID == activationID {
			found := *am
			found.Params = copyParams(am.Params)
			result = append(result, &found)
		}
	}
	return result, nil
}

func (r *ModuleRepository) ReplaceActivationModules(ctx context.Context, activationID uuid.UUID, mods []*module.ActivationModule) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	act, ok := r.store.activations[activationID]
	if !ok {
		return ierr.ErrActivationNotFound
	}

	for key := range r.store.activationModules {
		if key.activationID == activationID {
			delete(r.store.activationModules, key)
		}
	}
	for _, am := range mods {
		stored := *am
		stored.ActivationID = activationID
		stored.Params = copyParams(am.Params)
		r.store.activationModules[activationModuleKey{activationID: activationID, moduleID: am.ModuleID}] = &stored
	}

	act.ModulesRestricted = true
	return nil
}

func (r *ModuleRepository) DeleteActivationOverrides(ctx context.Context, licenseID uuid.UUID, moduleIDs []uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	banned := make(map[uuid.UUID]bool, len(moduleIDs))
	for _, id := range moduleIDs {
		banned[id] = true
	}

	for key := range r.store.activationModules {
		if !banned[key.moduleID] {
			continue
		}
		act, ok := r.store.activations[key.activationID]
		if ok && act.LicenseID == licenseID {
			delete(r.store.activationModules, key)
		}
	}
	return nil
}

func copyParams(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

package memstorage

import (
	"sync"

	"github.com/alure/alure-api/internal/domain/activation"
	"github.com/alure/alure-api/internal/domain/license"
	"github.com/alure/alure-api/internal/domain/module"
	"github.com/alure/alure-api/internal/domain/project"
	"github.com/google/uuid"
)

type licenseModuleKey struct {
	licenseID uuid.UUID
	moduleID  uuid.UUID
}

type activationModuleKey struct {
	activationID uuid.UUID
	moduleID     uuid.UUID
}

// Store holds the shared state and single lock backing the in-memory
// repositories. Holding one mutex across all tables gives the same
// serializability the Postgres implementation gets from row locks, which is
// exactly what the activate-path tests need.
type Store struct {
	mu                sync.Mutex
	projects          map[uuid.UUID]*project.Project
	plans             map[uuid.UUID]map[string]*project.Plan
	licenses          map[uuid.UUID]*license.License
	activations       map[uuid.UUID]*activation.Activation
	modules           map[uuid.UUID]*module.Module
	licenseModules    map[licenseModuleKey]*module.LicenseModule
	activationModules map[activationModuleKey]*module.ActivationModule
}

func NewStore() *Store {
	return &Store{
		projects:          make(map[uuid.UUID]*project.Project),
		plans:             make(map[uuid.UUID]map[string]*project.Plan),
		licenses:          make(map[uuid.UUID]*license.License),
		activations:       make(map[uuid.UUID]*activation.Activation),
		modules:           make(map[uuid.UUID]*module.Module),
		licenseModules:    make(map[licenseModuleKey]*module.LicenseModule),
		activationModules: make(map[activationModuleKey]*module.ActivationModule),
	}
}

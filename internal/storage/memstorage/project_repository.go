package memstorage

import (
	"context"
	"time"

	"github.com/alure/alure-api/internal/domain/project"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/google/uuid"
)

type ProjectRepository struct {
	store *Store
}

func NewProjectRepository(store *Store) *ProjectRepository {
	return &ProjectRepository{store: store}
}

var _ project.Repository = (*ProjectRepository)(nil)

func (r *ProjectRepository) Create(ctx context.Context, proj *project.Project) (uuid.UUID, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.projects {
		if existing.Name == proj.Name {
			return uuid.Nil, ierr.ErrConflict
		}
	}

	if proj.ID == uuid.Nil {
		proj.ID = uuid.New()
	}
	proj.CreatedAt = time.Now()

	stored := *proj
	r.store.projects[proj.ID] = &stored
	return proj.ID, nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*project.Project, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	proj, ok := r.store.projects[id]
	if !ok {
		return nil, ierr.ErrProjectNotFound
	}
	found := *proj
	return &found, nil
}

func (r *ProjectRepository) UpsertPlan(ctx context.Context, plan *project.Plan) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	byName, ok := r.store.plans[plan.ProjectID]
	if !ok {
		byName = make(map[string]*project.Plan)
		r.store.plans[plan.ProjectID] = byName
	}
	stored := *plan
	byName[plan.Name] = &stored
	return nil
}

func (r *ProjectRepository) FindPlan(ctx context.Context, projectID uuid.UUID, name string) (*project.Plan, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	byName, ok := r.store.plans[projectID]
	if !ok {
		return nil, ierr.ErrPlanNotFound
	}
	plan, ok := byName[name]
	if !ok {
		return nil, ierr.ErrPlanNotFound
	}
	found := *plan
	return &found, nil
}

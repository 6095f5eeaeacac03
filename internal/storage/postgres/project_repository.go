package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/alure/alure-api/internal/domain/project"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger.Named("ProjectRepository"),
	}
}

var _ project.Repository = (*ProjectRepository)(nil)

func (r *ProjectRepository) Create(ctx context.Context, proj *project.Project) (uuid.UUID, error) {
	if proj.ID == uuid.Nil {
		proj.ID = uuid.New()
	}

	var insertedID uuid.UUID
	err := r.db.QueryRow(ctx, `
        INSERT INTO projects (id, name) VALUES ($1, $2) RETURNING id
    `, proj.ID, proj.Name).Scan(&insertedID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return uuid.Nil, fmt.Errorf("%w: project name %q already exists", ierr.ErrConflict, proj.Name)
		}
		r.logger.Error("Failed to create project", zap.String("name", proj.Name), zap.Error(err))
		return uuid.Nil, fmt.Errorf("database error on create project: %w", err)
	}

	return insertedID, nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*project.Project, error) {
	var proj project.Project
	err := r.db.QueryRow(ctx, `
        SELECT id, name, created_at FROM projects WHERE id = $1
    `, id).Scan(&proj.ID, &proj.Name, &proj.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ierr.ErrProjectNotFound
		}
		r.logger.Error("Failed to scan project row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return &proj, nil
}

func (r *ProjectRepository) UpsertPlan(ctx context.Context, plan *project.Plan) error {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}

	_, err := r.db.Exec(ctx, `
        INSERT INTO plans (id, project_id, name, grace_period_days)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (project_id, name)
        DO UPDATE SET grace_period_days = EXCLUDED.grace_period_days
    `, plan.ID, plan.ProjectID, plan.Name, plan.GracePeriodDays)
	if err != nil {
		r.logger.Error("Failed to upsert plan", zap.String("name", plan.Name), zap.Error(err))
		return fmt.Errorf("database error on upsert plan: %w", err)
	}
	return nil
}

func (r *ProjectRepository) FindPlan(ctx context.Context, projectID uuid.UUID, name string) (*project.Plan, error) {
	var plan project.Plan
	err := r.db.QueryRow(ctx, `
        SELECT id, project_id, name, grace_period_days
        FROM plans
        WHERE project_id = $1 AND name = $2
    `, projectID, name).Scan(&plan.ID, &plan.ProjectID, &plan.Name, &plan.GracePeriodDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ierr.ErrPlanNotFound
		}
		r.logger.Error("Failed to scan plan row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return &plan, nil
}

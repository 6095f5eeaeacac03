package project

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, proj *Project) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Project, error)
	UpsertPlan(ctx context.Context, plan *Plan) error
	FindPlan(ctx context.Context, projectID uuid.UUID, name string) (*Plan, error)
}

package project

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// Plan carries the per-plan verification grace period. Licenses reference
// plans by name; a license whose plan has no row falls back to the default
// grace period.
type Plan struct {
	ID              uuid.UUID `db:"id"`
	ProjectID       uuid.UUID `db:"project_id"`
	Name            string    `db:"name"`
	GracePeriodDays int       `db:"grace_period_days"`
}

// DefaultGracePeriodDays applies when a license's plan is not registered.
const DefaultGracePeriodDays = 14

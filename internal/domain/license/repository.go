package license

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, lic *License) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*License, error)
	FindByKeyHash(ctx context.Context, keyHash string) (*License, error)
	// FindActiveByRecipient locates a non-revoked, non-expired license already
	// issued to a recipient hash for the same project and plan (bulk dedup).
	FindActiveByRecipient(ctx context.Context, projectID uuid.UUID, plan, recipientHash string, now time.Time) (*License, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*License, error)
	// Revoke flips the license and cascades revocation to all of its
	// activations in one atomic unit. Idempotent.
	Revoke(ctx context.Context, id uuid.UUID) error
	Counts(ctx context.Context) (total int64, revoked int64, err error)
}

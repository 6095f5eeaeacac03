package activation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts the activation while holding a lock on the owning
	// license row, so the "count active, then insert under the cap" check is
	// serializable. maxActivations 0 means unlimited. Returns
	// ierr.ErrActivationExists when a non-revoked activation already exists
	// for (license, device hash) and ierr.ErrActivationLimitReached when the
	// cap is hit.
	Create(ctx context.Context, act *Activation, maxActivations int) error
	FindByID(ctx context.Context, id uuid.UUID) (*Activation, error)
	FindByReceiptHash(ctx context.Context, receiptHash string) (*Activation, error)
	ListByLicense(ctx context.Context, licenseID uuid.UUID) ([]*Activation, error)
	// Refresh stores the hash of a freshly issued receipt and bumps last_seen_at.
	Refresh(ctx context.Context, id uuid.UUID, receiptHash string, seenAt time.Time) error
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
	// ScrubHostnames clears hostname ciphertexts of activations revoked
	// before the cutoff. Returns the number of rows scrubbed.
	ScrubHostnames(ctx context.Context, revokedBefore time.Time) (int64, error)
	Counts(ctx context.Context) (total int64, active int64, err error)
}

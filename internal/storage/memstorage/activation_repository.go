package memstorage

import (
	"context"
	"time"

	"github.com/alure/alure-api/internal/domain/activation"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/google/uuid"
)

type ActivationRepository struct {
	store *Store
}

func NewActivationRepository(store *Store) *ActivationRepository {
	return &ActivationRepository{store: store}
}

var _ activation.Repository = (*ActivationRepository)(nil)

// Create performs the whole check-then-insert sequence under the store lock,
// matching the serializability the Postgres implementation gets from the
// license row lock.
func (r *ActivationRepository) Create(ctx context.Context, act *activation.Activation, maxActivations int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	lic, ok := r.store.licenses[act.LicenseID]
	if !ok {
		return ierr.ErrLicenseNotFound
	}
	if lic.Revoked {
		return ierr.ErrLicenseRevoked
	}

	active := 0
	for _, existing := range r.store.activations {
		if existing.LicenseID != act.LicenseID || existing.Revoked {
			continue
		}
		if existing.DeviceIDHash == act.DeviceIDHash {
			return ierr.ErrActivationExists
		}
		active++
	}
	if maxActivations > 0 && active >= maxActivations {
		return ierr.ErrActivationLimitReached
	}

	if act.ID == uuid.Nil {
		act.ID = uuid.New()
	}
	act.LastSeenAt.Time = act.CreatedAt
	act.LastSeenAt.Valid = true

	stored := *act
	r.store.activations[act.ID] = &stored
	return nil
}

func (r *ActivationRepository) FindByID(ctx context.Context, id uuid.UUID) (*activation.Activation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	act, ok := r.store.activations[id]
	if !ok {
		return nil, ierr.ErrActivationNotFound
	}
	found := *act
	return &found, nil
}

func (r *ActivationRepository) FindByReceiptHash(ctx context.Context, receiptHash string) (*activation.Activation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, act := range r.store.activations {
		if act.ReceiptHash == receiptHash {
			found := *act
			return &found, nil
		}
	}
	return nil, ierr.ErrActivationNotFound
}

func (r *ActivationRepository) ListByLicense(ctx context.Context, licenseID uuid.UUID) ([]*activation.Activation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result := make([]*activation.Activation, 0)
	for _, act := range r.store.activations {
		if act.LicenseID == licenseID {
			found := *act
			result = append(result, &found)
		}
	}
	return result, nil
}

func (r *ActivationRepository) Refresh(ctx context.Context, id uuid.UUID, receiptHash string, seenAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	act, ok := r.store.activations[id]
	if !ok {
		return ierr.ErrActivationNotFound
	}
	act.ReceiptHash = receiptHash
	act.LastSeenAt.Time = seenAt
	act.LastSeenAt.Valid = true
	return nil
}

func (r *ActivationRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	act, ok := r.store.activations[id]
	if !ok {
		return ierr.ErrActivationNotFound
	}
	if !act.Revoked {
		act.Revoked = true
		act.RevokedAt.Time = at
		act.RevokedAt.Valid = true
	}
	return nil
}

func (r *ActivationRepository) ScrubHostnames(ctx context.Context, revokedBefore time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var scrubbed int64
	for _, act := range r.store.activations {
		if act.Revoked && act.HostnameCiphertext.Valid && act.RevokedAt.Valid && act.RevokedAt.Time.Before(revokedBefore) {
			act.HostnameCiphertext.String = ""
			act.HostnameCiphertext.Valid = false
			scrubbed++
		}
	}
	return scrubbed, nil
}

func (r *ActivationRepository) Counts(ctx context.Context) (int64, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var total, active int64
	for _, act := range r.store.activations {
		total++
		if !act.Revoked {
			active++
		}
	}
	return total, active, nil
}

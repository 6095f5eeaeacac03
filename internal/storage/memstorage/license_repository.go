package memstorage

import (
	"context"
	"time"

	"github.com/alure/alure-api/internal/domain/license"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/google/uuid"
)

// LicenseRepository is a mutex-guarded in-memory mirror of the Postgres
// implementation.
type LicenseRepository struct {
	store *Store
}

func NewLicenseRepository(store *Store) *LicenseRepository {
	return &LicenseRepository{store: store}
}

var _ license.Repository = (*LicenseRepository)(nil)

func (r *LicenseRepository) Create(ctx context.Context, lic *license.License) (uuid.UUID, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if lic.ID == uuid.Nil {
		lic.ID = uuid.New()
	}
	for _, existing := range r.store.licenses {
		if existing.KeyHash == lic.KeyHash {
			return uuid.Nil, ierr.ErrConflict
		}
	}

	now := time.Now()
	lic.CreatedAt = now
	lic.UpdatedAt = now

	stored := *lic
	r.store.licenses[lic.ID] = &stored
	return lic.ID, nil
}

func (r *LicenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*license.License, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	lic, ok := r.store.licenses[id]
	if !ok {
		return nil, ierr.ErrLicenseNotFound
	}
	found := *lic
	return &found, nil
}

func (r *LicenseRepository) FindByKeyHash(ctx context.Context, keyHash string) (*license.License, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, lic := range r.store.licenses {
		if lic.KeyHash == keyHash {
			found := *lic
			return &found, nil
		}
	}
	return nil, ierr.ErrLicenseNotFound
}

func (r *LicenseRepository) FindActiveByRecipient(ctx context.Context, projectID uuid.UUID, plan, recipientHash string, now time.Time) (*license.License, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, lic := range r.store.licenses {
		if lic.ProjectID != projectID || lic.Plan != plan || lic.Revoked {
			continue
		}
		if !lic.RecipientEmailHash.Valid || lic.RecipientEmailHash.String != recipientHash {
			continue
		}
		if lic.ExpiresAt.Valid && !lic.ExpiresAt.Time.After(now) {
			continue
		}
		found := *lic
		return &found, nil
	}
	return nil, ierr.ErrLicenseNotFound
}

func (r *LicenseRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*license.License, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result := make([]*license.License, 0)
	for _, lic := range r.store.licenses {
		if lic.ProjectID == projectID {
			found := *lic
			result = append(result, &found)
		}
	}
	return result, nil
}

func (r *LicenseRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	lic, ok := r.store.licenses[id]
	if !ok {
		return ierr.ErrLicenseNotFound
	}
	lic.Revoked = true
	lic.UpdatedAt = time.Now()

	for _, act := range r.store.activations {
		if act.LicenseID == id && !act.Revoked {
			act.Revoked = true
			act.RevokedAt.Time = time.Now()
			act.RevokedAt.Valid = true
		}
	}
	return nil
}

func (r *LicenseRepository) Counts(ctx context.Context) (int64, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var total, revoked int64
	for _, lic := range r.store.licenses {
		total++
		if lic.Revoked {
			revoked++
		}
	}
	return total, revoked, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alure/alure-api/internal/domain/license"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const licenseColumns = `
    id, project_id, key_hash, plan, max_activations, duration_days,
    expires_at, revoked, notes, bulk_created, recipient_email_hash,
    created_at, updated_at`

type LicenseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLicenseRepository(db *pgxpool.Pool, logger *zap.Logger) *LicenseRepository {
	return &LicenseRepository{
		db:     db,
		logger: logger.Named("LicenseRepository"),
	}
}

var _ license.Repository = (*LicenseRepository)(nil)

func (r *LicenseRepository) Create(ctx context.Context, lic *license.License) (uuid.UUID, error) {
	query := `
        INSERT INTO licenses (
            id, project_id, key_hash, plan, max_activations, duration_days,
            expires_at, notes, bulk_created, recipient_email_hash
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
        ) RETURNING id
    `
	if lic.ID == uuid.Nil {
		lic.ID = uuid.New()
	}

	var insertedID uuid.UUID
	err := r.db.QueryRow(ctx, query,
		lic.ID,
		lic.ProjectID,
		lic.KeyHash,
		lic.Plan,
		lic.MaxActivations,
		lic.DurationDays,
		lic.ExpiresAt,
		lic.Notes,
		lic.BulkCreated,
		lic.RecipientEmailHash,
	).Scan(&insertedID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.logger.Warn("Attempted to create license with duplicate key hash",
				zap.String("constraint", pgErr.ConstraintName),
			)
			return uuid.Nil, fmt.Errorf("%w: license key already exists", ierr.ErrConflict)
		}

		r.logger.Error("Failed to create license in database", zap.Error(err))
		return uuid.Nil, fmt.Errorf("database error on create license: %w", err)
	}

	r.logger.Info("License created", zap.String("id", insertedID.String()))
	return insertedID, nil
}

func (r *LicenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*license.License, error) {
	query := `SELECT` + licenseColumns + ` FROM licenses WHERE id = $1`
	return r.scanLicense(r.db.QueryRow(ctx, query, id))
}

func (r *LicenseRepository) FindByKeyHash(ctx context.Context, keyHash string) (*license.License, error) {
	query := `SELECT` + licenseColumns + ` FROM licenses WHERE key_hash = $1`
	return r.scanLicense(r.db.QueryRow(ctx, query, keyHash))
}

func (r *LicenseRepository) FindActiveByRecipient(ctx context.Context, projectID uuid.UUID, plan, recipientHash string, now time.Time) (*license.License, error) {
	query := `
        SELECT` + licenseColumns + `
        FROM licenses
        WHERE project_id = $1
          AND plan = $2
          AND recipient_email_hash = $3
          AND revoked = FALSE
          AND (expires_at IS NULL OR expires_at > $4)
        ORDER BY created_at DESC
        LIMIT 1
    `
	return r.scanLicense(r.db.QueryRow(ctx, query, projectID, plan, recipientHash, now))
}

func (r *LicenseRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*license.License, error) {
	query := `
        SELECT` + licenseColumns + `
        FROM licenses
        WHERE project_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to query list of licenses", zap.Error(err))
		return nil, fmt.Errorf("database error on list licenses: %w", err)
	}
	defer rows.Close()

	licenses := make([]*license.License, 0)
	for rows.Next() {
		lic, err := scanLicenseRow(rows)
		if err != nil {
			r.logger.Error("Failed to scan license row during list", zap.Error(err))
			return nil, fmt.Errorf("database scan error during list: %w", err)
		}
		licenses = append(licenses, lic)
	}

	if err = rows.Err(); err != nil {
		r.logger.Error("Error iterating license rows", zap.Error(err))
		return nil, fmt.Errorf("database iteration error on list licenses: %w", err)
	}

	return licenses, nil
}

// Revoke flips the license and every activation under it in one transaction.
// Revoking an already-revoked license is a no-op that still succeeds.
func (r *LicenseRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin revoke transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx, `UPDATE licenses SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to revoke license", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on revoke license: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: license %s", ierr.ErrLicenseNotFound, id)
	}

	_, err = tx.Exec(ctx, `
        UPDATE activations SET revoked = TRUE, revoked_at = NOW()
        WHERE license_id = $1 AND revoked = FALSE
    `, id)
	if err != nil {
		r.logger.Error("Failed to cascade revocation to activations", zap.String("license_id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on cascade revoke: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit revoke transaction: %w", err)
	}

	r.logger.Info("License revoked with activation cascade", zap.String("id", id.String()))
	return nil
}

func (r *LicenseRepository) Counts(ctx context.Context) (int64, int64, error) {
	var total, revoked int64
	err := r.db.QueryRow(ctx, `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE revoked)
        FROM licenses
    `).Scan(&total, &revoked)
	if err != nil {
		r.logger.Error("Failed to count licenses", zap.Error(err))
		return 0, 0, fmt.Errorf("database error on count licenses: %w", err)
	}
	return total, revoked, nil
}

func (r *LicenseRepository) scanLicense(row pgx.Row) (*license.License, error) {
	lic, err := scanLicenseRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ierr.ErrLicenseNotFound
		}
		r.logger.Error("Failed to scan license row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return lic, nil
}

func scanLicenseRow(row pgx.Row) (*license.License, error) {
	var lic license.License
	err := row.Scan(
		&lic.ID,
		&lic.ProjectID,
		&lic.KeyHash,
		&lic.Plan,
		&lic.MaxActivations,
		&lic.DurationDays,
		&lic.ExpiresAt,
		&lic.Revoked,
		&lic.Notes,
		&lic.BulkCreated,
		&lic.RecipientEmailHash,
		&lic.CreatedAt,
		&lic.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lic, nil
}

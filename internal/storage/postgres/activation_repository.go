package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alure/alure-api/internal/domain/activation"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const activationColumns = `
    id, license_id, device_id_hash, receipt_hash, revoked, modules_restricted,
    hostname_ciphertext, created_at, last_seen_at, revoked_at`

type ActivationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewActivationRepository(db *pgxpool.Pool, logger *zap.Logger) *ActivationRepository {
	return &ActivationRepository{
		db:     db,
		logger: logger.Named("ActivationRepository"),
	}
}

var _ activation.Repository = (*ActivationRepository)(nil)

// Create inserts the activation inside a transaction that locks the owning
// license row first. The row lock serializes the count-then-insert sequence,
// so two racing activations cannot jointly exceed the cap.
func (r *ActivationRepository) Create(ctx context.Context, act *activation.Activation, maxActivations int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin activation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var licenseRevoked bool
	err = tx.QueryRow(ctx, `SELECT revoked FROM licenses WHERE id = $1 FOR UPDATE`, act.LicenseID).Scan(&licenseRevoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ierr.ErrLicenseNotFound
		}
		return fmt.Errorf("database error locking license row: %w", err)
	}
	if licenseRevoked {
		return ierr.ErrLicenseRevoked
	}

	var existing int
	err = tx.QueryRow(ctx, `
        SELECT COUNT(*) FROM activations
        WHERE license_id = $1 AND device_id_hash = $2 AND revoked = FALSE
    `, act.LicenseID, act.DeviceIDHash).Scan(&existing)
	if err != nil {
		return fmt.Errorf("database error checking existing activation: %w", err)
	}
	if existing > 0 {
		return ierr.ErrActivationExists
	}

	if maxActivations > 0 {
		var active int
		err = tx.QueryRow(ctx, `
            SELECT COUNT(*) FROM activations
            WHERE license_id = $1 AND revoked = FALSE
        `, act.LicenseID).Scan(&active)
		if err != nil {
			return fmt.Errorf("database error counting active activations: %w", err)
		}
		if active >= maxActivations {
			return ierr.ErrActivationLimitReached
		}
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO activations (
            id, license_id, device_id_hash, receipt_hash, hostname_ciphertext, created_at, last_seen_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $6)
    `,
		act.ID,
		act.LicenseID,
		act.DeviceIDHash,
		act.ReceiptHash,
		act.HostnameCiphertext,
		act.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Partial unique index on (license_id, device_id_hash) WHERE NOT revoked.
			return ierr.ErrActivationExists
		}
		r.logger.Error("Failed to insert activation", zap.String("license_id", act.LicenseID.String()), zap.Error(err))
		return fmt.Errorf("database error on create activation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit activation transaction: %w", err)
	}

	r.logger.Info("Activation created",
		zap.String("id", act.ID.String()),
		zap.String("license_id", act.LicenseID.String()),
	)
	return nil
}

func (r *ActivationRepository) FindByID(ctx context.Context, id uuid.UUID) (*activation.Activation, error) {
	query := `SELECT` + activationColumns + ` FROM activations WHERE id = $1`
	return r.scanActivation(r.db.QueryRow(ctx, query, id))
}

func (r *ActivationRepository) FindByReceiptHash(ctx context.Context, receiptHash string) (*activation.Activation, error) {
	query := `SELECT` + activationColumns + ` FROM activations WHERE receipt_hash = $1`
	return r.scanActivation(r.db.QueryRow(ctx, query, receiptHash))
}

func (r *ActivationRepository) ListByLicense(ctx context.Context, licenseID uuid.UUID) ([]*activation.Activation, error) {
	query := `
        SELECT` + activationColumns + `
        FROM activations
        WHERE license_id = $1
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query, licenseID)
	if err != nil {
		r.logger.Error("Failed to query activations", zap.Error(err))
		return nil, fmt.Errorf("database error on list activations: %w", err)
	}
	defer rows.Close()

	activations := make([]*activation.Activation, 0)
	for rows.Next() {
		act, err := scanActivationRow(rows)
		if err != nil {
			r.logger.Error("Failed to scan activation row during list", zap.Error(err))
			return nil, fmt.Errorf("database scan error during list: %w", err)
		}
		activations = append(activations, act)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on list activations: %w", err)
	}
	return activations, nil
}

func (r *ActivationRepository) Refresh(ctx context.Context, id uuid.UUID, receiptHash string, seenAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx, `
        UPDATE activations SET receipt_hash = $1, last_seen_at = $2 WHERE id = $3
    `, receiptHash, seenAt, id)
	if err != nil {
		r.logger.Error("Failed to refresh activation receipt", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on refresh activation: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: activation %s", ierr.ErrActivationNotFound, id)
	}
	return nil
}

func (r *ActivationRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	cmdTag, err := r.db.Exec(ctx, `
        UPDATE activations SET revoked = TRUE, revoked_at = $1
        WHERE id = $2 AND revoked = FALSE
    `, at, id)
	if err != nil {
		r.logger.Error("Failed to revoke activation", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on revoke activation: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		// Already revoked or missing: distinguish so revoke stays idempotent
		// for existing rows but missing ids still surface.
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM activations WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("database error on revoke activation: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: activation %s", ierr.ErrActivationNotFound, id)
		}
	}
	return nil
}

func (r *ActivationRepository) ScrubHostnames(ctx context.Context, revokedBefore time.Time) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `
        UPDATE activations SET hostname_ciphertext = NULL
        WHERE revoked = TRUE
          AND hostname_ciphertext IS NOT NULL
          AND revoked_at IS NOT NULL
          AND revoked_at < $1
    `, revokedBefore)
	if err != nil {
		r.logger.Error("Failed to scrub hostnames", zap.Error(err))
		return 0, fmt.Errorf("database error on scrub hostnames: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}

func (r *ActivationRepository) Counts(ctx context.Context) (int64, int64, error) {
	var total, active int64
	err := r.db.QueryRow(ctx, `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT revoked)
        FROM activations
    `).Scan(&total, &active)
	if err != nil {
		r.logger.Error("Failed to count activations", zap.Error(err))
		return 0, 0, fmt.Errorf("database error on count activations: %w", err)
	}
	return total, active, nil
}

func (r *ActivationRepository) scanActivation(row pgx.Row) (*activation.Activation, error) {
	act, err := scanActivationRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ierr.ErrActivationNotFound
		}
		r.logger.Error("Failed to scan activation row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return act, nil
}

func scanActivationRow(row pgx.Row) (*activation.Activation, error) {
	var act activation.Activation
	err := row.Scan(
		&act.ID,
		&act.LicenseID,
		&act.DeviceIDHash,
		&act.ReceiptHash,
		&act.Revoked,
		&act.ModulesRestricted,
		&act.HostnameCiphertext,
		&act.CreatedAt,
		&act.LastSeenAt,
		&act.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	return &act, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alure/alure-api/internal/domain/module"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type ModuleRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewModuleRepository(db *pgxpool.Pool, logger *zap.Logger) *ModuleRepository {
	return &ModuleRepository{
		db:     db,
		logger: logger.Named("ModuleRepository"),
	}
}

var _ module.Repository = (*ModuleRepository)(nil)

func (r *ModuleRepository) Create(ctx context.Context, mod *module.Module) (uuid.UUID, error) {
	if mod.ID == uuid.Nil {
		mod.ID = uuid.New()
	}

	params, err := marshalParams(mod.DefaultParams)
	if err != nil {
		return uuid.Nil, err
	}

	var insertedID uuid.UUID
	err = r.db.QueryRow(ctx, `
        INSERT INTO modules (id, project_id, key, name, default_params)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `, mod.ID, mod.ProjectID, mod.Key, mod.Name, params).Scan(&insertedID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return uuid.Nil, fmt.Errorf("%w: module key %q already exists in project", ierr.ErrConflict, mod.Key)
		}
		r.logger.Error("Failed to create module", zap.String("key", mod.Key), zap.Error(err))
		return uuid.Nil, fmt.Errorf("database error on create module: %w", err)
	}

	return insertedID, nil
}

func (r *ModuleRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*module.Module, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, project_id, key, name, default_params, created_at
        FROM modules
        WHERE project_id = $1
        ORDER BY key ASC
    `, projectID)
	if err != nil {
		r.logger.Error("Failed to query modules", zap.Error(err))
		return nil, fmt.Errorf("database error on list modules: %w", err)
	}
	defer rows.Close()

	modules := make([]*module.Module, 0)
	for rows.Next() {
		var mod module.Module
		var params []byte
		if err := rows.Scan(&mod.ID, &mod.ProjectID, &mod.Key, &mod.Name, &params, &mod.CreatedAt); err != nil {
			return nil, fmt.Errorf("database scan error on list modules: %w", err)
		}
		if mod.DefaultParams, err = unmarshalParams(params); err != nil {
			return nil, err
		}
		modules = append(modules, &mod)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on list modules: %w", err)
	}
	return modules, nil
}

func (r *ModuleRepository) ListLicenseModules(ctx context.Context, licenseID uuid.UUID) ([]*module.LicenseModule, error) {
	rows, err := r.db.Query(ctx, `
        SELECT license_id, module_id, force_activation, force_deactivation, params
        FROM license_modules
        WHERE license_id = $1
    `, licenseID)
	if err != nil {
		r.logger.Error("Failed to query license modules", zap.Error(err))
		return nil, fmt.Errorf("database error on list license modules: %w", err)
	}
	defer rows.Close()

	result := make([]*module.LicenseModule, 0)
	for rows.Next() {
		var lm module.LicenseModule
		var params []byte
		if err := rows.Scan(&lm.LicenseID, &lm.ModuleID, &lm.ForceActivation, &lm.ForceDeactivation, &params); err != nil {
			return nil, fmt.Errorf("database scan error on list license modules: %w", err)
		}
		if lm.Params, err = unmarshalParams(params); err != nil {
			return nil, err
		}
		result = append(result, &lm)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on list license modules: %w", err)
	}
	return result, nil
}

// ReplaceLicenseModules implements the replace-all semantics: existing rows
// for the license are deleted, then recreated from the request.
func (r *ModuleRepository) ReplaceLicenseModules(ctx context.Context, licenseID uuid.UUID, mods []*module.LicenseModule) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin replace transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM license_modules WHERE license_id = $1`, licenseID); err != nil {
		return fmt.Errorf("database error clearing license modules: %w", err)
	}

	for _, lm := range mods {
		params, err := marshalParams(lm.Params)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
            INSERT INTO license_modules (license_id, module_id, force_activation, force_deactivation, params)
            VALUES ($1, $2, $3, $4, $5)
        `, licenseID, lm.ModuleID, lm.ForceActivation, lm.ForceDeactivation, params)
		if err != nil {
			return fmt.Errorf("database error inserting license module: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit replace transaction: %w", err)
	}
	return nil
}

func (r *ModuleRepository) ListActivationModules(ctx context.Context, activationID uuid.UUID) ([]*module.ActivationModule, error) {
	rows, err := r.db.Query(ctx, `
        SELECT activation_id, module_id, params
        FROM activation_modules
        WHERE activation_id = $1
    `, activationID)
	if err != nil {
		r.logger.Error("Failed to query activation modules", zap.Error(err))
		return nil, fmt.Errorf("database error on list activation modules: %w", err)
	}
	defer rows.Close()

	result := make([]*module.ActivationModule, 0)
	for rows.Next() {
		var am module.ActivationModule
		var params []byte
		if err := rows.Scan(&am.ActivationID, &am.ModuleID, &params); err != nil {
			return nil, fmt.Errorf("database scan error on list activation modules: %w", err)
		}
		if am.Params, err = unmarshalParams(params); err != nil {
			return nil, err
		}
		result = append(result, &am)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on list activation modules: %w", err)
	}
	return result, nil
}

// ReplaceActivationModules replaces all overrides for the activation and
// flips it into restricted mode. There is no path back to unrestricted.
func (r *ModuleRepository) ReplaceActivationModules(ctx context.Context, activationID uuid.UUID, mods []*module.ActivationModule) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin replace transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM activation_modules WHERE activation_id = $1`, activationID); err != nil {
		return fmt.Errorf("database error clearing activation modules: %w", err)
	}

	for _, am := range mods {
		params, err := marshalParams(am.Params)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
            INSERT INTO activation_modules (activation_id, module_id, params)
            VALUES ($1, $2, $3)
        `, activationID, am.ModuleID, params)
		if err != nil {
			return fmt.Errorf("database error inserting activation module: %w", err)
		}
	}

	cmdTag, err := tx.Exec(ctx, `UPDATE activations SET modules_restricted = TRUE WHERE id = $1`, activationID)
	if err != nil {
		return fmt.Errorf("database error restricting activation: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: activation %s", ierr.ErrActivationNotFound, activationID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit replace transaction: %w", err)
	}
	return nil
}

func (r *ModuleRepository) DeleteActivationOverrides(ctx context.Context, licenseID uuid.UUID, moduleIDs []uuid.UUID) error {
	if len(moduleIDs) == 0 {
		return nil
	}

	_, err := r.db.Exec(ctx, `
        DELETE FROM activation_modules
        WHERE module_id = ANY($1)
          AND activation_id IN (SELECT id FROM activations WHERE license_id = $2)
    `, moduleIDs, licenseID)
	if err != nil {
		r.logger.Error("Failed to scrub activation overrides", zap.String("license_id", licenseID.String()), zap.Error(err))
		return fmt.Errorf("database error scrubbing activation overrides: %w", err)
	}
	return nil
}

func marshalParams(params map[string]interface{}) ([]byte, error) {
	if params == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	return data, nil
}

func unmarshalParams(data []byte) (map[string]interface{}, error) {
	if len(data) == 0 {
		return map[string]interface{}{}, nil
	}
	var params map[string]interface{}
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return params, nil
}

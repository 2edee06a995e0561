package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garyjia/toolcrib/internal/application/port"
	"github.com/garyjia/toolcrib/internal/domain/entity"
	"github.com/garyjia/toolcrib/internal/domain/workflow"
)

const resourceColumns = `resource_id, code, name, current_status_id, current_location_id,
	cumulative_usage, lifetime_limit, maintenance_interval, updated_at`

// ResourceRepository implements port.ResourceRepository
type ResourceRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewResourceRepository creates a new resource repository
func NewResourceRepository(db *sqlx.DB, logger *zap.Logger) *ResourceRepository {
	return &ResourceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a resource and sets its ID
func (r *ResourceRepository) Create(ctx context.Context, res *entity.Resource) error {
	if res.UpdatedAt.IsZero() {
		res.UpdatedAt = time.Now().UTC()
	}

	ex := getExecutor(ctx, r.db)
	query := ex.Rebind(`
		INSERT INTO resource (
			code, name, current_status_id, current_location_id,
			cumulative_usage, lifetime_limit, maintenance_interval, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING resource_id`)

	err := ex.QueryRowxContext(ctx, query,
		res.Code,
		res.Name,
		res.StatusID,
		res.LocationID,
		res.CumulativeUsage,
		res.LifetimeLimit,
		res.MaintenanceInterval,
		res.UpdatedAt,
	).Scan(&res.ID)
	if err != nil {
		r.logger.Error("Failed to create resource", zap.String("code", res.Code), zap.Error(err))
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

// GetByID returns the resource, or nil when it does not exist
func (r *ResourceRepository) GetByID(ctx context.Context, id int64) (*entity.Resource, error) {
	ex := getExecutor(ctx, r.db)

	var res entity.Resource
	err := sqlx.GetContext(ctx, ex, &res, ex.Rebind(`SELECT `+resourceColumns+` FROM resource WHERE resource_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get resource", zap.Int64("resource_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return &res, nil
}

// List returns resources ordered by code, optionally filtered by status
func (r *ResourceRepository) List(ctx context.Context, statusID *int64, limit, offset int) ([]*entity.Resource, error) {
	ex := getExecutor(ctx, r.db)

	query := `SELECT ` + resourceColumns + ` FROM resource`
	var args []interface{}
	if statusID != nil {
		query += ` WHERE current_status_id = ?`
		args = append(args, *statusID)
	}
	query += ` ORDER BY code LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var out []*entity.Resource
	if err := sqlx.SelectContext(ctx, ex, &out, ex.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to list resources", zap.Error(err))
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return out, nil
}

// GetStatus reads the current status id inside the caller's transaction
func (r *ResourceRepository) GetStatus(ctx context.Context, id int64) (int64, error) {
	tx, err := requireTx(ctx)
	if err != nil {
		return 0, err
	}

	var statusID int64
	err = tx.QueryRowxContext(ctx, tx.Rebind(`SELECT current_status_id FROM resource WHERE resource_id = ?`), id).Scan(&statusID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: resource %d", workflow.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to read resource status", zap.Int64("resource_id", id), zap.Error(err))
		return 0, fmt.Errorf("failed to read resource status: %w", err)
	}
	return statusID, nil
}

// CompareAndSetStatus moves the resource to newStatusID only if it is still
// at expectedStatusID. Usage and location changes ride on the same statement.
func (r *ResourceRepository) CompareAndSetStatus(ctx context.Context, id, expectedStatusID, newStatusID int64, update entity.ResourceUpdate) (bool, error) {
	tx, err := requireTx(ctx)
	if err != nil {
		return false, err
	}

	query := tx.Rebind(`
		UPDATE resource
		SET current_status_id = ?,
			current_location_id = COALESCE(?, current_location_id),
			cumulative_usage = cumulative_usage + ?,
			updated_at = ?
		WHERE resource_id = ? AND current_status_id = ?`)

	result, err := tx.ExecContext(ctx, query,
		newStatusID,
		update.LocationID,
		update.UsageDelta,
		time.Now().UTC(),
		id,
		expectedStatusID,
	)
	if err != nil {
		r.logger.Error("Failed to update resource status",
			zap.Int64("resource_id", id),
			zap.Int64("expected_status_id", expectedStatusID),
			zap.Int64("new_status_id", newStatusID),
			zap.Error(err))
		return false, fmt.Errorf("failed to update resource status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affectedOne(n), nil
}

var _ port.ResourceRepository = (*ResourceRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garyjia/toolcrib/internal/application/port"
	"github.com/garyjia/toolcrib/internal/domain/entity"
)

const maintenanceColumns = `task_id, resource_id, kind, technician_id, outcome_status_id,
	created_at, started_at, completed_at, problem_description, actions_taken,
	cost, replaced_parts, notes`

// MaintenanceRepository implements port.MaintenanceRepository
type MaintenanceRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewMaintenanceRepository creates a new maintenance repository
func NewMaintenanceRepository(db *sqlx.DB, logger *zap.Logger) *MaintenanceRepository {
	return &MaintenanceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a maintenance task and sets its ID
func (r *MaintenanceRepository) Create(ctx context.Context, task *entity.MaintenanceRecord) error {
	ex := getExecutor(ctx, r.db)
	query := ex.Rebind(`
		INSERT INTO maintenance_record (
			resource_id, kind, technician_id, outcome_status_id, created_at,
			problem_description, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING task_id`)

	err := ex.QueryRowxContext(ctx, query,
		task.ResourceID,
		string(task.Kind),
		task.TechnicianID,
		task.StatusID,
		task.CreatedAt,
		task.ProblemDescription,
		task.Notes,
	).Scan(&task.ID)
	if err != nil {
		r.logger.Error("Failed to create maintenance task", zap.Int64("resource_id", task.ResourceID), zap.Error(err))
		return fmt.Errorf("failed to create maintenance task: %w", err)
	}
	return nil
}

// GetByID returns the task, or nil when it does not exist
func (r *MaintenanceRepository) GetByID(ctx context.Context, id int64) (*entity.MaintenanceRecord, error) {
	ex := getExecutor(ctx, r.db)

	var task entity.MaintenanceRecord
	err := sqlx.GetContext(ctx, ex, &task, ex.Rebind(`SELECT `+maintenanceColumns+` FROM maintenance_record WHERE task_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get maintenance task", zap.Int64("task_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get maintenance task: %w", err)
	}
	return &task, nil
}

// ListByResource returns the resource's tasks newest first
func (r *MaintenanceRepository) ListByResource(ctx context.Context, resourceID int64, limit int) ([]*entity.MaintenanceRecord, error) {
	ex := getExecutor(ctx, r.db)
	query := ex.Rebind(`SELECT ` + maintenanceColumns + ` FROM maintenance_record
		WHERE resource_id = ? ORDER BY created_at DESC, task_id DESC LIMIT ?`)

	var out []*entity.MaintenanceRecord
	if err := sqlx.SelectContext(ctx, ex, &out, query, resourceID, limit); err != nil {
		r.logger.Error("Failed to list maintenance tasks", zap.Int64("resource_id", resourceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list maintenance tasks: %w", err)
	}
	return out, nil
}

// CompareAndSetStatus moves the task to newStatusID only if it is still at
// expectedStatusID, writing the non-empty fields of update in the same statement.
func (r *MaintenanceRepository) CompareAndSetStatus(ctx context.Context, id, expectedStatusID, newStatusID int64, update entity.MaintenanceUpdate) (bool, error) {
	tx, err := requireTx(ctx)
	if err != nil {
		return false, err
	}

	set := []string{"outcome_status_id = ?"}
	args := []interface{}{newStatusID}
	add := func(column string, value interface{}) {
		set = append(set, column+" = ?")
		args = append(args, value)
	}
	if update.StartedAt != nil {
		add("started_at", *update.StartedAt)
	}
	if update.CompletedAt != nil {
		add("completed_at", *update.CompletedAt)
	}
	if update.ActionsTaken != nil {
		add("actions_taken", *update.ActionsTaken)
	}
	if update.Cost != nil {
		add("cost", *update.Cost)
	}
	if len(update.ReplacedParts) > 0 {
		add("replaced_parts", update.ReplacedParts)
	}
	if update.Notes != nil {
		add("notes", *update.Notes)
	}
	args = append(args, id, expectedStatusID)

	query := tx.Rebind(`UPDATE maintenance_record SET ` + strings.Join(set, ", ") + ` WHERE task_id = ? AND outcome_status_id = ?`)
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update maintenance status",
			zap.Int64("task_id", id),
			zap.Int64("expected_status_id", expectedStatusID),
			zap.Int64("new_status_id", newStatusID),
			zap.Error(err))
		return false, fmt.Errorf("failed to update maintenance status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affectedOne(n), nil
}

// CountOpen counts tasks on resourceID whose status is one of openStatusIDs
func (r *MaintenanceRepository) CountOpen(ctx context.Context, resourceID int64, openStatusIDs []int64) (int, error) {
	if len(openStatusIDs) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`SELECT COUNT(*) FROM maintenance_record WHERE resource_id = ? AND outcome_status_id IN (?)`, resourceID, openStatusIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to build open task query: %w", err)
	}

	ex := getExecutor(ctx, r.db)
	var n int
	if err := sqlx.GetContext(ctx, ex, &n, ex.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to count open maintenance tasks", zap.Int64("resource_id", resourceID), zap.Error(err))
		return 0, fmt.Errorf("failed to count open maintenance tasks: %w", err)
	}
	return n, nil
}

var _ port.MaintenanceRepository = (*MaintenanceRepository)(nil)

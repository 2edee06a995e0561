package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garyjia/toolcrib/internal/application/port"
	"github.com/garyjia/toolcrib/internal/domain/entity"
)

const historyColumns = `history_id, workflow_kind, workflow_id, resource_id, actor_id,
	trigger_name, from_status, to_status, resource_from_status, resource_to_status,
	remarks, occurred_at`

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlx.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a transition record. Called inside the transition's
// transaction so the audit row commits or rolls back with it.
func (r *HistoryRepository) Create(ctx context.Context, rec *entity.TransitionRecord) error {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}

	ex := getExecutor(ctx, r.db)
	query := ex.Rebind(`
		INSERT INTO transition_history (
			workflow_kind, workflow_id, resource_id, actor_id, trigger_name,
			from_status, to_status, resource_from_status, resource_to_status,
			remarks, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING history_id`)

	err := ex.QueryRowxContext(ctx, query,
		string(rec.WorkflowKind),
		rec.WorkflowID,
		rec.ResourceID,
		rec.ActorID,
		rec.Trigger,
		rec.FromStatus,
		rec.ToStatus,
		rec.ResourceFromStatus,
		rec.ResourceToStatus,
		rec.Remarks,
		rec.OccurredAt,
	).Scan(&rec.ID)
	if err != nil {
		r.logger.Error("Failed to record transition",
			zap.String("workflow_kind", string(rec.WorkflowKind)),
			zap.Int64("workflow_id", rec.WorkflowID),
			zap.Error(err))
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

// ListByResource returns the newest transitions touching resourceID
func (r *HistoryRepository) ListByResource(ctx context.Context, resourceID int64, limit int) ([]*entity.TransitionRecord, error) {
	ex := getExecutor(ctx, r.db)
	query := ex.Rebind(`SELECT ` + historyColumns + ` FROM transition_history
		WHERE resource_id = ? ORDER BY occurred_at DESC, history_id DESC LIMIT ?`)

	var out []*entity.TransitionRecord
	if err := sqlx.SelectContext(ctx, ex, &out, query, resourceID, limit); err != nil {
		r.logger.Error("Failed to list resource history", zap.Int64("resource_id", resourceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list resource history: %w", err)
	}
	return out, nil
}

// ListByWorkflow returns one workflow's transitions in the order they happened
func (r *HistoryRepository) ListByWorkflow(ctx context.Context, kind entity.WorkflowKind, workflowID int64) ([]*entity.TransitionRecord, error) {
	ex := getExecutor(ctx, r.db)
	query := ex.Rebind(`SELECT ` + historyColumns + ` FROM transition_history
		WHERE workflow_kind = ? AND workflow_id = ? ORDER BY history_id`)

	var out []*entity.TransitionRecord
	if err := sqlx.SelectContext(ctx, ex, &out, query, string(kind), workflowID); err != nil {
		r.logger.Error("Failed to list workflow history",
			zap.String("workflow_kind", string(kind)),
			zap.Int64("workflow_id", workflowID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list workflow history: %w", err)
	}
	return out, nil
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)

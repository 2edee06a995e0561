package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garyjia/toolcrib/internal/application/port"
	"github.com/garyjia/toolcrib/internal/domain/entity"
)

const loanColumns = `loan_id, resource_id, requester_id, approver_id, status_id,
	submitted_at, approved_at, checked_out_at, checked_out_by, returned_at, returned_by,
	expected_return_at, destination_equipment, production_order, estimated_usage,
	remarks, overdue_notified_at`

// LoanRepository implements port.LoanRepository
type LoanRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *sqlx.DB, logger *zap.Logger) *LoanRepository {
	return &LoanRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a loan record and sets its ID
func (r *LoanRepository) Create(ctx context.Context, loan *entity.LoanRecord) error {
	ex := getExecutor(ctx, r.db)
	query := ex.Rebind(`
		INSERT INTO loan_record (
			resource_id, requester_id, status_id, submitted_at, expected_return_at,
			destination_equipment, production_order, estimated_usage, remarks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING loan_id`)

	err := ex.QueryRowxContext(ctx, query,
		loan.ResourceID,
		loan.RequesterID,
		loan.StatusID,
		loan.SubmittedAt,
		loan.ExpectedReturnAt,
		loan.DestinationEquipment,
		loan.ProductionOrder,
		loan.EstimatedUsage,
		loan.Remarks,
	).Scan(&loan.ID)
	if err != nil {
		r.logger.Error("Failed to create loan", zap.Int64("resource_id", loan.ResourceID), zap.Error(err))
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetByID returns the loan, or nil when it does not exist
func (r *LoanRepository) GetByID(ctx context.Context, id int64) (*entity.LoanRecord, error) {
	ex := getExecutor(ctx, r.db)

	var loan entity.LoanRecord
	err := sqlx.GetContext(ctx, ex, &loan, ex.Rebind(`SELECT `+loanColumns+` FROM loan_record WHERE loan_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get loan", zap.Int64("loan_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return &loan, nil
}

// List returns loans newest first
func (r *LoanRepository) List(ctx context.Context, filter port.LoanFilter) ([]*entity.LoanRecord, error) {
	ex := getExecutor(ctx, r.db)

	var where []string
	var args []interface{}
	if filter.ResourceID != 0 {
		where = append(where, "resource_id = ?")
		args = append(args, filter.ResourceID)
	}
	if filter.StatusID != 0 {
		where = append(where, "status_id = ?")
		args = append(args, filter.StatusID)
	}

	query := `SELECT ` + loanColumns + ` FROM loan_record`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY submitted_at DESC, loan_id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	var out []*entity.LoanRecord
	if err := sqlx.SelectContext(ctx, ex, &out, ex.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to list loans", zap.Error(err))
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return out, nil
}

// CompareAndSetStatus moves the loan to newStatusID only if it is still at
// expectedStatusID, writing the non-nil fields of update in the same statement.
func (r *LoanRepository) CompareAndSetStatus(ctx context.Context, id, expectedStatusID, newStatusID int64, update entity.LoanUpdate) (bool, error) {
	tx, err := requireTx(ctx)
	if err != nil {
		return false, err
	}

	set := []string{"status_id = ?"}
	args := []interface{}{newStatusID}
	add := func(column string, value interface{}) {
		set = append(set, column+" = ?")
		args = append(args, value)
	}
	if update.ApproverID != nil {
		add("approver_id", *update.ApproverID)
	}
	if update.ApprovedAt != nil {
		add("approved_at", *update.ApprovedAt)
	}
	if update.CheckedOutAt != nil {
		add("checked_out_at", *update.CheckedOutAt)
	}
	if update.CheckedOutBy != nil {
		add("checked_out_by", *update.CheckedOutBy)
	}
	if update.ReturnedAt != nil {
		add("returned_at", *update.ReturnedAt)
	}
	if update.ReturnedBy != nil {
		add("returned_by", *update.ReturnedBy)
	}
	if update.Remarks != nil {
		add("remarks", *update.Remarks)
	}
	args = append(args, id, expectedStatusID)

	query := tx.Rebind(`UPDATE loan_record SET ` + strings.Join(set, ", ") + ` WHERE loan_id = ? AND status_id = ?`)
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update loan status",
			zap.Int64("loan_id", id),
			zap.Int64("expected_status_id", expectedStatusID),
			zap.Int64("new_status_id", newStatusID),
			zap.Error(err))
		return false, fmt.Errorf("failed to update loan status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affectedOne(n), nil
}

// CountOpen counts loans on resourceID whose status is one of openStatusIDs
func (r *LoanRepository) CountOpen(ctx context.Context, resourceID int64, openStatusIDs []int64) (int, error) {
	if len(openStatusIDs) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`SELECT COUNT(*) FROM loan_record WHERE resource_id = ? AND status_id IN (?)`, resourceID, openStatusIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to build open loan query: %w", err)
	}

	ex := getExecutor(ctx, r.db)
	var n int
	if err := sqlx.GetContext(ctx, ex, &n, ex.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to count open loans", zap.Int64("resource_id", resourceID), zap.Error(err))
		return 0, fmt.Errorf("failed to count open loans: %w", err)
	}
	return n, nil
}

// ListOverdue returns checked-out loans past their expected return time that
// have not been reported yet, oldest due date first
func (r *LoanRepository) ListOverdue(ctx context.Context, checkedOutStatusID int64, now time.Time, limit int) ([]*entity.LoanRecord, error) {
	ex := getExecutor(ctx, r.db)
	query := ex.Rebind(`SELECT ` + loanColumns + ` FROM loan_record
		WHERE status_id = ?
			AND expected_return_at IS NOT NULL
			AND expected_return_at < ?
			AND overdue_notified_at IS NULL
		ORDER BY expected_return_at
		LIMIT ?`)

	var out []*entity.LoanRecord
	if err := sqlx.SelectContext(ctx, ex, &out, query, checkedOutStatusID, now.UTC(), limit); err != nil {
		r.logger.Error("Failed to list overdue loans", zap.Error(err))
		return nil, fmt.Errorf("failed to list overdue loans: %w", err)
	}
	return out, nil
}

// MarkOverdueNotified stamps a still checked-out loan once. It returns false
// if another scanner got there first or the loan left checkedOutStatusID.
func (r *LoanRepository) MarkOverdueNotified(ctx context.Context, id, checkedOutStatusID int64, at time.Time) (bool, error) {
	ex := getExecutor(ctx, r.db)
	result, err := ex.ExecContext(ctx,
		ex.Rebind(`UPDATE loan_record SET overdue_notified_at = ?
			WHERE loan_id = ? AND status_id = ? AND overdue_notified_at IS NULL`),
		at.UTC(), id, checkedOutStatusID)
	if err != nil {
		r.logger.Error("Failed to mark loan overdue", zap.Int64("loan_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to mark loan overdue: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affectedOne(n), nil
}

var _ port.LoanRepository = (*LoanRepository)(nil)

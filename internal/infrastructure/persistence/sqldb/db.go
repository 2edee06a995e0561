package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/garyjia/toolcrib/internal/application/port"
)

// maxAttempts is the first try plus one transparent retry
const maxAttempts = 2

var tracer = otel.Tracer("github.com/garyjia/toolcrib/internal/infrastructure/persistence/sqldb")

// DB runs units of work on a dedicated pooled connection inside one transaction
type DB struct {
	db     *sqlx.DB
	logger *zap.Logger

	acquireTimeout time.Duration
	retryBackoff   time.Duration
	txOptions      *sql.TxOptions
}

// Option configures DB
type Option func(*DB)

// WithAcquireTimeout bounds the wait for a free pooled connection. Zero waits
// as long as the caller's context allows.
func WithAcquireTimeout(d time.Duration) Option {
	return func(db *DB) {
		db.acquireTimeout = d
	}
}

// WithRetryBackoff sets the pause before the single retry
func WithRetryBackoff(d time.Duration) Option {
	return func(db *DB) {
		db.retryBackoff = d
	}
}

// WithIsolation sets the isolation level of every transaction
func WithIsolation(level sql.IsolationLevel) Option {
	return func(db *DB) {
		db.txOptions = &sql.TxOptions{Isolation: level}
	}
}

// NewDB creates a transaction manager on top of db
func NewDB(db *sqlx.DB, logger *zap.Logger, opts ...Option) *DB {
	d := &DB{
		db:             db,
		logger:         logger,
		acquireTimeout: 5 * time.Second,
		retryBackoff:   250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SQLX exposes the underlying handle for repositories
func (d *DB) SQLX() *sqlx.DB {
	return d.db
}

// Ping checks that the store is reachable
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// WithTransaction implements port.TransactionManager.
//
// A transaction already present in ctx is joined. Otherwise fn runs inside a
// new transaction; errors and panics roll it back and the connection always
// goes back to the pool. A pool-exhausted or transient failure is retried once,
// except a connection lost during commit, which returns port.ErrCommitUnknown.
func (d *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "sqldb.transaction")
	defer span.End()

	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		err := d.runOnce(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if port.IsRetryable(err) && ctx.Err() == nil {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(d.retryBackoff)),
		backoff.WithMaxTries(maxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			d.logger.Warn("Retrying transaction",
				zap.Error(err),
				zap.Duration("wait", wait))
		}),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}

	span.SetAttributes(attribute.Int("db.attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (d *DB) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	conn, err := d.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			d.logger.Error("Failed to return connection to pool", zap.Error(err))
		}
	}()

	tx, err := conn.BeginTxx(ctx, d.txOptions)
	if err != nil {
		d.logger.Error("Failed to begin transaction", zap.Error(err))
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			d.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(ContextWithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			d.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		err = classifyCommit(fmt.Errorf("failed to commit transaction: %w", err))
		if errors.Is(err, port.ErrCommitUnknown) {
			d.logger.Error("Commit outcome unknown, not retrying", zap.Error(err))
		} else {
			d.logger.Error("Failed to commit transaction", zap.Error(err))
		}
		return err
	}

	return nil
}

// acquire checks out one physical connection, waiting at most acquireTimeout
func (d *DB) acquire(ctx context.Context) (*sqlx.Conn, error) {
	acqCtx := ctx
	if d.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, d.acquireTimeout)
		defer cancel()
	}

	conn, err := d.db.Connx(acqCtx)
	if err == nil {
		return conn, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		stats := d.db.Stats()
		d.logger.Warn("Connection pool exhausted",
			zap.Duration("acquire_timeout", d.acquireTimeout),
			zap.Int("in_use", stats.InUse),
			zap.Int("max_open", stats.MaxOpenConnections))
		return nil, fmt.Errorf("%w: no connection within %s", port.ErrPoolExhausted, d.acquireTimeout)
	}
	return nil, classify(fmt.Errorf("failed to acquire connection: %w", err))
}

var _ port.TransactionManager = (*DB)(nil)

package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/toolcrib/internal/application/dispatcher"
	"github.com/garyjia/toolcrib/internal/application/port"
	"github.com/garyjia/toolcrib/internal/domain/entity"
	"github.com/garyjia/toolcrib/internal/domain/event"
	domainwf "github.com/garyjia/toolcrib/internal/domain/workflow"
)

// OverdueWorkerConfig holds configuration for the overdue loan scanner
type OverdueWorkerConfig struct {
	ScanInterval time.Duration
	BatchSize    int
	ScanTimeout  time.Duration
}

// DefaultOverdueWorkerConfig returns default configuration
func DefaultOverdueWorkerConfig() OverdueWorkerConfig {
	return OverdueWorkerConfig{
		ScanInterval: time.Minute,
		BatchSize:    100,
		ScanTimeout:  30 * time.Second,
	}
}

// StatusResolver maps catalog names to ids
type StatusResolver interface {
	Resolve(ctx context.Context, domain entity.Domain, name string) (int64, error)
}

// OverdueStats reports scanner progress
type OverdueStats struct {
	IsRunning     bool      `json:"is_running"`
	LastScan      time.Time `json:"last_scan"`
	NotifiedCount int       `json:"notified_count"`
	FailedScans   int       `json:"failed_scans"`
}

// OverdueWorker finds checked-out loans past their expected return time,
// marks each one notified exactly once and emits loan.overdue
type OverdueWorker struct {
	config     OverdueWorkerConfig
	loans      port.LoanRepository
	catalog    StatusResolver
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	loop

	statsMu  sync.Mutex
	lastScan time.Time
	notified int
	failed   int
}

// NewOverdueWorker creates a new overdue loan scanner
func NewOverdueWorker(
	config OverdueWorkerConfig,
	loans port.LoanRepository,
	catalog StatusResolver,
	d dispatcher.Dispatcher,
	logger *zap.Logger,
) *OverdueWorker {
	defaults := DefaultOverdueWorkerConfig()
	if config.ScanInterval <= 0 {
		config.ScanInterval = defaults.ScanInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = defaults.ScanTimeout
	}
	return &OverdueWorker{
		config:     config,
		loans:      loans,
		catalog:    catalog,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
	}
}

// Name returns the worker name for identification
func (w *OverdueWorker) Name() string {
	return "OverdueWorker"
}

// Start begins periodic scanning
func (w *OverdueWorker) Start(ctx context.Context) error {
	if err := w.loop.start(ctx, w.Name(), w.scanLoop); err != nil {
		return err
	}
	w.logger.Info("OverdueWorker started",
		zap.Duration("scan_interval", w.config.ScanInterval),
		zap.Int("batch_size", w.config.BatchSize))
	return nil
}

// Stop terminates the scan loop and waits for an in-flight scan
func (w *OverdueWorker) Stop() error {
	w.loop.stop()
	w.logger.Info("OverdueWorker stopped")
	return nil
}

// Stats returns a snapshot of scanner progress
func (w *OverdueWorker) Stats() OverdueStats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return OverdueStats{
		IsRunning:     w.loop.running(),
		LastScan:      w.lastScan,
		NotifiedCount: w.notified,
		FailedScans:   w.failed,
	}
}

func (w *OverdueWorker) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	// Scan immediately on start
	w.scanWithTimeout(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scanWithTimeout(ctx)
		}
	}
}

func (w *OverdueWorker) scanWithTimeout(ctx context.Context) {
	scanCtx, cancel := context.WithTimeout(ctx, w.config.ScanTimeout)
	defer cancel()

	if _, err := w.ScanOnce(scanCtx); err != nil && ctx.Err() == nil {
		w.logger.Error("Overdue scan failed", zap.Error(err))
	}
}

// ScanOnce processes one batch and returns how many loans were newly
// flagged. Loans flagged by a concurrent scanner are skipped.
func (w *OverdueWorker) ScanOnce(ctx context.Context) (int, error) {
	checkedOutID, err := w.catalog.Resolve(ctx, entity.DomainLoan, string(domainwf.StateCheckedOut))
	if err != nil {
		w.recordScan(0, err)
		return 0, err
	}

	now := w.now().UTC()
	loans, err := w.loans.ListOverdue(ctx, checkedOutID, now, w.config.BatchSize)
	if err != nil {
		w.recordScan(0, err)
		return 0, err
	}

	notified := 0
	for _, loan := range loans {
		ok, err := w.loans.MarkOverdueNotified(ctx, loan.ID, checkedOutID, now)
		if err != nil {
			w.logger.Error("Failed to mark loan overdue",
				zap.Int64("loan_id", loan.ID),
				zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		notified++

		payload := map[string]interface{}{
			"requester_id": loan.RequesterID,
		}
		if loan.ExpectedReturnAt != nil {
			payload["expected_return_at"] = loan.ExpectedReturnAt.UTC().Format(time.RFC3339)
			payload["overdue_seconds"] = int64(now.Sub(*loan.ExpectedReturnAt).Seconds())
		}
		if w.dispatcher != nil {
			w.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeLoanOverdue, loan.ID, loan.ResourceID, payload))
		}

		w.logger.Info("Loan overdue",
			zap.Int64("loan_id", loan.ID),
			zap.Int64("resource_id", loan.ResourceID),
			zap.Int64("requester_id", loan.RequesterID))
	}

	w.recordScan(notified, nil)
	if len(loans) > 0 {
		w.logger.Info("Overdue scan completed",
			zap.Int("candidates", len(loans)),
			zap.Int("notified", notified))
	}
	return notified, nil
}

func (w *OverdueWorker) recordScan(notified int, err error) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.lastScan = w.now()
	w.notified += notified
	if err != nil {
		w.failed++
	}
}

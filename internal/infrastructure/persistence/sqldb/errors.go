package sqldb

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/garyjia/toolcrib/internal/application/port"
)

// transientPGCodes are SQLSTATEs that say nothing about the data and may clear up on retry
var transientPGCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

// IsTransient reports whether err is a connection-level or contention failure
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, port.ErrTransientStore) || errors.Is(err, port.ErrPoolExhausted) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return strings.HasPrefix(code, "08") || transientPGCodes[code]
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// rollbackPGCodes are commit failures after which the server has certainly rolled back
var rollbackPGCodes = map[string]bool{
	"40001": true,
	"40P01": true,
}

// classifyCommit is classify for errors returned by COMMIT. Serialization and
// lock failures mean nothing was written and stay retryable; a lost connection
// leaves the outcome unknown and is reported as port.ErrCommitUnknown.
func classifyCommit(err error) error {
	if err == nil || !IsTransient(err) {
		return classify(err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && rollbackPGCodes[string(pqErr.Code)] {
		return classify(err)
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return classify(err)
	}
	return fmt.Errorf("%w: %w", port.ErrCommitUnknown, err)
}

// classify marks transient driver errors with port.ErrTransientStore so callers
// outside the persistence layer can tell them apart without importing drivers.
func classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if IsTransient(err) && !errors.Is(err, port.ErrTransientStore) && !errors.Is(err, port.ErrPoolExhausted) {
		return fmt.Errorf("%w: %w", port.ErrTransientStore, err)
	}
	return err
}

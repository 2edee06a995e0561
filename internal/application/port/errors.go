package port

import "errors"

var (
	// ErrPoolExhausted is returned when no pooled connection became free within the acquire timeout
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrTransientStore wraps connection-level failures that may succeed on a later attempt
	ErrTransientStore = errors.New("transient store error")

	// ErrCommitUnknown is returned when the connection failed during commit, so
	// the transaction may or may not have been applied. It is never retried.
	ErrCommitUnknown = errors.New("commit outcome unknown")

	// ErrNoTransaction is returned by repository methods that must run inside WithTransaction
	ErrNoTransaction = errors.New("operation requires an active transaction")
)

// IsRetryable reports whether err is infrastructure pressure ("try again
// shortly") rather than a business failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPoolExhausted) || errors.Is(err, ErrTransientStore)
}

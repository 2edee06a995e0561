package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/toolcrib/internal/application/port"
	domainwf "github.com/garyjia/toolcrib/internal/domain/workflow"
)

// retryAfterSeconds is advertised on 503 and 429 responses
const retryAfterSeconds = "1"

// statusOf maps an application error to an HTTP status, a stable code and
// the message shown to the caller
func statusOf(err error) (int, string, string) {
	switch {
	case errors.Is(err, domainwf.ErrValidation):
		return http.StatusBadRequest, "validation", err.Error()
	case errors.Is(err, domainwf.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, domainwf.ErrStateConflict):
		return http.StatusConflict, "conflict", "the record changed since it was read, reload and retry: " + err.Error()
	case errors.Is(err, domainwf.ErrUnknownStatus):
		return http.StatusInternalServerError, "unknown_status", "status catalog is misconfigured, contact an administrator"
	case errors.Is(err, port.ErrCommitUnknown):
		return http.StatusInternalServerError, "commit_unknown", "the change may have been saved, reload before retrying"
	case port.IsRetryable(err):
		return http.StatusServiceUnavailable, "unavailable", "service is busy, try again shortly"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

// writeError renders err. Server-side failures are logged; caller mistakes are not.
func (h *Handlers) writeError(c *gin.Context, op string, err error) {
	status, code, msg := statusOf(err)
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", retryAfterSeconds)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, Response{
		Success: false,
		Code:    code,
		Error:   msg,
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Code:    "validation",
		Error:   msg,
	})
}

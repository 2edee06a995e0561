package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/garyjia/toolcrib/internal/application/port"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayHeader      = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 128
	limiterIdleTTL       = 10 * time.Minute
)

// clientLimiters hands out one token bucket per client IP
type clientLimiters struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	clients map[string]*clientLimiter
	sweptAt time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (l *clientLimiters) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.sweptAt) > limiterIdleTTL {
		for k, v := range l.clients {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
		l.sweptAt = now
	}

	cl, ok := l.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// rateLimitMiddleware rejects requests beyond rps per client with 429
func rateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	if burst < 1 {
		burst = 1
	}
	limiters := &clientLimiters{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		sweptAt: time.Now(),
	}

	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP(), time.Now()).Allow() {
			c.Header("Retry-After", retryAfterSeconds)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{
				Success: false,
				Code:    "rate_limited",
				Error:   "too many requests",
			})
			return
		}
		c.Next()
	}
}

// capturingWriter tees the response body so it can be stored
type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// idempotencyMiddleware replays the stored response for a repeated POST with
// the same Idempotency-Key and body. A request whose first attempt is still
// running gets 409; a first attempt that ended in 5xx is forgotten so the
// client can retry.
func idempotencyMiddleware(store port.IdempotencyStore, ttl time.Duration, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if c.Request.Method != http.MethodPost || key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			badRequest(c, "Idempotency-Key is too long")
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			badRequest(c, "unreadable request body")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		sum := sha256.Sum256(body)
		storeKey := c.Request.Method + ":" + c.Request.URL.Path + ":" + key + ":" + hex.EncodeToString(sum[:])
		ctx := c.Request.Context()

		reserved, err := store.Reserve(ctx, storeKey, ttl)
		if err != nil {
			idempotencyUnavailable(c, logger, err)
			return
		}
		if !reserved {
			stored, err := store.Load(ctx, storeKey)
			if err != nil {
				idempotencyUnavailable(c, logger, err)
				return
			}
			if stored == nil {
				c.AbortWithStatusJSON(http.StatusConflict, Response{
					Success: false,
					Code:    "in_progress",
					Error:   "a request with this Idempotency-Key is still being processed",
				})
				return
			}
			c.Header(replayHeader, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		}

		w := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = w

		// Runs on panic too, before recovery renders the 500.
		defer func() {
			p := recover()

			// The request context may already be cancelled by now.
			saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()

			if p != nil || w.Status() >= http.StatusInternalServerError {
				if err := store.Release(saveCtx, storeKey); err != nil {
					logger.Error("Failed to release idempotency key", "key", key, "error", err)
				}
				if p != nil {
					panic(p)
				}
				return
			}
			resp := port.StoredResponse{
				Status:      w.Status(),
				ContentType: w.Header().Get("Content-Type"),
				Body:        w.body.Bytes(),
			}
			if err := store.Save(saveCtx, storeKey, resp, ttl); err != nil {
				logger.Error("Failed to store idempotent response", "key", key, "error", err)
			}
		}()

		c.Next()
	}
}

func idempotencyUnavailable(c *gin.Context, logger Logger, err error) {
	logger.Error("Idempotency store unavailable", "path", c.Request.URL.Path, "error", err)
	c.Header("Retry-After", retryAfterSeconds)
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, Response{
		Success: false,
		Code:    "unavailable",
		Error:   "service is busy, try again shortly",
	})
}

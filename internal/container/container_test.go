package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/toolcrib/internal/application/service"
	"github.com/garyjia/toolcrib/internal/application/workflow"
	"github.com/garyjia/toolcrib/internal/config"
	"github.com/garyjia/toolcrib/internal/domain/entity"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Database: config.DatabaseConfig{
			Driver:         "sqlite3",
			Path:           filepath.Join(t.TempDir(), "toolcrib.db"),
			MinConns:       1,
			MaxConns:       4,
			AcquireTimeout: time.Second,
		},
		Catalog: config.CatalogConfig{MaxAge: time.Minute},
		Worker: config.WorkerConfig{
			OverdueScanInterval: time.Hour,
			OverdueBatchSize:    10,
		},
	}
}

func TestNewContainer_Validation(t *testing.T) {
	logger := zap.NewNop()

	_, err := NewContainer(nil, logger)
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"
	_, err = NewContainer(cfg, logger)
	assert.ErrorContains(t, err, "invalid config")

	cfg = testConfig(t)
	cfg.Redis.Addr = "localhost:6379"
	_, err = NewContainer(cfg, logger)
	assert.ErrorContains(t, err, "catalog_channel")
}

func TestContainer_Lifecycle(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Redis = config.RedisConfig{
		Addr:           mr.Addr(),
		CatalogChannel: "toolcrib:catalog:invalidate",
		IdempotencyTTL: time.Minute,
	}

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start must fail")

	health := c.Health(ctx)
	assert.True(t, health.Overall, "%+v", health.Components)
	assert.Contains(t, health.Components, "redis")
	assert.Equal(t, 2, c.Workers().GetWorkerCount())

	res, err := c.Inventory().CreateResource(ctx, service.CreateResourceRequest{Code: "DRL-001"})
	require.NoError(t, err)
	assert.Equal(t, "idle", res.Status)

	loan, err := c.Coordinator().SubmitLoan(ctx, workflow.SubmitLoanRequest{
		ResourceID:       res.ID,
		RequesterID:      42,
		ExpectedReturnAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	srv, err := c.NewHTTPServer()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/loans/"+itoa(loan.ID)+"/approve", strings.NewReader(`{"approver_id":7}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "approve-1")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	view, err := c.Inventory().GetResource(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ResourceCheckedOut, view.Status)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close must fail")
	assert.Error(t, c.Start(ctx), "start after close must fail")
}

func TestContainer_WithoutWorkers(t *testing.T) {
	ctx := context.Background()

	c, err := NewContainer(testConfig(t), zap.NewNop(), WithoutWorkers())
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() { _ = c.Close() })

	assert.False(t, c.Workers().IsRunning())
	assert.True(t, c.Health(ctx).Overall)

	n, err := c.OverdueWorker().ScanOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, d := range entity.Domains() {
		assert.NotEmpty(t, c.Catalog().Entries(d), "domain %s", d)
	}
}

func TestContainer_FailedStartCleansUp(t *testing.T) {
	cfg := testConfig(t)
	// a directory cannot be opened as a database file
	cfg.Database.Path = t.TempDir()

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Error(t, c.Start(context.Background()))
	assert.False(t, c.Ready())
}

func TestServerConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = 9090
	cfg.Server.RateLimitRPS = 5
	cfg.Redis.IdempotencyTTL = time.Hour

	got := ServerConfig(cfg)
	assert.Equal(t, 9090, got.Port)
	assert.Equal(t, 5.0, got.RateLimitRPS)
	assert.Equal(t, time.Hour, got.IdempotencyTTL)
	assert.Equal(t, []string{"*"}, got.CORSOrigins)
	assert.Equal(t, 30*time.Second, got.ReadTimeout)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

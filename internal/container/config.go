// Package container provides dependency injection and lifecycle management
// for the toolcrib service.
package container

import (
	"fmt"

	"github.com/garyjia/toolcrib/internal/config"
	"github.com/garyjia/toolcrib/internal/infrastructure/telemetry"
	"github.com/garyjia/toolcrib/internal/infrastructure/worker"
	httpserver "github.com/garyjia/toolcrib/internal/interfaces/http"
)

// validateConfig runs config.Validate plus the cross-section checks wiring needs
func validateConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Redis.Enabled() && cfg.Redis.CatalogChannel == "" {
		return fmt.Errorf("redis.catalog_channel is required when redis is enabled")
	}
	return nil
}

// ServerConfig maps the server section onto the HTTP adapter's config
func ServerConfig(cfg *config.Config) httpserver.ServerConfig {
	out := httpserver.DefaultServerConfig()
	s := cfg.Server
	if s.Host != "" {
		out.Host = s.Host
	}
	if s.Port > 0 {
		out.Port = s.Port
	}
	if s.ReadTimeout > 0 {
		out.ReadTimeout = s.ReadTimeout
	}
	if s.WriteTimeout > 0 {
		out.WriteTimeout = s.WriteTimeout
	}
	if s.ShutdownTimeout > 0 {
		out.ShutdownTimeout = s.ShutdownTimeout
	}
	out.RateLimitRPS = s.RateLimitRPS
	out.RateLimitBurst = s.RateLimitBurst
	if len(s.CORSOrigins) > 0 {
		out.CORSOrigins = s.CORSOrigins
	}
	if cfg.Redis.IdempotencyTTL > 0 {
		out.IdempotencyTTL = cfg.Redis.IdempotencyTTL
	}
	return out
}

func overdueWorkerConfig(cfg *config.Config) worker.OverdueWorkerConfig {
	return worker.OverdueWorkerConfig{
		ScanInterval: cfg.Worker.OverdueScanInterval,
		BatchSize:    cfg.Worker.OverdueBatchSize,
	}
}

func telemetryConfig(cfg *config.Config) telemetry.Config {
	return telemetry.Config{
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		SampleRatio:  cfg.Telemetry.SampleRatio,
		Insecure:     cfg.Telemetry.Insecure,
	}
}

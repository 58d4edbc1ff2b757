package server

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/cargodesk/cargodesk/pkg/config"
	"github.com/cargodesk/cargodesk/pkg/health"
	"github.com/cargodesk/cargodesk/pkg/middleware/logging"
	"github.com/cargodesk/cargodesk/pkg/middleware/recovery"
	"github.com/cargodesk/cargodesk/pkg/middleware/requestid"
	"github.com/cargodesk/cargodesk/pkg/observability/logger"
	"github.com/cargodesk/cargodesk/pkg/observability/metrics"
	"github.com/cargodesk/cargodesk/pkg/server/router"
	"github.com/cargodesk/cargodesk/pkg/version"
)

// ManagementServer serves health, metrics, and version endpoints on a
// separate port from the public API.
type ManagementServer struct {
	*Server
	healthRegistry  *health.Registry
	metricsRegistry *metrics.Registry
	versionInfo     version.Info
}

// NewManagementServer creates a management server exposing:
//   - /health/live: liveness, always 200 while the process serves
//   - /health/ready: readiness, 503 when any registered check fails
//   - /metrics: Prometheus metrics
//   - /version: build metadata
func NewManagementServer(
	cfg config.ManagementConfig,
	r router.Router,
	log logger.Logger,
	healthRegistry *health.Registry,
	metricsRegistry *metrics.Registry,
	versionInfo version.Info,
) (*ManagementServer, error) {
	r.Use(
		requestid.RequestID(),
		logging.Logging(log),
		recovery.Recovery(log),
	)

	var tlsConfig *tls.Config
	if cfg.TLS.Enabled {
		var err error
		tlsConfig, err = LoadTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("load management TLS config: %w", err)
		}
	}

	baseServer := NewServer(Config{
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    tlsConfig,
	}, r, log)

	s := &ManagementServer{
		Server:          baseServer,
		healthRegistry:  healthRegistry,
		metricsRegistry: metricsRegistry,
		versionInfo:     versionInfo,
	}

	r.GET("/health/live", s.handleLive)
	r.GET("/health/ready", s.handleReady)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/version", s.handleVersion)

	return s, nil
}

func (s *ManagementServer) handleLive(c router.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "healthy",
	})
}

func (s *ManagementServer) handleReady(c router.Context) error {
	result := s.healthRegistry.Check(c.Request().Context())
	if !result.IsHealthy() {
		return c.JSON(http.StatusServiceUnavailable, result)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *ManagementServer) handleMetrics(c router.Context) error {
	s.metricsRegistry.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}

func (s *ManagementServer) handleVersion(c router.Context) error {
	return c.JSON(http.StatusOK, s.versionInfo)
}

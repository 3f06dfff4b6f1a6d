// Package monitor serves the training telemetry over HTTP: Prometheus
// metrics, a liveness probe, and a JSON snapshot of the run statistics.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deepdrugkit/deepdrugkit/internal/config"
	"github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/logging"
	monitoring "github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/prometheus"
)

// Server exposes /healthz, /metrics and /stats.
type Server struct {
	srv     *http.Server
	router  *gin.Engine
	log     logging.Logger
	startAt time.Time
	cfg     config.MonitorConfig
}

// New builds the monitor server.  gatherer feeds /metrics; metrics feeds the
// /stats snapshot.
func New(cfg config.MonitorConfig, gatherer prometheus.Gatherer, metrics monitoring.TrainingMetrics, log logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	gin.SetMode(ginMode(cfg.Mode))

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:  router,
		log:     log.Named("monitor"),
		startAt: time.Now(),
		cfg:     cfg,
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}

	router.GET("/healthz", s.healthz)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	if metrics != nil {
		router.GET("/stats", func(c *gin.Context) {
			c.JSON(http.StatusOK, metrics.GetCurrentStats())
		})
	}
	return s
}

func ginMode(mode string) string {
	switch mode {
	case "debug":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startAt).String(),
	})
}

// Handler returns the route tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving HTTP until Stop or a listener error.
func (s *Server) Start() error {
	s.log.Info("monitor server listening", logging.Int("port", s.cfg.Port))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests within the configured shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("monitor server shutdown failed: %w", err)
	}
	s.log.Info("monitor server stopped")
	return nil
}

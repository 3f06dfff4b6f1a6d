package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepdrugkit/deepdrugkit/internal/config"
	"github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/logging"
	monitoring "github.com/deepdrugkit/deepdrugkit/internal/infrastructure/monitoring/prometheus"
)

func newTestServer(t *testing.T) (*Server, monitoring.TrainingMetrics) {
	t.Helper()

	registry := prometheus.NewRegistry()
	metrics, err := monitoring.NewPrometheusTrainingMetrics(registry)
	require.NoError(t, err)

	cfg := config.MonitorConfig{Enabled: true, Port: 0, Mode: "test"}
	return New(cfg, registry, metrics, logging.NewNopLogger()), metrics
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["uptime"])
}

func TestMetricsEndpointServesCollectors(t *testing.T) {
	s, metrics := newTestServer(t)
	metrics.RecordBatch(context.Background(), &monitoring.BatchMetricParams{ModelName: "mlp-dti", BatchSize: 8})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "deepdrugkit_training_batch_total")
}

func TestStatsSnapshot(t *testing.T) {
	s, metrics := newTestServer(t)
	metrics.RecordEpoch(context.Background(), &monitoring.EpochMetricParams{ModelName: "mlp-dti", Epoch: 1, Loss: 0.25})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats monitoring.TrainingStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalEpochs)
	assert.InDelta(t, 0.25, stats.LastEpochLoss, 1e-12)
}

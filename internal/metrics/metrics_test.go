package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/doc-gateway-service/internal/metrics"
)

func TestNoopMetrics(t *testing.T) {
	t.Parallel()

	var m metrics.Noop
	m.ObserveRequest("GET", "/health", "200", 0.01)
	m.IncDocuments("convert", "ok")
	m.IncArtifactReleases("ok")
	m.AddRelayedBytes(10)
}

func TestPromMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.NewProm("docgw", reg)

	m.ObserveRequest("POST", "/convert", "200", 0.02)
	m.IncDocuments("convert", "ok")
	m.IncArtifactReleases(metrics.ReleaseOutcome(nil))
	m.IncArtifactReleases(metrics.ReleaseOutcome(errors.New("busy")))
	m.AddRelayedBytes(512)

	count, err := testutil.GatherAndCount(reg,
		"docgw_http_requests_total",
		"docgw_http_request_duration_seconds",
		"docgw_documents_processed_total",
		"docgw_artifact_releases_total",
		"docgw_relayed_bytes_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	expected := `
# HELP docgw_relayed_bytes_total Bytes streamed from the downstream protection service
# TYPE docgw_relayed_bytes_total counter
docgw_relayed_bytes_total 512
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "docgw_relayed_bytes_total"))
}

func TestPromHandler(t *testing.T) {
	t.Parallel()

	m := metrics.NewProm("docgw", nil)
	m.IncDocuments("metadata", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `docgw_documents_processed_total{operation="metadata",outcome="ok"} 1`)
}

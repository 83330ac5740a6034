package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/tx-event-processor/pkg/common"
)

func TestHandlerExposesProcessorMetrics(t *testing.T) {
	common.Passes.WithLabelValues("success").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tx_event_processor_passes_total")
}

func TestStopWithoutStart(t *testing.T) {
	assert.NoError(t, StopMetricsServer(t.Context()))
}

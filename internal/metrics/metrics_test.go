package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.ObserveAllocation("random")
	c.ObserveAllocation("random")
	c.ObserveAllocation("reserved")
	c.ObserveFailure("already_used")
	c.ObserveUsage(3, 6997)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.allocations.WithLabelValues("random")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.allocations.WithLabelValues("reserved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("already_used")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.used))
	assert.Equal(t, 6997.0, testutil.ToFloat64(c.remaining))
}

func TestHandler(t *testing.T) {
	c := New(nil)
	c.ObserveUsage(10, 6990)
	c.ObserveRequest(http.MethodGet, "/api/v1/stats", http.StatusOK, 25*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "sft_numbers_used 10"))
	assert.True(t, strings.Contains(body, "sft_numbers_remaining 6990"))
	assert.Contains(t, body, `sft_http_request_duration_seconds_count{method="GET",route="/api/v1/stats",status="200"} 1`)
}

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/countdown"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservers(t *testing.T) {
	r := New()

	r.ObserveFetch(ResultSuccess, 20*time.Millisecond)
	r.ObserveFetch(ResultStatus, time.Second)
	r.ObserveFetch(ResultStatus, time.Second)
	r.ObserveSkippedRefresh()
	r.ObserveDiagnostic("current-quiz")
	r.ObserveCountdown(countdown.Expired)
	r.ObserveReconcile(time.Millisecond, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.FetchResults.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.FetchResults.WithLabelValues(ResultStatus)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SkippedRefreshes))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Diagnostics.WithLabelValues("current-quiz")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CountdownState))
	assert.Positive(t, testutil.ToFloat64(r.LastSuccess))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ObserveSkippedRefresh()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ricebowl_refresh_skipped_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SlpAus/ricebowl-portal/internal/platform/config"
	"github.com/SlpAus/ricebowl-portal/internal/platform/metrics"
	"github.com/SlpAus/ricebowl-portal/internal/portal"
	"github.com/SlpAus/ricebowl-portal/internal/reconcile"
	"github.com/SlpAus/ricebowl-portal/internal/view"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct{ doc *view.Document }

func (s stubEngine) Document() *view.Document { return s.doc }
func (s stubEngine) ToggleWeek(context.Context, int) (bool, error) {
	return false, reconcile.ErrUnknownWeek
}
func (s stubEngine) Refresh(context.Context) (bool, error)             { return true, nil }
func (s stubEngine) Report(context.Context) (reconcile.Report, error) { return reconcile.Report{}, nil }

func newTestRouter(t *testing.T, origins []string) *gin.Engine {
	t.Helper()
	h := portal.NewHandler(stubEngine{doc: view.NewDocument()}, nil, nil, 0, 0, zerolog.Nop())
	reg := metrics.New()
	reg.ObserveSkippedRefresh()
	return NewRouter(config.ServerConfig{Mode: gin.TestMode, Cors: config.CorsConfig{AllowedOrigins: origins}}, h, reg.Handler(), zerolog.Nop())
}

func TestRoutesAreRegistered(t *testing.T) {
	r := newTestRouter(t, nil)

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/view", http.StatusOK},
		{http.MethodGet, "/api/view/report", http.StatusOK},
		{http.MethodPost, "/api/view/weeks/3/toggle", http.StatusNotFound},
		{http.MethodPost, "/api/refresh", http.StatusAccepted},
		{http.MethodGet, "/api/unknown", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.want, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "ricebowl_refresh_skipped_total"))
}

func TestCorsRestrictsOrigins(t *testing.T) {
	r := newTestRouter(t, []string{"https://school.example"})

	req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
	req.Header.Set("Origin", "https://school.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://school.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/view", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

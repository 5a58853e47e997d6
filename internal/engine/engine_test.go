package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/fetch"
	"github.com/SlpAus/ricebowl-portal/internal/platform/health"
	"github.com/SlpAus/ricebowl-portal/internal/platform/metrics"
	"github.com/SlpAus/ricebowl-portal/internal/reconcile"
	"github.com/SlpAus/ricebowl-portal/internal/view"
	"github.com/SlpAus/ricebowl-portal/pkg/lifecycle"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const payload = `{
	"current_week": 2,
	"quizzes": [
		{"week_number": 1, "country_name": "Guatemala", "is_visible": true, "winners": ["Ana"]},
		{"week_number": 2, "country_name": "Zambia", "is_visible": true, "closes_at": "2099-01-01T00:00:00"}
	],
	"classes": [{"name": "3A", "rice_bowl_amount": 12.5}],
	"settings": {"theme": "ocean"},
	"announcements": [],
	"rice_bowl_total": 12.5
}`

func newSource(status *atomic.Int32) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := int(status.Load())
		w.WriteHeader(code)
		if code == http.StatusOK {
			w.Write([]byte(payload))
		}
	}))
	return srv
}

func newEngine(t *testing.T, url string) (*Engine, *lifecycle.Manager, *health.Status) {
	t.Helper()
	status := health.NewStatus(zerolog.Nop(), false)
	e := New(Config{
		Options:         reconcile.DefaultOptions(),
		RefreshInterval: time.Hour,
		Fetcher:         fetch.NewHTTPFetcher(fetch.Config{URL: url, Timeout: time.Second}, zerolog.Nop()),
		Metrics:         metrics.New(),
		Health:          status,
	}, zerolog.Nop())
	m := lifecycle.NewManager(zerolog.Nop())
	require.NoError(t, e.Run(m))
	return e, m, status
}

func stop(t *testing.T, e *Engine, m *lifecycle.Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Teardown(ctx))
	m.Shutdown()
	require.Empty(t, m.WaitWithTimeout(2*time.Second))
}

func TestEngineRefreshRendersDocument(t *testing.T) {
	defer goleak.VerifyNone(t)
	var code atomic.Int32
	code.Store(http.StatusOK)
	srv := newSource(&code)
	defer srv.Close()
	e, m, status := newEngine(t, srv.URL)

	updates, cancel := e.Document().Subscribe()
	defer cancel()
	require.NoError(t, e.StartRefresh(context.Background()))

	select {
	case st := <-updates:
		assert.Equal(t, "ocean", st.Elements[view.BindTheme].Text)
		assert.Equal(t, "Week 2: Zambia", st.Elements[view.BindQuizTitle].Text)
	case <-time.After(2 * time.Second):
		t.Fatal("没有收到视图更新")
	}
	assert.Equal(t, health.StateHealthy, status.Feed())

	open, err := e.ToggleWeek(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, open)
	_, err = e.ToggleWeek(context.Background(), 2)
	assert.ErrorIs(t, err, reconcile.ErrUnknownWeek)

	report, err := e.Report(context.Background())
	require.NoError(t, err)
	assert.True(t, report.HasCurrentQuiz)

	stop(t, e, m)
}

func TestEngineToggleIsSharedByAllViewers(t *testing.T) {
	defer goleak.VerifyNone(t)
	var code atomic.Int32
	code.Store(http.StatusOK)
	srv := newSource(&code)
	defer srv.Close()
	e, m, _ := newEngine(t, srv.URL)

	first, cancelFirst := e.Document().Subscribe()
	defer cancelFirst()
	require.NoError(t, e.StartRefresh(context.Background()))
	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("没有收到视图更新")
	}

	second, cancelSecond := e.Document().Subscribe()
	defer cancelSecond()
	open, err := e.ToggleWeek(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, open)

	for _, updates := range []<-chan view.State{first, second} {
		select {
		case st := <-updates:
			past := st.Elements[view.BindPastWeeks].Children
			require.Len(t, past, 1)
			assert.Equal(t, "true", past[0].Attr(view.AttrExpanded))
		case <-time.After(2 * time.Second):
			t.Fatal("订阅者没有看到展开状态")
		}
	}

	stop(t, e, m)
}

func TestEngineTransportFailureShowsBanner(t *testing.T) {
	defer goleak.VerifyNone(t)
	var code atomic.Int32
	code.Store(http.StatusOK)
	srv := newSource(&code)
	defer srv.Close()
	e, m, status := newEngine(t, srv.URL)

	_, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	before := e.Document().Current()

	code.Store(http.StatusBadGateway)
	require.NoError(t, e.StartRefresh(context.Background()))
	require.Eventually(t, func() bool { return status.Feed() == health.StateDegraded }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return !e.Document().Current().Elements[view.BindErrorBanner].Hidden
	}, 2*time.Second, 5*time.Millisecond)

	after := e.Document().Current()
	assert.Equal(t, before.Elements[view.BindLeaderboard], after.Elements[view.BindLeaderboard])

	stop(t, e, m)
}

func TestEngineRestore(t *testing.T) {
	defer goleak.VerifyNone(t)
	var code atomic.Int32
	code.Store(http.StatusServiceUnavailable)
	srv := newSource(&code)
	defer srv.Close()
	e, m, _ := newEngine(t, srv.URL)

	report, err := e.Restore(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 2, report.CurrentWeek)
	assert.Equal(t, "$12.50", e.Document().Text(view.BindClassTotal))

	_, err = e.Restore(context.Background(), []byte(`[]`))
	assert.Error(t, err)

	stop(t, e, m)
}

func TestEngineCallsAfterShutdownFail(t *testing.T) {
	defer goleak.VerifyNone(t)
	var code atomic.Int32
	code.Store(http.StatusOK)
	srv := newSource(&code)
	defer srv.Close()
	e, m, _ := newEngine(t, srv.URL)
	stop(t, e, m)

	_, err := e.Refresh(context.Background())
	assert.Error(t, err)
}

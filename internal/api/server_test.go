package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/metabolink/hmdbscan/internal/scan"
)

type fakeStatus struct {
	state scan.RunState
	snap  scan.CountersSnapshot
}

func (f *fakeStatus) State() scan.RunState            { return f.state }
func (f *fakeStatus) Snapshot() scan.CountersSnapshot { return f.snap }

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeStatus{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_ProgressReportsStateAndCounters(t *testing.T) {
	t.Parallel()

	status := &fakeStatus{
		state: scan.StateRunning,
		snap: scan.CountersSnapshot{
			Produced:   10,
			Dispatched: 8,
			Succeeded:  6,
			Failed:     1,
			Skipped:    2,
		},
	}
	server := NewServer(status, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/v1/progress", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp progressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, scan.StateRunning, resp.State)
	require.Equal(t, int64(10), resp.Counters.Produced)
	require.Equal(t, int64(6), resp.Counters.Succeeded)
}

func TestServer_ProgressWithoutScan(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/v1/progress", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_MetricsEndpointServes(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeStatus{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_UnknownRoute(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeStatus{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/v1/unknown", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

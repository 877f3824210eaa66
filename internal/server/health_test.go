package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiminjie89/frdsvc/internal/frd"
	"github.com/qiminjie89/frdsvc/internal/protocol"
	"github.com/qiminjie89/frdsvc/pkg/config"
	"github.com/qiminjie89/frdsvc/pkg/transport"
)

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	h.mustConnect(protocol.ServiceFrdU)

	ts := httptest.NewServer(h.srv.healthMux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Sessions[protocol.ServiceFrdU])
	assert.Equal(t, []string{protocol.ServiceFrdA, protocol.ServiceFrdN, protocol.ServiceFrdU}, health.Services)
	assert.Equal(t, frd.ProtocolVersion, health.ProtocolVersion)
}

func TestHealthUnhealthyWhenStopped(t *testing.T) {
	srv, err := New(testConfig(), transport.NewPipeTransport())
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	srv.Stop()

	rec := httptest.NewRecorder()
	srv.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "shutting_down")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	c := h.mustConnect(protocol.ServiceFrdU)
	_, err := c.HasLoggedIn(ctxT(t))
	require.NoError(t, err)

	ts := httptest.NewServer(h.srv.healthMux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "frd_commands_total")
}

func TestMetricsDisabled(t *testing.T) {
	h := newHarness(t, func(cfg *config.ServerConfig) {
		cfg.Metrics.Enabled = false
	})

	rec := httptest.NewRecorder()
	h.srv.healthMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogLevelEndpoint(t *testing.T) {
	h := newHarness(t, nil)

	rec := httptest.NewRecorder()
	h.srv.healthMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/log/level", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "level")
}

package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/metrics"
)

type staticReadiness bool

func (s staticReadiness) Ready() bool { return bool(s) }

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Healthz(t *testing.T) {
	rr := serve(t, NewRouter(staticReadiness(false)), "/healthz")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}

func TestRouter_Readyz(t *testing.T) {
	tests := []struct {
		name     string
		checker  ReadinessChecker
		wantCode int
		wantBody string
	}{
		{"connected", staticReadiness(true), http.StatusOK, `{"status":"ready"}`},
		{"not connected", staticReadiness(false), http.StatusServiceUnavailable, `{"status":"not ready"}`},
		{"no checker", nil, http.StatusServiceUnavailable, `{"status":"not ready"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, NewRouter(tt.checker), "/readyz")
			assert.Equal(t, tt.wantCode, rr.Code)
			assert.JSONEq(t, tt.wantBody, rr.Body.String())
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	metrics.ReconnectsTotal.Inc()

	rr := serve(t, NewRouter(staticReadiness(true)), "/metrics")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "telhawk_relay_reconnects_total")
}

func TestRouter_UnknownPath(t *testing.T) {
	rr := serve(t, NewRouter(staticReadiness(true)), "/events")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

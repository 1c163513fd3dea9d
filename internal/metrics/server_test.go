package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := NewServer(0, Providers{}, zerolog.Nop())
	rec := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	AccountValue.Set(123.45)
	s := NewServer(0, Providers{}, zerolog.Nop())
	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hyperfarm_account_value_usd")
}

func TestStatusProviders(t *testing.T) {
	s := NewServer(0, Providers{
		Status: func() any { return map[string]any{"regime": "RANGING"} },
		Farm:   func() any { return map[string]any{"total_actions": 7} },
	}, zerolog.Nop())

	rec := get(t, s.Handler(), "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "RANGING")

	rec = get(t, s.Handler(), "/api/v1/farm/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "7")

	// No provider wired: endpoint does not exist
	rec = get(t, s.Handler(), "/api/v1/positions")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordTradeClosedNormalizesReason(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordTradeClosed("BTC", "tp", 1.5)
		RecordTradeClosed("BTC", "weird_reason", -0.5)
		RecordFarmAction("base", "swap_eth_to_token", 0.15)
		SetPaused(true)
		SetPaused(false)
	})
}

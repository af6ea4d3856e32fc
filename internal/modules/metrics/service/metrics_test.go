package service

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"position_engine/internal/apperr"
	"position_engine/internal/models"
)

func TestMetricsCounters(t *testing.T) {
	m := New()

	m.Order(true, models.SideBuy, false)
	m.Order(true, models.SideSell, true)
	m.Order(true, models.SideSell, true)
	m.Exit(models.ExitStopLoss, models.DirectionLong)
	m.Error(apperr.Newf(apperr.KindMarginRejected, "op", "SOL-USDT-SWAP", "no margin"))
	m.Error(errors.New("plain"))
	m.OpenPositions(3)
	m.EmergencyStop(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.orders.WithLabelValues("paper", "buy", "false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.orders.WithLabelValues("paper", "sell", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exits.WithLabelValues("STOP_LOSS", "long")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("margin_rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("unknown")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.openPositions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emergencyStop))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Order(false, models.SideBuy, false)
		m.Exit(models.ExitManual, models.DirectionShort)
		m.Error(errors.New("x"))
		m.Equity(1)
		m.Cycle(0)
	})
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.Equity(1234.5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "engine_equity_usdt 1234.5")
}

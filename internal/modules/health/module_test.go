package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"position_engine/internal/models"
	"position_engine/internal/modules/config"
	"position_engine/internal/modules/health/service"
	ledger "position_engine/internal/modules/ledger/service"
	okxws "position_engine/internal/modules/okx_websocket/service"
	safety "position_engine/internal/modules/safety/service"
	"position_engine/pkg/logger"
)

func get(t *testing.T, mux http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestProbes(t *testing.T) {
	logger.UseNop()
	cfg := config.Defaults()
	cfg.PaperTrading = true

	state := service.NewState()
	book := ledger.NewLedger(nil)
	book.Put(models.PositionRecord{Symbol: "BTC-USDT-SWAP", Direction: models.DirectionLong})

	mux := NewMux(Probes{
		State:  state,
		Gate:   safety.NewGate(&cfg, nil, nil, nil, nil, nil),
		Ledger: book,
		Feed:   &okxws.PriceFeed{},
		Config: &cfg,
	})

	assert.Equal(t, http.StatusOK, get(t, mux, "/livez").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, mux, "/readyz").Code)

	state.SetReady(true)
	state.TouchCycle(time.Unix(1717200000, 0), 2)
	assert.Equal(t, http.StatusOK, get(t, mux, "/readyz").Code)

	rec := get(t, mux, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Ready           bool  `json:"ready"`
		Paper           bool  `json:"paper"`
		Cycles          int64 `json:"cycles"`
		LastCycleErrors int   `json:"lastCycleErrors"`
		LastCycleUnix   int64 `json:"lastCycleUnix"`
		OpenPositions   int   `json:"openPositions"`
		EmergencyStop   bool  `json:"emergencyStop"`
		PriceFeed       bool  `json:"priceFeed"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Ready)
	assert.True(t, body.Paper)
	assert.Equal(t, int64(1), body.Cycles)
	assert.Equal(t, 2, body.LastCycleErrors)
	assert.Equal(t, int64(1717200000), body.LastCycleUnix)
	assert.Equal(t, 1, body.OpenPositions)
	assert.False(t, body.EmergencyStop)
	assert.False(t, body.PriceFeed)

	// без реестра метрик
	assert.Equal(t, http.StatusNotFound, get(t, mux, "/metrics").Code)
}

func TestNewConfigDefaultsAddr(t *testing.T) {
	cfg := config.Defaults()
	cfg.Health.Addr = ""
	assert.Equal(t, ":8080", NewConfig(&cfg).Addr)

	cfg.Health.Addr = ":9090"
	assert.Equal(t, ":9090", NewConfig(&cfg).Addr)
}

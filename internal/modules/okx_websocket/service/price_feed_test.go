package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"position_engine/internal/modules/config"
	"position_engine/pkg/logger"
)

func TestHandleFrame(t *testing.T) {
	logger.UseNop()
	cfg := config.Defaults()
	f := NewPriceFeed(&cfg)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.nowFn = func() time.Time { return now }

	tests := []struct {
		name string
		msg  string
		n    int
	}{
		{"pong", `pong`, 0},
		{"subscribe ack", `{"event":"subscribe","arg":{"channel":"tickers","instId":"BTC-USDT-SWAP"}}`, 0},
		{"error event", `{"event":"error","msg":"bad","code":"60012"}`, 0},
		{"other channel", `{"arg":{"channel":"candle1m","instId":"BTC-USDT-SWAP"},"data":[{"instId":"BTC-USDT-SWAP","last":"1"}]}`, 0},
		{"ticker", `{"arg":{"channel":"tickers","instId":"BTC-USDT-SWAP"},"data":[{"instId":"BTC-USDT-SWAP","last":"65000.1","ts":"1714564800000"}]}`, 1},
		{"zero price", `{"arg":{"channel":"tickers","instId":"ETH-USDT-SWAP"},"data":[{"instId":"ETH-USDT-SWAP","last":"0"}]}`, 0},
		{"garbage", `{{`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.n, f.handleFrame([]byte(tt.msg)))
		})
	}

	px, at, ok := f.LastPrice("BTC-USDT-SWAP")
	require.True(t, ok)
	assert.Equal(t, 65000.1, px)
	assert.Equal(t, now, at)

	_, _, ok = f.LastPrice("ETH-USDT-SWAP")
	assert.False(t, ok)
}

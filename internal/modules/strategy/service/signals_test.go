package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"position_engine/internal/models"
	"position_engine/internal/modules/config"
)

type specs map[string]models.SymbolSpec

func (s specs) Spec(symbol string) models.SymbolSpec { return s[symbol] }

func newEvaluator() *Evaluator {
	cfg := config.Defaults()
	return NewEvaluator(&cfg, specs{
		"PEPE-USDT-SWAP": {Class: models.ClassHighVolatility},
		"SOL-USDT-SWAP":  {Class: models.ClassStandard},
	})
}

// rangeBound: n bars between 99 and 101 closing at 100, volume 100.
func rangeBound(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{Open: 100, High: 101, Low: 99, Close: 100, Volume: 100}
	}
	return out
}

// zigzag: closes alternate 100 / 99.9 inside a fixed channel; EMAs cross every bar.
func zigzag(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		c := 100.0
		if i%2 == 1 {
			c = 99.9
		}
		out[i] = models.Candle{Open: c, High: 100.2, Low: 99.7, Close: c, Volume: 100}
	}
	return out
}

func TestEvaluateMomentumBreakout(t *testing.T) {
	e := newEvaluator()

	up := append(rangeBound(80), models.Candle{Open: 100, High: 106, Low: 100, Close: 105, Volume: 100})
	sig := e.Evaluate("SOL-USDT-SWAP", up)
	assert.Equal(t, models.DirectionLong, sig.Direction)
	assert.Equal(t, models.SignalMomentum, sig.Class)
	assert.Equal(t, 105.0, sig.Price)

	down := append(rangeBound(80), models.Candle{Open: 100, High: 100, Low: 94, Close: 95, Volume: 100})
	sig = e.Evaluate("SOL-USDT-SWAP", down)
	assert.Equal(t, models.DirectionShort, sig.Direction)
	assert.Equal(t, models.SignalMomentum, sig.Class)
}

func TestEvaluateMemecoinNeedsVolume(t *testing.T) {
	e := newEvaluator()

	loud := append(rangeBound(80), models.Candle{Open: 100, High: 106, Low: 100, Close: 105, Volume: 200})
	sig := e.Evaluate("PEPE-USDT-SWAP", loud)
	assert.Equal(t, models.SignalMemecoin, sig.Class)
	assert.Equal(t, models.DirectionLong, sig.Direction)

	// same breakout on a standard symbol is momentum
	assert.Equal(t, models.SignalMomentum, e.Evaluate("SOL-USDT-SWAP", loud).Class)

	quiet := append(rangeBound(80), models.Candle{Open: 100, High: 106, Low: 100, Close: 105, Volume: 100})
	assert.Equal(t, models.SignalMomentum, e.Evaluate("PEPE-USDT-SWAP", quiet).Class)
}

func TestEvaluateEMACross(t *testing.T) {
	e := newEvaluator()

	// last index even: closes up at 100
	sig := e.Evaluate("SOL-USDT-SWAP", zigzag(121))
	assert.Equal(t, models.DirectionLong, sig.Direction)
	assert.Equal(t, models.SignalTraditional, sig.Class)

	sig = e.Evaluate("SOL-USDT-SWAP", zigzag(122))
	assert.Equal(t, models.DirectionShort, sig.Direction)
	assert.Equal(t, models.SignalTraditional, sig.Class)
}

func TestEvaluateNoSignal(t *testing.T) {
	e := newEvaluator()

	assert.True(t, e.Evaluate("SOL-USDT-SWAP", rangeBound(80)).Empty())
	assert.True(t, e.Evaluate("SOL-USDT-SWAP", rangeBound(e.MinCandles()-1)).Empty())
	assert.True(t, e.Evaluate("SOL-USDT-SWAP", nil).Empty())
}

func TestRSI(t *testing.T) {
	_, ok := rsi([]float64{1, 2}, 14)
	assert.False(t, ok)

	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(i)
	}
	v, ok := rsi(rising, 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	flat := make([]float64, 20)
	v, _ = rsi(flat, 14)
	assert.Equal(t, 50.0, v)

	// equal gains and losses
	alt := []float64{1, 2, 1, 2, 1}
	v, _ = rsi(alt, 4)
	assert.InDelta(t, 50.0, v, 1e-9)
}

func TestDonchianExcludesLastBar(t *testing.T) {
	c := append(rangeBound(20), models.Candle{High: 500, Low: 1, Close: 250})
	hi, lo, ok := donchian(c, 20)
	require.True(t, ok)
	assert.Equal(t, 101.0, hi)
	assert.Equal(t, 99.0, lo)

	_, _, ok = donchian(c, 21)
	assert.False(t, ok)
}

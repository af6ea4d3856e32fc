package service

import (
	"math"

	"position_engine/internal/models"
)

// ATR is the simple mean of the last period true ranges. Candles are oldest
// first and at least period+1 are needed; otherwise 0.
func ATR(candles []models.Candle, period int) float64 {
	if period < 1 || len(candles) < period+1 {
		return 0
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += trueRange(candles[i], candles[i-1].Close)
	}
	atr := sum / float64(period)
	if math.IsNaN(atr) || math.IsInf(atr, 0) {
		return 0
	}
	return atr
}

func trueRange(c models.Candle, prevClose float64) float64 {
	hl := c.High - c.Low
	hc := math.Abs(c.High - prevClose)
	lc := math.Abs(c.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

// RangeATR is the fallback estimate: (max high - min low) over the last bars, divided by bars.
func RangeATR(candles []models.Candle, bars int) float64 {
	if bars < 1 || len(candles) == 0 {
		return 0
	}
	n := bars
	if len(candles) < n {
		n = len(candles)
	}

	recent := candles[len(candles)-n:]
	hi, lo := recent[0].High, recent[0].Low
	for _, c := range recent[1:] {
		hi = math.Max(hi, c.High)
		lo = math.Min(lo, c.Low)
	}
	return (hi - lo) / float64(bars)
}

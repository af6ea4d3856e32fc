package service

import "position_engine/internal/models"

type emaState struct {
	period int
	alpha  float64
	value  float64
	warmup int
}

func newEMA(period int) emaState {
	if period <= 1 {
		period = 1
	}
	return emaState{
		period: period,
		alpha:  2.0 / (float64(period) + 1),
	}
}

func (e *emaState) Update(price float64) {
	if e.warmup == 0 {
		e.value = price
		e.warmup = 1
		return
	}
	e.value = e.alpha*price + (1-e.alpha)*e.value
	if e.warmup < e.period {
		e.warmup++
	}
}

func (e *emaState) Ready() bool    { return e.warmup >= e.period }
func (e *emaState) Value() float64 { return e.value }

// emaSeries returns the EMA after each close; ok is false until warmed up.
func emaSeries(closes []float64, period int) (last, prev float64, ok bool) {
	e := newEMA(period)
	for i, c := range closes {
		if i == len(closes)-1 {
			prev = e.Value()
		}
		e.Update(c)
	}
	return e.Value(), prev, e.Ready() && len(closes) > period
}

// rsi по Уайлдеру; нужно минимум period+1 цен.
func rsi(closes []float64, period int) (float64, bool) {
	if period < 1 || len(closes) < period+1 {
		return 0, false
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain, avgLoss := gain/float64(period), loss/float64(period)

	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// donchian: канал по period свечам ПЕРЕД последней.
func donchian(candles []models.Candle, period int) (hi, lo float64, ok bool) {
	if period < 1 || len(candles) < period+1 {
		return 0, 0, false
	}
	window := candles[len(candles)-1-period : len(candles)-1]
	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	for i, c := range window {
		highs[i], lows[i] = c.High, c.Low
	}
	return maxSlice(highs), minSlice(lows), true
}

// volumeRatio: объём последней свечи к среднему по предыдущим n.
func volumeRatio(candles []models.Candle, n int) float64 {
	if n < 1 || len(candles) < n+1 {
		return 0
	}
	var sum float64
	for _, c := range candles[len(candles)-1-n : len(candles)-1] {
		sum += c.Volume
	}
	if sum == 0 {
		return 0
	}
	return candles[len(candles)-1].Volume / (sum / float64(n))
}

func closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func maxSlice(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minSlice(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

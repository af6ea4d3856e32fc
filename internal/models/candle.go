package models

import "time"

// Candle is one OHLCV bar. Slices of candles are always oldest first.
type Candle struct {
	Start     time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Confirmed bool
}

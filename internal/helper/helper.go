package helper

import (
	"math"
	"strings"
)

func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "candle")
	switch s {
	case "60m", "1h":
		return "1H"
	case "4h":
		return "4H"
	case "1d":
		return "1D"
	default:
		return s
	}
}

// RoundToLot rounds to the nearest lot. A positive size never rounds below one lot.
func RoundToLot(size, lot float64) float64 {
	if size <= 0 {
		return 0
	}
	if lot <= 0 {
		return size
	}
	steps := math.Round(size / lot)
	if steps < 1 {
		steps = 1
	}
	return cleanFloat(steps * lot)
}

// FloorToLot is used where rounding up would break a cap.
func FloorToLot(size, lot float64) float64 {
	if size <= 0 {
		return 0
	}
	if lot <= 0 {
		return size
	}
	return cleanFloat(math.Floor(size/lot+1e-9) * lot)
}

// RoundPrice keeps 10 decimals for sub-0.001 prices and 6 otherwise.
func RoundPrice(px float64) float64 {
	if px < 0.001 {
		return RoundTo(px, 10)
	}
	return RoundTo(px, 6)
}

func RoundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// float noise from lot multiplication, e.g. 3*0.1
func cleanFloat(v float64) float64 {
	return RoundTo(v, 10)
}

package service

import (
	"math"
	"strconv"

	"position_engine/internal/models"
)

type Stats struct {
	Trades   int
	Winners  int
	Losers   int
	TotalPnL float64
	WinRate  float64 // %
	AvgTrade float64
	AvgWin   float64
	// средний убыток, по модулю
	AvgLoss float64
	// +Inf когда есть прибыль и нет убытков
	ProfitFactor float64
	Best         float64
	Worst        float64
	Symbols      []string
}

type DayStats struct {
	Day string
	Stats
}

type SymbolStats struct {
	Symbol string
	Stats
}

// Compute aggregates realized trades. A zero-P&L trade counts as a loser.
func Compute(trades []models.TradeRecord) Stats {
	var s Stats
	if len(trades) == 0 {
		return s
	}

	var wins, losses float64
	seen := map[string]bool{}
	s.Best, s.Worst = math.Inf(-1), math.Inf(1)

	for _, tr := range trades {
		s.Trades++
		s.TotalPnL += tr.PnL
		if tr.Winner {
			s.Winners++
			wins += tr.PnL
		} else {
			s.Losers++
			losses += math.Abs(tr.PnL)
		}
		s.Best = math.Max(s.Best, tr.PnL)
		s.Worst = math.Min(s.Worst, tr.PnL)
		if !seen[tr.Symbol] {
			seen[tr.Symbol] = true
			s.Symbols = append(s.Symbols, tr.Symbol)
		}
	}

	s.WinRate = float64(s.Winners) / float64(s.Trades) * 100
	s.AvgTrade = s.TotalPnL / float64(s.Trades)
	if s.Winners > 0 {
		s.AvgWin = wins / float64(s.Winners)
	}
	if s.Losers > 0 {
		s.AvgLoss = losses / float64(s.Losers)
	}
	switch {
	case losses > 0:
		s.ProfitFactor = wins / losses
	case wins > 0:
		s.ProfitFactor = math.Inf(1)
	}
	return s
}

func (s Stats) ProfitFactorString() string {
	if math.IsInf(s.ProfitFactor, 1) {
		return "∞"
	}
	return strconv.FormatFloat(s.ProfitFactor, 'f', 2, 64)
}

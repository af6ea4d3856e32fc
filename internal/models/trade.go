package models

import "time"

type ExitReason string

const (
	ExitStopLoss ExitReason = "STOP_LOSS"
	ExitReversal ExitReason = "REVERSAL"
	ExitManual   ExitReason = "MANUAL"
)

// PartialExitReason gives PARTIAL_1R..PARTIAL_4R.
func PartialExitReason(l ProfitLevel) ExitReason {
	return ExitReason("PARTIAL_" + string(l))
}

// TradeRecord is what the portfolio sink receives on every realized exit.
// PnL fields are filled by the portfolio.
type TradeRecord struct {
	Symbol             string        `json:"symbol"`
	Direction          Direction     `json:"direction"`
	EntryPrice         float64       `json:"entry_price"`
	ExitPrice          float64       `json:"exit_price"`
	Size               float64       `json:"size"`
	ContractMultiplier float64       `json:"contract_multiplier"`
	ExitReason         ExitReason    `json:"exit_reason"`
	SignalClass        SignalClass   `json:"signal_type"`
	Duration           time.Duration `json:"duration"`
	ClosedAt           time.Time     `json:"closed_at"`
	Paper              bool          `json:"paper_trade"`
	PnL                float64       `json:"pnl_absolute"`
	PnLPct             float64       `json:"pnl_percentage"`
	Winner             bool          `json:"is_winner"`
}

// Settle fills PnL, PnLPct and Winner from prices, size and multiplier.
func (t *TradeRecord) Settle() {
	mult := t.ContractMultiplier
	if mult <= 0 {
		mult = 1
	}
	move := t.Direction.Sign() * (t.ExitPrice - t.EntryPrice)
	t.PnL = move * t.Size * mult
	if t.EntryPrice > 0 {
		t.PnLPct = move / t.EntryPrice * 100
	}
	t.Winner = t.PnL > 0
}

package models

type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

type MarginInfo struct {
	Available   float64
	TotalEquity float64
	UsedMargin  float64
}

type ExchangePosition struct {
	Symbol             string
	Direction          Direction
	Size               float64
	AvgPrice           float64
	LastPrice          float64
	UnrealizedPnL      float64
	UnrealizedPnLRatio float64
	InitialMargin      float64
	Leverage           int
}

type OrderRequest struct {
	Symbol     string
	Side       OrderSide
	Size       float64
	ReduceOnly bool

	// opening orders only, for the pre-order margin check
	RefPrice           float64
	ContractMultiplier float64
	Leverage           float64
}

// Notional in quote currency at RefPrice.
func (r OrderRequest) Notional() float64 {
	mult := r.ContractMultiplier
	if mult <= 0 {
		mult = 1
	}
	return r.Size * r.RefPrice * mult
}

// PosSide is the position leg the order acts on: the order side for opens,
// the opposite leg for reduce-only orders.
func (r OrderRequest) PosSide() Direction {
	open := DirectionLong
	if r.Side == SideSell {
		open = DirectionShort
	}
	if r.ReduceOnly {
		return open.Opposite()
	}
	return open
}

type OrderResult struct {
	OrderID string
	Paper   bool
}

// Instrument is the parsed exchange contract spec.
type Instrument struct {
	InstID    string
	State     string
	LotSz     float64
	MinSz     float64
	TickSz    float64
	CtVal     float64 // ctVal * ctMult
	MaxMktSz  float64
	SettleCcy string
}

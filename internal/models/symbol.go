package models

type SymbolClass string

const (
	ClassStandard       SymbolClass = "standard"
	ClassFlagship       SymbolClass = "flagship"
	ClassHighVolatility SymbolClass = "high_volatility"
)

// SymbolSpec is the trading constraints of one instrument after merging
// exchange metadata over the configured table.
type SymbolSpec struct {
	Symbol             string
	Class              SymbolClass
	LotSize            float64
	MinSize            float64
	TickSize           float64
	ContractMultiplier float64
	MaxContracts       float64
	Leverage           float64
	SafetyLeverage     float64
}

func (s SymbolSpec) Flagship() bool { return s.Class == ClassFlagship }

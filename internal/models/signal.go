package models

type SignalClass string

const (
	SignalMemecoin    SignalClass = "memecoin"
	SignalTraditional SignalClass = "traditional"
	SignalMomentum    SignalClass = "momentum"
	// SignalManual marks positions found on the exchange without local history.
	SignalManual SignalClass = "manual_or_restart"
)

// Rank orders classes for the reversal guard; a higher rank is not overridden by a lower one.
func (c SignalClass) Rank() int {
	switch c {
	case SignalMomentum:
		return 2
	case SignalTraditional, SignalMemecoin:
		return 1
	}
	return 0
}

type Signal struct {
	Symbol    string
	Direction Direction
	Class     SignalClass
	Price     float64
	Reason    string
}

func (s Signal) Empty() bool { return !s.Direction.Valid() }

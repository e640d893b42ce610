package bid

import "github.com/shopspring/decimal"

// Decision is the outcome of the price guard
type Decision int

const (
	Proceed Decision = iota
	Abort
)

func (d Decision) String() string {
	if d == Abort {
		return "abort"
	}
	return "proceed"
}

// Decide aborts only when both prices are known and latest exceeds ceiling.
// A missing price or a missing ceiling never blocks a bid.
func Decide(latest, ceiling *decimal.Decimal) Decision {
	if latest == nil || ceiling == nil {
		return Proceed
	}
	if latest.GreaterThan(*ceiling) {
		return Abort
	}
	return Proceed
}

package agent

import "github.com/rickgao/widget-market/internal/model"

// Action is the outcome of a decision.
type Action int

const (
	Hold Action = iota
	Buy
	Sell
)

func (a Action) String() string {
	switch a {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "hold"
	}
}

// TransactionType maps a buy to an order and a sell to a listing. Hold has no
// transaction.
func (a Action) TransactionType() (model.TransactionType, bool) {
	switch a {
	case Buy:
		return model.Order, true
	case Sell:
		return model.List, true
	default:
		return "", false
	}
}

// Decision is the result of comparing the market price with an expectation.
type Decision struct {
	Action Action
	Spread float64 // expected - current
	Price  float64 // midpoint between current and expected
}

// Decide buys when the good looks undervalued and sells when it looks
// overvalued. The transaction price is the midpoint, never the agent's full
// expectation.
func Decide(current, expected float64) Decision {
	spread := expected - current
	d := Decision{
		Spread: spread,
		Price:  current + spread/2,
	}
	switch {
	case expected > current:
		d.Action = Buy
	case expected < current:
		d.Action = Sell
	default:
		d.Action = Hold
	}
	return d
}

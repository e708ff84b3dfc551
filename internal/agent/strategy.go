package agent

import "github.com/rickgao/widget-market/internal/model"

// Adjustment records how a strategy changed an expectation.
type Adjustment int

const (
	Unchanged Adjustment = iota
	Raised
	Lowered
	Walked
)

func (a Adjustment) String() string {
	switch a {
	case Raised:
		return "raised"
	case Lowered:
		return "lowered"
	case Walked:
		return "walked"
	default:
		return "unchanged"
	}
}

// Strategy updates an expectation after each observation.
type Strategy interface {
	Update(exp *Expectations, good model.Good, counts TrendCounts) Adjustment
}

// NewStrategy picks the strategy for an agent. It is called once, when the
// agent is created.
func NewStrategy(cfg Config) Strategy {
	if cfg.RulesBased {
		return TrendStrategy{LearningRate: cfg.LearningRate, Threshold: cfg.TrendThreshold}
	}
	return RandomWalkStrategy{StdDev: cfg.RandomWalkNoise}
}

// TrendStrategy follows the market: it lowers its expectation when listings
// outnumber orders by more than Threshold, and raises it in the opposite case.
// Smaller imbalances leave it unchanged.
type TrendStrategy struct {
	LearningRate float64
	Threshold    int
}

func (s TrendStrategy) Update(exp *Expectations, good model.Good, counts TrendCounts) Adjustment {
	switch {
	case counts.Lists() > counts.Orders()+s.Threshold:
		exp.Decrease(good, s.LearningRate)
		return Lowered
	case counts.Orders() > counts.Lists()+s.Threshold:
		exp.Increase(good, s.LearningRate)
		return Raised
	default:
		return Unchanged
	}
}

// RandomWalkStrategy ignores the market and moves its expectation by noise.
type RandomWalkStrategy struct {
	StdDev float64
}

func (s RandomWalkStrategy) Update(exp *Expectations, good model.Good, _ TrendCounts) Adjustment {
	exp.RandomWalk(good, s.StdDev)
	return Walked
}

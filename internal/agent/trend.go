package agent

import (
	"log/slog"
	"time"

	"github.com/rickgao/widget-market/internal/model"
)

// EventSource yields raw transaction payloads received since the previous
// call, without blocking.
type EventSource interface {
	Drain(max int) [][]byte
}

// TrendCounts tallies observed transactions by type.
type TrendCounts map[model.TransactionType]int

// Orders returns the number of buy-side events.
func (c TrendCounts) Orders() int { return c[model.Order] }

// Lists returns the number of sell-side events.
func (c TrendCounts) Lists() int { return c[model.List] }

// Observation is what the observer saw in one drain.
type Observation struct {
	Counts    TrendCounts
	Since     time.Time // previous checkpoint; zero on the first observation
	Drained   int       // payloads taken from the source
	Malformed int       // payloads skipped because they did not parse
}

// TrendObserver drains the market channel and classifies what it finds.
type TrendObserver struct {
	source     EventSource
	maxDrain   int
	logger     *slog.Logger
	now        func() time.Time
	checkpoint time.Time
}

// NewTrendObserver creates an observer that takes at most maxDrain events per
// observation.
func NewTrendObserver(source EventSource, maxDrain int, logger *slog.Logger) *TrendObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrendObserver{
		source:   source,
		maxDrain: maxDrain,
		logger:   logger,
		now:      time.Now,
	}
}

// Observe counts the events that arrived since the previous call and moves
// the checkpoint forward. Malformed payloads are skipped and not counted.
// With nothing pending, or no source yet, it returns empty counts immediately.
func (o *TrendObserver) Observe() Observation {
	obs := Observation{
		Counts: make(TrendCounts),
		Since:  o.checkpoint,
	}
	o.checkpoint = o.now()
	if o.source == nil {
		return obs
	}

	payloads := o.source.Drain(o.maxDrain)
	obs.Drained = len(payloads)

	for _, p := range payloads {
		ev, err := model.DecodeEvent(p)
		if err != nil {
			obs.Malformed++
			o.logger.Debug("skipping malformed event", "error", err)
			continue
		}
		obs.Counts[ev.TransactionType]++
	}

	if o.maxDrain > 0 && obs.Drained == o.maxDrain {
		o.logger.Debug("drain limit reached, backlog carried to next cycle", "max_drain", o.maxDrain)
	}
	return obs
}

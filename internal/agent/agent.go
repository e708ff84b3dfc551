package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/widget-market/internal/model"
)

// ErrNotInitialized is returned by Step before the agent has formed its
// first expectation.
var ErrNotInitialized = errors.New("agent not initialized")

// PriceStore is the shared price cell.
type PriceStore interface {
	PriceOrDefault(ctx context.Context, good model.Good, def float64) (float64, error)
	SetPrice(ctx context.Context, good model.Good, price float64) error
}

// Publisher broadcasts transaction events.
type Publisher interface {
	Publish(ctx context.Context, event model.TransactionEvent) error
}

// Subscriber opens the market subscription an agent observes.
type Subscriber func(ctx context.Context) (EventSource, error)

// Cycle reports one pass through the decision loop.
type Cycle struct {
	Price       float64 // market price read at the start of the cycle
	Decision    Decision
	Observation Observation
	Adjustment  Adjustment
	Expected    float64 // expectation after the update
}

// Stats contains runtime counters.
type Stats struct {
	Cycles int64
	Buys   int64
	Sells  int64
	Holds  int64
	Errors int64
}

// Agent runs the decision loop for a single good.
type Agent struct {
	cfg      Config
	store    PriceStore
	pub      Publisher
	observer *TrendObserver
	strategy Strategy
	exp      *Expectations
	rng      Rand
	logger   *slog.Logger

	subscribe   Subscriber
	initialized bool

	mu    sync.Mutex
	stats Stats
}

// New creates an agent. The trading strategy is fixed here from
// cfg.RulesBased. The logger is tagged with the agent's id and mode.
func New(cfg Config, store PriceStore, pub Publisher, events EventSource, rng Rand, logger *slog.Logger) *Agent {
	logger = cfg.Logger(logger)
	return &Agent{
		cfg:      cfg,
		store:    store,
		pub:      pub,
		observer: NewTrendObserver(events, cfg.MaxDrain, logger),
		strategy: NewStrategy(cfg),
		exp:      NewExpectations(cfg.PriceFloor, rng),
		rng:      rng,
		logger:   logger,
	}
}

// NewSubscribed creates an agent that opens its own subscription. Run
// subscribes before initializing and retries every cycle until it succeeds,
// then closes the subscription on return if it implements io.Closer.
func NewSubscribed(cfg Config, store PriceStore, pub Publisher, subscribe Subscriber, rng Rand, logger *slog.Logger) *Agent {
	a := New(cfg, store, pub, nil, rng, logger)
	a.subscribe = subscribe
	return a
}

// Config returns the agent's configuration.
func (a *Agent) Config() Config {
	return a.cfg
}

// Expected returns the agent's current expectation for its good.
func (a *Agent) Expected() float64 {
	p, _ := a.exp.Expected(a.cfg.Good)
	return p
}

// Stats returns current counters. Safe to call from other goroutines.
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Init reads the market price and forms the initial expectation around it.
func (a *Agent) Init(ctx context.Context) error {
	price, err := a.store.PriceOrDefault(ctx, a.cfg.Good, a.cfg.DefaultPrice)
	if err != nil {
		return fmt.Errorf("read initial price: %w", err)
	}

	a.exp.Initialize(a.cfg.Good, price, a.cfg.InitialNoise)
	a.initialized = true

	a.logger.Info("agent initialized",
		"good", a.cfg.Good,
		"market_price", price,
		"expected_price", a.Expected(),
	)
	return nil
}

// Step runs one cycle: read, decide, write and publish, observe, update.
// Transport errors are returned joined; the expectation update still runs
// when only the write or publish failed.
func (a *Agent) Step(ctx context.Context) (Cycle, error) {
	if !a.initialized {
		return Cycle{}, ErrNotInitialized
	}

	good := a.cfg.Good

	price, err := a.store.PriceOrDefault(ctx, good, a.cfg.DefaultPrice)
	if err != nil {
		a.recordError()
		return Cycle{}, fmt.Errorf("read price: %w", err)
	}

	c := Cycle{Price: price}
	c.Decision = Decide(price, a.Expected())

	var errs []error
	if txType, ok := c.Decision.Action.TransactionType(); ok {
		a.logger.Info(c.Decision.Action.String(), "price", c.Decision.Price)
		if err := a.store.SetPrice(ctx, good, c.Decision.Price); err != nil {
			errs = append(errs, fmt.Errorf("write price: %w", err))
		} else if err := a.pub.Publish(ctx, model.TransactionEvent{
			TransactionType: txType,
			Price:           c.Decision.Price,
		}); err != nil {
			errs = append(errs, fmt.Errorf("publish event: %w", err))
		}
	}

	c.Observation = a.observer.Observe()
	c.Adjustment = a.strategy.Update(a.exp, good, c.Observation.Counts)
	c.Expected = a.Expected()

	a.logger.Debug("cycle complete",
		"market_price", price,
		"action", c.Decision.Action.String(),
		"orders", c.Observation.Counts.Orders(),
		"lists", c.Observation.Counts.Lists(),
		"malformed", c.Observation.Malformed,
		"adjustment", c.Adjustment.String(),
		"expected_price", c.Expected,
	)

	a.record(c.Decision.Action, len(errs) > 0)
	return c, errors.Join(errs...)
}

// Run initializes the agent and cycles until ctx is cancelled. Cycle errors
// are logged and the loop carries on; Run only returns once ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent started",
		"good", a.cfg.Good,
		"min_pause", a.cfg.MinPause,
		"max_pause", a.cfg.MaxPause,
	)

	for {
		if ctx.Err() != nil {
			break
		}

		if err := a.cycle(ctx); err != nil && ctx.Err() == nil {
			a.logger.Warn("cycle failed", "error", err)
		}

		if !a.pause(ctx) {
			break
		}
	}

	if c, ok := a.observer.source.(io.Closer); ok && a.subscribe != nil {
		if err := c.Close(); err != nil {
			a.logger.Warn("close subscription", "error", err)
		}
	}

	stats := a.Stats()
	a.logger.Info("agent stopped",
		"cycles", stats.Cycles,
		"buys", stats.Buys,
		"sells", stats.Sells,
		"errors", stats.Errors,
	)
	return nil
}

func (a *Agent) cycle(ctx context.Context) error {
	if a.subscribe != nil && a.observer.source == nil {
		src, err := a.subscribe(ctx)
		if err != nil {
			a.recordError()
			return fmt.Errorf("subscribe: %w", err)
		}
		a.observer.source = src
		a.logger.Info("subscribed to market")
	}
	if !a.initialized {
		if err := a.Init(ctx); err != nil {
			a.recordError()
			return err
		}
	}
	_, err := a.Step(ctx)
	return err
}

// pause sleeps for a uniform duration in [MinPause, MaxPause]. It returns
// false if ctx was cancelled while waiting.
func (a *Agent) pause(ctx context.Context) bool {
	timer := time.NewTimer(a.pauseDuration())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (a *Agent) pauseDuration() time.Duration {
	span := a.cfg.MaxPause - a.cfg.MinPause
	if span <= 0 {
		return a.cfg.MinPause
	}
	return a.cfg.MinPause + time.Duration(a.rng.Float64()*float64(span))
}

func (a *Agent) record(action Action, failed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.Cycles++
	switch action {
	case Buy:
		a.stats.Buys++
	case Sell:
		a.stats.Sells++
	default:
		a.stats.Holds++
	}
	if failed {
		a.stats.Errors++
	}
}

func (a *Agent) recordError() {
	a.mu.Lock()
	a.stats.Errors++
	a.mu.Unlock()
}

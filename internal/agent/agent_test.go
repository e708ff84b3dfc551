package agent

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/widget-market/internal/config"
	"github.com/rickgao/widget-market/internal/model"
)

func newTestAgent(cfg Config, rng Rand) (*Agent, *memStore, *loopback) {
	store := newMemStore()
	feed := &loopback{}
	return New(cfg, store, feed, feed, rng, nil), store, feed
}

func TestAgent_EmptyStoreZeroNoiseHolds(t *testing.T) {
	a, store, feed := newTestAgent(testConfig(true), &seqRand{norms: []float64{0}})
	ctx := context.Background()

	if err := a.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if a.Expected() != 5.0 {
		t.Fatalf("Expected() = %v, want 5.0", a.Expected())
	}

	c, err := a.Step(ctx)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if c.Price != 5.0 {
		t.Errorf("Price = %v, want default 5.0", c.Price)
	}
	if c.Decision.Action != Hold {
		t.Errorf("Action = %v, want hold", c.Decision.Action)
	}
	if store.writes != 0 {
		t.Errorf("store writes = %d, want 0", store.writes)
	}
	if len(feed.published) != 0 {
		t.Errorf("published %d events, want 0", len(feed.published))
	}
}

func TestAgent_PositiveNoiseBuysAtMidpoint(t *testing.T) {
	a, store, feed := newTestAgent(testConfig(true), &seqRand{norms: []float64{0.6}})
	ctx := context.Background()

	if err := a.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	c, err := a.Step(ctx)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if c.Decision.Action != Buy {
		t.Fatalf("Action = %v, want buy", c.Decision.Action)
	}
	if !approx(c.Decision.Price, 5.3) {
		t.Errorf("Price = %v, want 5.3", c.Decision.Price)
	}
	if !approx(store.prices[model.Widget], 5.3) {
		t.Errorf("stored price = %v, want 5.3", store.prices[model.Widget])
	}
	if len(feed.published) != 1 || feed.published[0].TransactionType != model.Order {
		t.Fatalf("published = %+v, want one order", feed.published)
	}

	// The agent hears its own order, which is well inside the threshold.
	if c.Observation.Counts.Orders() != 1 {
		t.Errorf("observed orders = %d, want 1", c.Observation.Counts.Orders())
	}
	if c.Adjustment != Unchanged {
		t.Errorf("Adjustment = %v, want unchanged", c.Adjustment)
	}
}

func TestAgent_SellPublishesList(t *testing.T) {
	a, store, feed := newTestAgent(testConfig(false), &seqRand{norms: []float64{-1, 0}})
	store.prices[model.Widget] = 5.0
	ctx := context.Background()

	if err := a.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	c, err := a.Step(ctx)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if c.Decision.Action != Sell || !approx(c.Decision.Price, 4.5) {
		t.Errorf("Decision = %+v, want sell at 4.5", c.Decision)
	}
	if len(feed.published) != 1 || feed.published[0].TransactionType != model.List {
		t.Errorf("published = %+v, want one list", feed.published)
	}
	if c.Adjustment != Walked {
		t.Errorf("Adjustment = %v, want walked", c.Adjustment)
	}
}

func TestAgent_TrendRaisesExpectation(t *testing.T) {
	a, _, feed := newTestAgent(testConfig(true), &seqRand{norms: []float64{0}})
	ctx := context.Background()

	if err := a.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	feed.inject(payloads(10, 3)...)

	c, err := a.Step(ctx)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if c.Adjustment != Raised {
		t.Errorf("Adjustment = %v, want raised", c.Adjustment)
	}
	// Increase is additive: 5.0 + learning rate.
	if !approx(c.Expected, 5.1) {
		t.Errorf("Expected = %v, want 5.1", c.Expected)
	}
}

func TestAgent_TrendSmallImbalanceUnchanged(t *testing.T) {
	a, _, feed := newTestAgent(testConfig(true), &seqRand{norms: []float64{0}})
	ctx := context.Background()

	if err := a.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	feed.inject(payloads(5, 4)...)

	c, err := a.Step(ctx)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if c.Adjustment != Unchanged || c.Expected != 5.0 {
		t.Errorf("Adjustment = %v, Expected = %v; want unchanged at 5.0", c.Adjustment, c.Expected)
	}
}

func TestAgent_StepBeforeInit(t *testing.T) {
	a, _, _ := newTestAgent(testConfig(true), &seqRand{})

	if _, err := a.Step(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Step() error = %v, want ErrNotInitialized", err)
	}
}

func TestAgent_ReadErrorSkipsCycle(t *testing.T) {
	a, store, feed := newTestAgent(testConfig(true), &seqRand{norms: []float64{1}})
	ctx := context.Background()

	if err := a.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	store.readErr = errTransport

	if _, err := a.Step(ctx); !errors.Is(err, errTransport) {
		t.Errorf("Step() error = %v, want transport error", err)
	}
	if len(feed.published) != 0 {
		t.Errorf("published %d events after read failure", len(feed.published))
	}
	if a.Stats().Errors != 1 {
		t.Errorf("Stats().Errors = %d, want 1", a.Stats().Errors)
	}
}

func TestAgent_WriteErrorStillUpdates(t *testing.T) {
	a, store, feed := newTestAgent(testConfig(true), &seqRand{norms: []float64{1}})
	ctx := context.Background()

	if err := a.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	store.writeErr = errTransport
	feed.inject(payloads(0, 10)...)

	c, err := a.Step(ctx)
	if !errors.Is(err, errTransport) {
		t.Fatalf("Step() error = %v, want transport error", err)
	}
	if len(feed.published) != 0 {
		t.Errorf("published after failed write")
	}
	if c.Adjustment != Lowered {
		t.Errorf("Adjustment = %v, want lowered", c.Adjustment)
	}
}

func TestAgent_PublishError(t *testing.T) {
	a, store, feed := newTestAgent(testConfig(true), &seqRand{norms: []float64{1}})
	ctx := context.Background()

	if err := a.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	feed.publishErr = errTransport

	if _, err := a.Step(ctx); !errors.Is(err, errTransport) {
		t.Errorf("Step() error = %v, want transport error", err)
	}
	if store.writes != 1 {
		t.Errorf("store writes = %d, want 1", store.writes)
	}
}

func TestAgent_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(true)
	cfg.MinPause = time.Hour
	cfg.MaxPause = time.Hour
	a, _, _ := newTestAgent(cfg, &seqRand{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Wait for the first cycle, then cancel during the pause.
	deadline := time.Now().Add(2 * time.Second)
	for a.Stats().Cycles == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if got := a.Stats().Cycles; got != 1 {
		t.Errorf("Cycles = %d, want 1", got)
	}
}

func TestAgent_RunRetriesInit(t *testing.T) {
	cfg := testConfig(true)
	cfg.MinPause = time.Millisecond
	cfg.MaxPause = 2 * time.Millisecond
	a, store, _ := newTestAgent(cfg, &seqRand{})

	store.mu.Lock()
	store.readErr = errTransport
	store.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for a.Stats().Errors < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if a.Stats().Errors < 2 {
		t.Fatal("agent did not keep retrying after errors")
	}

	store.mu.Lock()
	store.readErr = nil
	store.mu.Unlock()

	for a.Stats().Cycles == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if a.Stats().Cycles == 0 {
		t.Error("agent never completed a cycle after the store recovered")
	}

	cancel()
	<-done
}

// closingLoopback records whether the agent closed the subscription it opened.
type closingLoopback struct {
	loopback
	closed bool
}

func (c *closingLoopback) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestAgent_RunRetriesSubscribe(t *testing.T) {
	cfg := testConfig(true)
	cfg.MinPause = time.Millisecond
	cfg.MaxPause = 2 * time.Millisecond

	feed := &closingLoopback{}
	var mu sync.Mutex
	attempts := 0
	subscribe := func(context.Context) (EventSource, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return nil, errTransport
		}
		return feed, nil
	}
	a := NewSubscribed(cfg, newMemStore(), feed, subscribe, &seqRand{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for a.Stats().Cycles == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if a.Stats().Cycles == 0 {
		t.Fatal("agent never completed a cycle after subscribe recovered")
	}
	if got := a.Stats().Errors; got != 2 {
		t.Errorf("Errors = %d, want 2 failed subscribes", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}

	mu.Lock()
	if attempts != 3 {
		t.Errorf("subscribe attempts = %d, want 3", attempts)
	}
	mu.Unlock()

	feed.mu.Lock()
	defer feed.mu.Unlock()
	if !feed.closed {
		t.Error("subscription not closed after Run returned")
	}
}

func TestAgent_PauseDuration(t *testing.T) {
	cfg := testConfig(true)
	cfg.MinPause = 3 * time.Second
	cfg.MaxPause = 10 * time.Second

	a, _, _ := newTestAgent(cfg, &seqRand{floats: []float64{0, 0.5, 0.999999}})

	if got := a.pauseDuration(); got != 3*time.Second {
		t.Errorf("pauseDuration() = %v, want 3s", got)
	}
	if got := a.pauseDuration(); got != 6500*time.Millisecond {
		t.Errorf("pauseDuration() = %v, want 6.5s", got)
	}
	if got := a.pauseDuration(); got < 9900*time.Millisecond || got >= 10*time.Second {
		t.Errorf("pauseDuration() = %v, want just under 10s", got)
	}
}

func TestNewID(t *testing.T) {
	re := regexp.MustCompile(`^[a-zA-Z]{10}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewID()
		if err != nil {
			t.Fatalf("NewID() error = %v", err)
		}
		if !re.MatchString(id) {
			t.Fatalf("NewID() = %q, want 10 ASCII letters", id)
		}
		seen[id] = true
	}
	if len(seen) < 100 {
		t.Errorf("NewID() produced duplicates: %d unique of 100", len(seen))
	}
}

func TestChooseMode(t *testing.T) {
	tests := []struct {
		mode  string
		draw  float64
		want  bool
		fails bool
	}{
		{mode: config.ModeRules, want: true},
		{mode: config.ModeNoise, want: false},
		{mode: config.ModeRandom, draw: 0.2, want: true},
		{mode: config.ModeRandom, draw: 0.7, want: false},
		{mode: "clever", fails: true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			got, err := ChooseMode(tt.mode, &seqRand{floats: []float64{tt.draw}})
			if tt.fails {
				if err == nil {
					t.Error("ChooseMode() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ChooseMode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ChooseMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChooseMode_Uniform(t *testing.T) {
	rng := NewRand(3, 4)
	rules := 0
	const n = 10000
	for i := 0; i < n; i++ {
		if ok, _ := ChooseMode(config.ModeRandom, rng); ok {
			rules++
		}
	}
	if rules < n*45/100 || rules > n*55/100 {
		t.Errorf("rules-based %d of %d, want about half", rules, n)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Agent.Mode = config.ModeRules

	ac, err := NewConfig(cfg, &seqRand{})
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	if !ac.RulesBased {
		t.Error("RulesBased = false, want true")
	}
	if ac.Good != model.Widget {
		t.Errorf("Good = %q, want widget", ac.Good)
	}
	if ac.LearningRate != config.DefaultLearningRate {
		t.Errorf("LearningRate = %v, want %v", ac.LearningRate, config.DefaultLearningRate)
	}
	if ac.MaxDrain != config.DefaultMaxDrain {
		t.Errorf("MaxDrain = %d, want %d", ac.MaxDrain, config.DefaultMaxDrain)
	}
	if len(ac.ID) != 10 {
		t.Errorf("ID = %q, want 10 characters", ac.ID)
	}
}

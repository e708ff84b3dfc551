package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/widget-market/internal/model"
)

// PriceReader reads the current market price. *pricestore.Store satisfies it.
type PriceReader interface {
	Price(ctx context.Context, good model.Good) (float64, bool, error)
}

// SampleHandler receives price samples.
type SampleHandler interface {
	HandleSample(ctx context.Context, sample model.PriceSample) error
}

// SampleHandlerFunc is a function adapter for SampleHandler.
type SampleHandlerFunc func(context.Context, model.PriceSample) error

func (f SampleHandlerFunc) HandleSample(ctx context.Context, s model.PriceSample) error {
	return f(ctx, s)
}

// Config holds sampler configuration.
type Config struct {
	Goods        []model.Good
	Interval     time.Duration // Sample interval (default: 15s)
	Timeout      time.Duration // Per-read timeout (default: 5s)
	Concurrency  int           // Max concurrent reads (default: 4)
	DefaultPrice float64       // Reported when the store has no price
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Goods:        []model.Good{model.Widget},
		Interval:     15 * time.Second,
		Timeout:      5 * time.Second,
		Concurrency:  4,
		DefaultPrice: 5.0,
	}
}

// Stats contains sampler counters.
type Stats struct {
	Rounds  int64 `json:"rounds"`
	Samples int64 `json:"samples"`
	Errors  int64 `json:"errors"`
}

// Sampler periodically samples market prices.
type Sampler struct {
	cfg     Config
	prices  PriceReader
	handler SampleHandler
	logger  *slog.Logger
	now     func() time.Time

	rounds, samples, errors atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Sampler.
func New(cfg Config, prices PriceReader, handler SampleHandler, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Sampler{
		cfg:     cfg,
		prices:  prices,
		handler: handler,
		logger:  logger,
		now:     time.Now,
	}
}

// Start begins the sampling loop.
func (s *Sampler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("price sampler started",
		"interval", s.cfg.Interval,
		"goods", len(s.cfg.Goods),
	)
	return nil
}

// Stop gracefully shuts down the sampler.
func (s *Sampler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("price sampler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (s *Sampler) Stats() Stats {
	return Stats{
		Rounds:  s.rounds.Load(),
		Samples: s.samples.Load(),
		Errors:  s.errors.Load(),
	}
}

func (s *Sampler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Sample immediately on start.
	s.sampleAll()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sampleAll()
		}
	}
}

// sampleAll reads every tracked good concurrently.
func (s *Sampler) sampleAll() {
	start := time.Now()

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	var sampled, failed atomic.Int64

	for _, good := range s.cfg.Goods {
		wg.Add(1)
		go func(good model.Good) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-s.ctx.Done():
				return
			}

			if err := s.sample(good); err != nil {
				s.logger.Warn("failed to sample price",
					"good", good,
					"err", err,
				)
				failed.Add(1)
				return
			}
			sampled.Add(1)
		}(good)
	}

	wg.Wait()

	s.rounds.Add(1)
	s.samples.Add(sampled.Load())
	s.errors.Add(failed.Load())

	s.logger.Debug("sample round complete",
		"goods", len(s.cfg.Goods),
		"sampled", sampled.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
}

func (s *Sampler) sample(good model.Good) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout)
	defer cancel()

	price, ok, err := s.prices.Price(ctx, good)
	if err != nil {
		return err
	}
	if !ok {
		price = s.cfg.DefaultPrice
	}

	sample := model.PriceSample{
		Good:      good,
		Price:     price,
		Present:   ok,
		SampledAt: s.now().UnixMicro(),
	}

	if s.handler != nil {
		return s.handler.HandleSample(ctx, sample)
	}
	return nil
}

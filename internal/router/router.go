package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/widget-market/internal/marketfeed"
	"github.com/rickgao/widget-market/internal/model"
)

// Source yields raw event payloads. *marketfeed.Subscription satisfies it.
type Source interface {
	Receive(ctx context.Context) ([]byte, error)
}

// Config holds configuration for the Router.
type Config struct {
	Good model.Good // stamped on every transaction

	JournalBufferSize int // initial capacity, grows without bound
	LiveBufferSize    int // initial capacity; 0 disables the live buffer
	LiveBufferMax     int // live buffer drops oldest beyond this
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Good:              model.Widget,
		JournalBufferSize: 1000,
		LiveBufferSize:    100,
		LiveBufferMax:     10000,
	}
}

// Router parses raw transaction events and fans them out to consumers.
type Router interface {
	// Start begins reading from the source.
	Start(ctx context.Context) error

	// Stop shuts down the router and closes its buffers.
	Stop(ctx context.Context) error

	// Buffers returns output buffers for consumers.
	Buffers() Buffers

	// Stats returns current router statistics.
	Stats() Stats
}

// Buffers provides access to output buffers.
type Buffers struct {
	Journal *GrowableBuffer[model.Transaction] // consumed by the writer
	Live    *GrowableBuffer[model.Transaction] // consumed by the live feed; nil if disabled
}

// Stats contains runtime statistics.
type Stats struct {
	MessagesReceived int64       `json:"messages_received"`
	MessagesRouted   int64       `json:"messages_routed"`
	ParseErrors      int64       `json:"parse_errors"`
	Orders           int64       `json:"orders"`
	Lists            int64       `json:"lists"`
	JournalBuffer    BufferStats `json:"journal_buffer"`
	LiveBuffer       BufferStats `json:"live_buffer"`
}

type router struct {
	cfg    Config
	logger *slog.Logger
	src    Source

	journal *GrowableBuffer[model.Transaction]
	live    *GrowableBuffer[model.Transaction]

	now   func() time.Time
	newID func() uuid.UUID

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.RWMutex
	received    int64
	routed      int64
	parseErrors int64
	orders      int64
	lists       int64
}

// NewRouter creates a Router reading from src.
func NewRouter(cfg Config, src Source, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &router{
		cfg:     cfg,
		logger:  logger,
		src:     src,
		journal: NewGrowableBuffer[model.Transaction](cfg.JournalBufferSize),
		now:     time.Now,
		newID:   uuid.New,
	}
	if cfg.LiveBufferSize > 0 {
		r.live = NewBoundedBuffer[model.Transaction](cfg.LiveBufferSize, cfg.LiveBufferMax)
	}
	return r
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("transaction router started",
		"good", r.cfg.Good,
		"journal_buffer", r.cfg.JournalBufferSize,
		"live_buffer", r.cfg.LiveBufferSize,
	)
	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping transaction router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("transaction router stopped")
	case <-ctx.Done():
		r.logger.Warn("transaction router stop timed out")
	}

	r.journal.Close()
	if r.live != nil {
		r.live.Close()
	}
	return nil
}

// Buffers returns output buffers.
func (r *router) Buffers() Buffers {
	return Buffers{Journal: r.journal, Live: r.live}
}

// Stats returns current statistics.
func (r *router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		MessagesReceived: r.received,
		MessagesRouted:   r.routed,
		ParseErrors:      r.parseErrors,
		Orders:           r.orders,
		Lists:            r.lists,
		JournalBuffer:    r.journal.Stats(),
	}
	if r.live != nil {
		s.LiveBuffer = r.live.Stats()
	}
	return s
}

func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		data, err := r.src.Receive(r.ctx)
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			if errors.Is(err, marketfeed.ErrClosed) {
				r.logger.Info("event source closed")
				return
			}
			r.logger.Warn("receive failed", "error", err)
			continue
		}
		r.route(data)
	}
}

// route parses a single payload and hands the transaction to the buffers.
func (r *router) route(data []byte) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	ev, err := model.DecodeEvent(data)
	if err != nil {
		r.logger.Warn("failed to parse transaction event", "error", err)
		r.mu.Lock()
		r.parseErrors++
		r.mu.Unlock()
		return
	}

	tx := model.Transaction{
		ID:         r.newID(),
		Good:       r.cfg.Good,
		Type:       ev.TransactionType,
		Price:      ev.Price,
		ReceivedAt: r.now().UnixMicro(),
	}

	sent := r.journal.Send(tx)
	if r.live != nil {
		r.live.Send(tx)
	}

	if !sent {
		return
	}

	r.mu.Lock()
	r.routed++
	if tx.Type == model.Order {
		r.orders++
	} else {
		r.lists++
	}
	r.mu.Unlock()
}

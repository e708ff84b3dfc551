package livefeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/widget-market/internal/model"
	"github.com/rickgao/widget-market/internal/router"
)

// Config holds hub configuration.
type Config struct {
	ClientBuffer int           // queued frames per watcher (default: 64)
	WriteTimeout time.Duration // per-frame write deadline (default: 5s)
	PingInterval time.Duration // keepalive ping period (default: 30s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ClientBuffer: 64,
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Message is the JSON frame sent for each transaction.
type Message struct {
	ID              string  `json:"id"`
	Good            string  `json:"good"`
	TransactionType string  `json:"transaction_type"`
	Price           float64 `json:"price"`
	ReceivedAt      int64   `json:"received_at"`
}

// NewMessage converts a recorded transaction to its wire form.
func NewMessage(tx model.Transaction) Message {
	return Message{
		ID:              tx.ID.String(),
		Good:            string(tx.Good),
		TransactionType: string(tx.Type),
		Price:           tx.Price,
		ReceivedAt:      tx.ReceivedAt,
	}
}

// Stats contains hub counters.
type Stats struct {
	Clients   int   `json:"clients"`
	Broadcast int64 `json:"broadcast"`
	Dropped   int64 `json:"dropped"`
}

type watcher struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (w *watcher) close() {
	w.once.Do(func() {
		close(w.done)
		w.conn.Close()
	})
}

// Hub fans transactions out to connected websocket watchers.
type Hub struct {
	cfg      Config
	input    *router.GrowableBuffer[model.Transaction]
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	watchers  map[*watcher]struct{}
	broadcast int64
	dropped   int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub creates a hub reading from input.
func NewHub(cfg Config, input *router.GrowableBuffer[model.Transaction], logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:    cfg,
		input:  input,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		watchers: make(map[*watcher]struct{}),
	}
}

// Start begins broadcasting.
func (h *Hub) Start(ctx context.Context) error {
	h.ctx, h.cancel = context.WithCancel(ctx)

	h.wg.Add(1)
	go h.broadcastLoop()

	h.logger.Info("live feed started", "client_buffer", h.cfg.ClientBuffer)
	return nil
}

// Stop disconnects every watcher and stops broadcasting.
func (h *Hub) Stop(ctx context.Context) error {
	if h.cancel != nil {
		h.cancel()
	}

	h.mu.Lock()
	for w := range h.watchers {
		w.close()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("live feed stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Clients:   len(h.watchers),
		Broadcast: h.broadcast,
		Dropped:   h.dropped,
	}
}

// ServeHTTP upgrades the request and registers the connection as a watcher.
func (h *Hub) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	w := &watcher{
		conn: conn,
		send: make(chan []byte, h.cfg.ClientBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.ctx != nil && h.ctx.Err() != nil {
		h.mu.Unlock()
		w.close()
		return
	}
	h.watchers[w] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	h.logger.Debug("watcher connected", "remote", r.RemoteAddr)

	go h.writePump(w)

	// Watchers never send; reading only surfaces the close.
	go func() {
		defer h.remove(w)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(w *watcher) {
	h.mu.Lock()
	delete(h.watchers, w)
	h.mu.Unlock()
	w.close()
}

func (h *Hub) writePump(w *watcher) {
	defer h.wg.Done()
	defer h.remove(w)

	ping := time.NewTicker(h.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-w.done:
			return
		case data := <-w.send:
			w.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("watcher write failed", "error", err)
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := w.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return
		default:
		}

		tx, ok := h.input.TryReceive()
		if !ok {
			select {
			case <-h.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		data, err := json.Marshal(NewMessage(tx))
		if err != nil {
			h.logger.Warn("encode live message", "error", err)
			continue
		}
		h.publish(data)
	}
}

func (h *Hub) publish(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.broadcast++
	for w := range h.watchers {
		select {
		case w.send <- data:
		default:
			h.dropped++
		}
	}
}

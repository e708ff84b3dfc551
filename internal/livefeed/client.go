package livefeed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrStaleConnection is reported when the hub has gone quiet for longer than
// the read timeout, pings included.
var ErrStaleConnection = errors.New("live feed stale (no frames or pings)")

// ClientConfig holds watcher client settings.
type ClientConfig struct {
	URL              string        // e.g. ws://localhost:8080/ws
	HandshakeTimeout time.Duration // default: 10s
	ReadTimeout      time.Duration // default: 90s, three hub ping periods
	BufferSize       int           // default: 256
}

// DefaultClientConfig returns defaults for a local recorder.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:              "ws://localhost:8080/ws",
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      90 * time.Second,
		BufferSize:       256,
	}
}

// Client follows a recorder's live feed.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger
	conn   *websocket.Conn

	messages chan Message
	errors   chan error
	done     chan struct{}

	mu     sync.Mutex
	closed bool
}

// Dial connects to the live feed at cfg.URL.
func Dial(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      cfg,
		logger:   logger,
		conn:     conn,
		messages: make(chan Message, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}

	// Any ping from the hub proves it is alive.
	conn.SetPingHandler(func(data string) error {
		c.extendDeadline()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	c.extendDeadline()

	go c.readLoop()

	logger.Debug("live feed connected", "url", cfg.URL)
	return c, nil
}

// Messages returns decoded transactions. It is closed when the connection
// ends, after the ending error, if any, has been queued on Errors.
func (c *Client) Messages() <-chan Message {
	return c.messages
}

// Errors returns the error that ended the connection, if any.
func (c *Client) Errors() <-chan error {
	return c.errors
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)

	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}

func (c *Client) extendDeadline() {
	if c.cfg.ReadTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
}

func (c *Client) readLoop() {
	defer close(c.messages)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				err = ErrStaleConnection
			}
			select {
			case c.errors <- err:
			default:
			}
			return
		}
		c.extendDeadline()

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("skipping malformed live frame", "error", err)
			continue
		}

		select {
		case c.messages <- msg:
		case <-c.done:
			return
		default:
			c.logger.Warn("live buffer full, dropping message")
		}
	}
}

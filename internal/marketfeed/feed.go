package marketfeed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/widget-market/internal/model"
)

// ErrClosed is returned by Receive once the subscription is closed.
var ErrClosed = errors.New("subscription closed")

// Publisher broadcasts transaction events on a topic.
type Publisher struct {
	client *redis.Client
	topic  string
}

// NewPublisher creates a Publisher for topic.
func NewPublisher(client *redis.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Topic returns the topic events are published on.
func (p *Publisher) Topic() string {
	return p.topic
}

// Publish encodes the event as JSON and publishes it.
func (p *Publisher) Publish(ctx context.Context, event model.TransactionEvent) error {
	payload, err := event.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}
	return nil
}

// Subscription is a live subscription to a topic. Subscribe confirmations are
// consumed internally; only message payloads are exposed.
type Subscription struct {
	topic  string
	pubsub *redis.PubSub
	ch     <-chan *redis.Message

	mu     sync.Mutex
	closed bool
}

// Subscribe subscribes to topic and waits for the server to confirm, so any
// event published after Subscribe returns is delivered. bufferSize bounds the
// number of undrained events held locally.
func Subscribe(ctx context.Context, client *redis.Client, topic string, bufferSize int) (*Subscription, error) {
	pubsub := client.Subscribe(ctx, topic)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	if bufferSize < 1 {
		bufferSize = 1
	}

	return &Subscription{
		topic:  topic,
		pubsub: pubsub,
		ch:     pubsub.Channel(redis.WithChannelSize(bufferSize)),
	}, nil
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Drain returns the payloads of events received since the previous call
// without blocking. At most max payloads are returned; max <= 0 means no
// limit. Events beyond max stay buffered for the next call.
func (s *Subscription) Drain(max int) [][]byte {
	var out [][]byte
	for max <= 0 || len(out) < max {
		select {
		case msg, ok := <-s.ch:
			if !ok {
				return out
			}
			out = append(out, []byte(msg.Payload))
		default:
			return out
		}
	}
	return out
}

// Receive blocks until the next payload arrives, ctx is done, or the
// subscription is closed.
func (s *Subscription) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-s.ch:
		if !ok {
			return nil, ErrClosed
		}
		return []byte(msg.Payload), nil
	}
}

// Close unsubscribes and releases the connection. Safe to call more than once.
func (s *Subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.pubsub.Close()
}

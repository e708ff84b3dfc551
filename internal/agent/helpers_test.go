package agent

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/rickgao/widget-market/internal/model"
)

// seqRand replays fixed draws. Once a sequence runs out it returns 0 for
// normals and 0.5 for uniforms.
type seqRand struct {
	norms  []float64
	floats []float64
}

func (r *seqRand) NormFloat64() float64 {
	if len(r.norms) == 0 {
		return 0
	}
	v := r.norms[0]
	r.norms = r.norms[1:]
	return v
}

func (r *seqRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.5
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

// memStore is an in-memory PriceStore.
type memStore struct {
	mu       sync.Mutex
	prices   map[model.Good]float64
	readErr  error
	writeErr error
	writes   int
}

func newMemStore() *memStore {
	return &memStore{prices: make(map[model.Good]float64)}
}

func (s *memStore) PriceOrDefault(_ context.Context, good model.Good, def float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return 0, s.readErr
	}
	if p, ok := s.prices[good]; ok {
		return p, nil
	}
	return def, nil
}

func (s *memStore) SetPrice(_ context.Context, good model.Good, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.prices[good] = price
	s.writes++
	return nil
}

// loopback publishes straight into its own pending queue, like a Redis
// subscriber that also sees its own messages.
type loopback struct {
	mu         sync.Mutex
	pending    [][]byte
	published  []model.TransactionEvent
	publishErr error
}

func (l *loopback) Publish(_ context.Context, ev model.TransactionEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.publishErr != nil {
		return l.publishErr
	}
	data, err := ev.Encode()
	if err != nil {
		return err
	}
	l.published = append(l.published, ev)
	l.pending = append(l.pending, data)
	return nil
}

func (l *loopback) Drain(max int) [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.pending)
	if max > 0 && max < n {
		n = max
	}
	out := l.pending[:n:n]
	l.pending = l.pending[n:]
	return out
}

func (l *loopback) inject(payloads ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range payloads {
		l.pending = append(l.pending, []byte(p))
	}
}

var errTransport = errors.New("connection refused")

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func testConfig(rulesBased bool) Config {
	return Config{
		ID:              "testagentA",
		RulesBased:      rulesBased,
		Good:            model.Widget,
		DefaultPrice:    5.0,
		LearningRate:    0.1,
		TrendThreshold:  3,
		PriceFloor:      0.01,
		InitialNoise:    1,
		RandomWalkNoise: 2,
		MaxDrain:        500,
	}
}

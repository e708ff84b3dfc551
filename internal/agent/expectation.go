package agent

import (
	"math"

	"github.com/rickgao/widget-market/internal/model"
)

// Expectations holds an agent's private expected price per good. Every
// mutation clamps the result to the floor, so an expectation never reaches
// zero or goes negative.
type Expectations struct {
	prices map[model.Good]float64
	floor  float64
	rng    Rand
}

// NewExpectations creates an empty set of expectations.
func NewExpectations(floor float64, rng Rand) *Expectations {
	return &Expectations{
		prices: make(map[model.Good]float64),
		floor:  floor,
		rng:    rng,
	}
}

// Initialize sets the expectation for good to the observed price plus normal
// noise with the given standard deviation.
func (e *Expectations) Initialize(good model.Good, observed, stddev float64) {
	e.prices[good] = e.clamp(observed + e.rng.NormFloat64()*stddev)
}

// Expected returns the current expectation for good.
func (e *Expectations) Expected(good model.Good) (float64, bool) {
	p, ok := e.prices[good]
	return p, ok
}

// Increase raises the expectation by rate. Unknown goods are ignored.
func (e *Expectations) Increase(good model.Good, rate float64) {
	if p, ok := e.prices[good]; ok {
		e.prices[good] = e.clamp(p + rate)
	}
}

// Decrease lowers the expectation by rate, stopping at the floor.
func (e *Expectations) Decrease(good model.Good, rate float64) {
	if p, ok := e.prices[good]; ok {
		e.prices[good] = e.clamp(p - rate)
	}
}

// RandomWalk moves the expectation by normal noise with the given standard
// deviation, stopping at the floor.
func (e *Expectations) RandomWalk(good model.Good, stddev float64) {
	if p, ok := e.prices[good]; ok {
		e.prices[good] = e.clamp(p + e.rng.NormFloat64()*stddev)
	}
}

func (e *Expectations) clamp(p float64) float64 {
	// NaN compares false everywhere; pin it to the floor too.
	if math.IsNaN(p) {
		return e.floor
	}
	return math.Max(p, e.floor)
}

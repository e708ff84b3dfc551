package agent

import (
	"fmt"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid"

	"github.com/rickgao/widget-market/internal/config"
	"github.com/rickgao/widget-market/internal/model"
)

const (
	idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idLength   = 10
)

// Config is everything an agent needs to know about itself. It is built once
// at process entry and never changes afterwards.
type Config struct {
	ID         string
	RulesBased bool
	Good       model.Good

	DefaultPrice    float64 // assumed when the store has no price
	LearningRate    float64
	TrendThreshold  int
	PriceFloor      float64
	InitialNoise    float64 // stddev
	RandomWalkNoise float64 // stddev

	MinPause time.Duration
	MaxPause time.Duration
	MaxDrain int
}

// NewConfig builds an agent Config from the loaded configuration, generating
// a fresh identity and choosing the trading mode.
func NewConfig(cfg *config.Config, rng Rand) (Config, error) {
	id, err := NewID()
	if err != nil {
		return Config{}, err
	}

	rulesBased, err := ChooseMode(cfg.Agent.Mode, rng)
	if err != nil {
		return Config{}, err
	}

	return Config{
		ID:              id,
		RulesBased:      rulesBased,
		Good:            model.Good(cfg.Market.Good),
		DefaultPrice:    cfg.Market.DefaultPrice,
		LearningRate:    cfg.Agent.LearningRate,
		TrendThreshold:  cfg.Agent.TrendThreshold,
		PriceFloor:      cfg.Agent.PriceFloor,
		InitialNoise:    cfg.Agent.InitialNoise,
		RandomWalkNoise: cfg.Agent.RandomWalkNoise,
		MinPause:        cfg.Agent.MinPause,
		MaxPause:        cfg.Agent.MaxPause,
		MaxDrain:        cfg.Agent.MaxDrain,
	}, nil
}

// NewID returns a random 10-letter agent identifier.
func NewID() (string, error) {
	id, err := gonanoid.Generate(idAlphabet, idLength)
	if err != nil {
		return "", fmt.Errorf("generate agent id: %w", err)
	}
	return id, nil
}

// ChooseMode resolves a configured mode to the rules-based flag. The random
// mode flips a fair coin.
func ChooseMode(mode string, rng Rand) (bool, error) {
	switch mode {
	case config.ModeRules:
		return true, nil
	case config.ModeNoise:
		return false, nil
	case config.ModeRandom, "":
		return rng.Float64() < 0.5, nil
	default:
		return false, fmt.Errorf("unknown agent mode %q", mode)
	}
}

// Logger tags base with the agent's identity and mode.
func (c Config) Logger(base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("agent_id", c.ID, "rules_based", c.RulesBased)
}

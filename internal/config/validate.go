package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	if c.Redis.Host == "" {
		return errors.New("redis.host is required")
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("redis.port must be between 1 and 65535, got %d", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Market.Good == "" {
		return errors.New("market.good is required")
	}
	if c.Market.Topic == "" {
		return errors.New("market.topic is required")
	}
	if c.Market.DefaultPrice <= 0 {
		return fmt.Errorf("market.default_price must be > 0, got %v", c.Market.DefaultPrice)
	}
	if c.Market.ChannelSize < 1 {
		return errors.New("market.channel_size must be >= 1")
	}

	if err := c.Agent.validate(); err != nil {
		return err
	}

	if c.Swarm.Agents < 1 {
		return errors.New("swarm.agents must be >= 1")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (a *AgentConfig) validate() error {
	switch a.Mode {
	case ModeRandom, ModeRules, ModeNoise:
	default:
		return fmt.Errorf("agent.mode must be one of random, rules, noise, got %q", a.Mode)
	}
	if a.LearningRate <= 0 {
		return fmt.Errorf("agent.learning_rate must be > 0, got %v", a.LearningRate)
	}
	if a.TrendThreshold < 0 {
		return fmt.Errorf("agent.trend_threshold must be >= 0, got %d", a.TrendThreshold)
	}
	if a.PriceFloor <= 0 {
		return fmt.Errorf("agent.price_floor must be > 0, got %v", a.PriceFloor)
	}
	if a.InitialNoise < 0 || a.RandomWalkNoise < 0 {
		return errors.New("agent noise standard deviations must be >= 0")
	}
	if a.MinPause < 0 {
		return fmt.Errorf("agent.min_pause must be >= 0, got %v", a.MinPause)
	}
	if a.MaxPause < a.MinPause {
		return fmt.Errorf("agent.max_pause (%v) cannot be less than min_pause (%v)", a.MaxPause, a.MinPause)
	}
	if a.MaxDrain < 1 {
		return errors.New("agent.max_drain must be >= 1")
	}
	return nil
}

// ValidateRecorder checks the settings only the recorder needs.
func (c *Config) ValidateRecorder() error {
	if err := c.Recorder.Database.validate("recorder.database"); err != nil {
		return err
	}
	if c.Recorder.Writer.BatchSize < 1 {
		return errors.New("recorder.writer.batch_size must be >= 1")
	}
	if c.Recorder.Writer.FlushInterval <= 0 {
		return errors.New("recorder.writer.flush_interval must be > 0")
	}
	if c.Recorder.Sampler.Interval <= 0 {
		return errors.New("recorder.sampler.interval must be > 0")
	}
	if c.Recorder.HTTP.Port < 1 || c.Recorder.HTTP.Port > 65535 {
		return fmt.Errorf("recorder.http.port must be between 1 and 65535, got %d", c.Recorder.HTTP.Port)
	}
	if c.Recorder.BufferSize < 1 {
		return errors.New("recorder.buffer_size must be >= 1")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// ParseLevel maps a log.level value to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", level)
	}
}

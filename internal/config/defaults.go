package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRedisHost         = "redis"
	DefaultRedisPort         = 6379
	DefaultRedisPoolSize     = 10
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second
	DefaultGood              = "widget"
	DefaultTopic             = "widget-market"
	DefaultPrice             = 5.0
	DefaultChannelSize       = 1000
	DefaultMode              = ModeRandom
	DefaultLearningRate      = 0.1
	DefaultTrendThreshold    = 3
	DefaultPriceFloor        = 0.01
	DefaultInitialNoise      = 1.0
	DefaultRandomWalkNoise   = 2.0
	DefaultMinPause          = 3 * time.Second
	DefaultMaxPause          = 10 * time.Second
	DefaultMaxDrain          = 500
	DefaultSwarmAgents       = 10
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultSampleInterval    = 15 * time.Second
	DefaultSampleTimeout     = 5 * time.Second
	DefaultHTTPPort          = 8080
	DefaultBufferSize        = 1000
	DefaultLogLevel          = "debug"
	DefaultLogFormat         = "text"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := newConfig()
	cfg.applyDefaults()
	return cfg
}

// newConfig returns the config a file is decoded into. Fields where zero is a
// meaningful setting are preset here rather than in applyDefaults, so a key
// absent from the file keeps the default and an explicit 0 stays 0.
func newConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			TrendThreshold:  DefaultTrendThreshold,
			InitialNoise:    DefaultInitialNoise,
			RandomWalkNoise: DefaultRandomWalkNoise,
		},
	}
}

func (c *Config) applyDefaults() {
	// Redis defaults
	if c.Redis.Host == "" {
		c.Redis.Host = DefaultRedisHost
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = DefaultRedisPort
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = DefaultRedisPoolSize
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = DefaultRedisDialTimeout
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = DefaultRedisReadTimeout
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = DefaultRedisWriteTimeout
	}

	// Market defaults
	if c.Market.Good == "" {
		c.Market.Good = DefaultGood
	}
	if c.Market.Topic == "" {
		c.Market.Topic = DefaultTopic
	}
	if c.Market.DefaultPrice == 0 {
		c.Market.DefaultPrice = DefaultPrice
	}
	if c.Market.ChannelSize == 0 {
		c.Market.ChannelSize = DefaultChannelSize
	}

	// Agent defaults
	if c.Agent.Mode == "" {
		c.Agent.Mode = DefaultMode
	}
	if c.Agent.LearningRate == 0 {
		c.Agent.LearningRate = DefaultLearningRate
	}
	if c.Agent.PriceFloor == 0 {
		c.Agent.PriceFloor = DefaultPriceFloor
	}
	if c.Agent.MinPause == 0 {
		c.Agent.MinPause = DefaultMinPause
	}
	if c.Agent.MaxPause == 0 {
		c.Agent.MaxPause = DefaultMaxPause
	}
	if c.Agent.MaxDrain == 0 {
		c.Agent.MaxDrain = DefaultMaxDrain
	}

	// Swarm defaults
	if c.Swarm.Agents == 0 {
		c.Swarm.Agents = DefaultSwarmAgents
	}

	// Recorder defaults
	applyDBDefaults(&c.Recorder.Database)
	if c.Recorder.Writer.BatchSize == 0 {
		c.Recorder.Writer.BatchSize = DefaultBatchSize
	}
	if c.Recorder.Writer.FlushInterval == 0 {
		c.Recorder.Writer.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.Sampler.Interval == 0 {
		c.Recorder.Sampler.Interval = DefaultSampleInterval
	}
	if c.Recorder.Sampler.Timeout == 0 {
		c.Recorder.Sampler.Timeout = DefaultSampleTimeout
	}
	if c.Recorder.HTTP.Port == 0 {
		c.Recorder.HTTP.Port = DefaultHTTPPort
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultBufferSize
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

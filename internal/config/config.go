package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Agent trading modes.
const (
	ModeRandom = "random" // pick rules or noise with equal probability at startup
	ModeRules  = "rules"  // always rules-based
	ModeNoise  = "noise"  // always random-walk
)

// Config is the root configuration shared by all widgetmarket commands.
type Config struct {
	Redis    RedisConfig    `yaml:"redis"`
	Market   MarketConfig   `yaml:"market"`
	Agent    AgentConfig    `yaml:"agent"`
	Swarm    SwarmConfig    `yaml:"swarm"`
	Recorder RecorderConfig `yaml:"recorder"`
	Log      LogConfig      `yaml:"log"`
}

// RedisConfig holds the connection to the Redis instance backing both the
// price store and the market channel.
type RedisConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// String describes the Redis target without the password.
func (r RedisConfig) String() string {
	return fmt.Sprintf("redis://%s/%d", r.Addr(), r.DB)
}

// MarketConfig describes the traded good and its topic.
type MarketConfig struct {
	Good         string  `yaml:"good"`
	Topic        string  `yaml:"topic"`
	DefaultPrice float64 `yaml:"default_price"` // price assumed when the store is empty
	ChannelSize  int     `yaml:"channel_size"`  // per-subscriber buffered messages
}

// AgentConfig holds the trading agent's tunables.
type AgentConfig struct {
	Mode            string        `yaml:"mode"`              // random, rules or noise
	LearningRate    float64       `yaml:"learning_rate"`     // step used by the trend rule
	TrendThreshold  int           `yaml:"trend_threshold"`   // hysteresis band between order and list counts
	PriceFloor      float64       `yaml:"price_floor"`       // lowest allowed expectation
	InitialNoise    float64       `yaml:"initial_noise"`     // stddev of the initial expectation offset
	RandomWalkNoise float64       `yaml:"random_walk_noise"` // stddev of each random-walk step
	MinPause        time.Duration `yaml:"min_pause"`
	MaxPause        time.Duration `yaml:"max_pause"`
	MaxDrain        int           `yaml:"max_drain"` // events consumed per cycle at most
}

// SwarmConfig holds settings for running many agents in one process.
type SwarmConfig struct {
	Agents int  `yaml:"agents"`
	Seed   bool `yaml:"seed"` // write the default price if the store is empty
}

// RecorderConfig holds the market recorder settings.
type RecorderConfig struct {
	Database   DBConfig      `yaml:"database"`
	Writer     WriterConfig  `yaml:"writer"`
	Sampler    SamplerConfig `yaml:"sampler"`
	HTTP       HTTPConfig    `yaml:"http"`
	BufferSize int           `yaml:"buffer_size"` // initial router buffer capacity
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// SamplerConfig holds price sampler settings.
type SamplerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// HTTPConfig holds the recorder's health and live feed server settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

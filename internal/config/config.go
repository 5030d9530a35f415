// Package config defines fenrir's configuration. Load reads a YAML file
// with overrides available via FENRIR_* environment variables; Default
// returns the built-in defaults without reading any file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration, mapping directly onto the YAML file.
type Config struct {
	Symbols     []string          `mapstructure:"symbols"`
	Channels    ChannelsConfig    `mapstructure:"channels"`
	MarketData  MarketDataConfig  `mapstructure:"market_data"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	API         APIConfig         `mapstructure:"api"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ChannelsConfig sizes the bounded channels described in spec §5.
type ChannelsConfig struct {
	IntakeCapacity   int `mapstructure:"intake_capacity"`
	EngineCapacity   int `mapstructure:"engine_capacity"`
	FanoutCapacity   int `mapstructure:"fanout_capacity"`
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
}

// MarketDataConfig tunes the MDP's retained state and publish cadence.
type MarketDataConfig struct {
	TapeSize         int            `mapstructure:"tape_size"`
	CandleRetention  map[string]int `mapstructure:"candle_retention"`
	DeltaThreshold   int            `mapstructure:"delta_threshold"`
	SnapshotInterval time.Duration  `mapstructure:"snapshot_interval"`
	DefaultDepth     int            `mapstructure:"default_depth"`
	StatsWindow      time.Duration  `mapstructure:"stats_window"`
}

// PersistenceConfig tunes the batching sink adapter (spec §4.6).
type PersistenceConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`
	BatchInterval  time.Duration `mapstructure:"batch_interval"`
	QueueCapacity  int           `mapstructure:"queue_capacity"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// APIConfig controls the HTTP/WS transport surface.
type APIConfig struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	Backpressuring bool   `mapstructure:"backpressuring"`
}

// LoggingConfig controls zerolog's level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads config from a YAML file with FENRIR_* env var overrides applied
// on top (e.g. FENRIR_API_LISTEN_ADDR overrides api.listen_addr).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("FENRIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}

// Default returns a Config populated with the package defaults, bypassing
// file/env loading entirely. Used by tests and by main when no config file
// is supplied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("symbols", []string{"AAPL", "MSFT", "GOOG"})
	v.SetDefault("channels.intake_capacity", 1024)
	v.SetDefault("channels.engine_capacity", 1024)
	v.SetDefault("channels.fanout_capacity", 1024)
	v.SetDefault("channels.subscriber_buffer", 256)

	v.SetDefault("market_data.tape_size", 1000)
	v.SetDefault("market_data.candle_retention", map[string]int{
		"1m": 1440, "5m": 1440, "15m": 960, "30m": 960, "1h": 720, "4h": 720, "1d": 365,
	})
	v.SetDefault("market_data.delta_threshold", 1)
	v.SetDefault("market_data.snapshot_interval", 5*time.Second)
	v.SetDefault("market_data.default_depth", 20)
	v.SetDefault("market_data.stats_window", 24*time.Hour)

	v.SetDefault("persistence.batch_size", 200)
	v.SetDefault("persistence.batch_interval", 500*time.Millisecond)
	v.SetDefault("persistence.queue_capacity", 10000)
	v.SetDefault("persistence.retry_base_delay", time.Second)
	v.SetDefault("persistence.retry_max_delay", 30*time.Second)
	v.SetDefault("persistence.max_retries", 5)

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.backpressuring", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: symbols must not be empty")
	}
	if c.Channels.IntakeCapacity <= 0 || c.Channels.EngineCapacity <= 0 {
		return fmt.Errorf("config: channel capacities must be > 0")
	}
	if c.MarketData.TapeSize <= 0 {
		return fmt.Errorf("config: market_data.tape_size must be > 0")
	}
	if c.Persistence.BatchSize <= 0 {
		return fmt.Errorf("config: persistence.batch_size must be > 0")
	}
	if c.Persistence.MaxRetries < 0 {
		return fmt.Errorf("config: persistence.max_retries must be >= 0")
	}
	return nil
}

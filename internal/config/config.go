package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nexus-trading/scout/internal/moonshot"
	"github.com/nexus-trading/scout/internal/risk"
)

// Config is the root configuration structure for scout.
type Config struct {
	General   GeneralConfig   `yaml:"general"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Scan      ScanConfig      `yaml:"scan"`
	Risk      risk.Config     `yaml:"risk"`
	Moonshot  moonshot.Config `yaml:"moonshot"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	WalletAge WalletAgeConfig `yaml:"wallet_age"`
	API       APIConfig       `yaml:"api"`
	Feed      FeedConfig      `yaml:"feed"`
	Bus       BusConfig       `yaml:"bus"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Audit     AuditConfig     `yaml:"audit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type GeneralConfig struct {
	InstanceID  string `yaml:"instance_id"`
	Environment string `yaml:"environment"` // production|staging|development
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json|text
}

type ScoringConfig struct {
	ModelsFile     string `yaml:"models_file"`
	DefaultModelID string `yaml:"default_model_id"`
}

type ScanConfig struct {
	Workers       int `yaml:"workers"`
	AlertMinScore  int `yaml:"alert_min_score"` // minimum model score for an alert
	DedupeCapacity int `yaml:"dedupe_capacity"` // alerted pairs remembered by watch
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // memory|postgres
	DSN    string `yaml:"dsn"`
}

type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory|redis
	RedisAddr  string        `yaml:"redis_addr"`
	RedisDB    int           `yaml:"redis_db"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

type WalletAgeConfig struct {
	Enabled         bool          `yaml:"enabled"`
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	Burst           int           `yaml:"burst"`
	Timeout         time.Duration `yaml:"timeout"`
	Retries         int           `yaml:"retries"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

type APIConfig struct {
	Addr         string        `yaml:"addr"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type FeedConfig struct {
	Source       string        `yaml:"source"` // websocket|kafka
	URL          string        `yaml:"url"`
	ReconnectMin time.Duration `yaml:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
	PingInterval time.Duration `yaml:"ping_interval"`
	LagThreshold time.Duration `yaml:"lag_threshold"` // observed_at to arrival
	StaleTimeout time.Duration `yaml:"stale_timeout"`
}

// BusConfig configures Kafka/RedPanda. Empty brokers disables it.
type BusConfig struct {
	Brokers       []string `yaml:"brokers"`
	GroupID       string   `yaml:"group_id"`
	SnapshotTopic string   `yaml:"snapshot_topic"`
	AlertTopic    string   `yaml:"alert_topic"`
}

// AnalyticsConfig configures the ClickHouse verdict writer. Empty DSN disables it.
type AnalyticsConfig struct {
	ClickHouseDSN string        `yaml:"clickhouse_dsn"`
	Database      string        `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type AuditConfig struct {
	Buffer int `yaml:"buffer"` // recent alerts kept in memory
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse expands environment variables in data, decodes it and applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "scout-1"
	}
	if cfg.General.Environment == "" {
		cfg.General.Environment = "development"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
	}
	if cfg.Scan.Workers == 0 {
		cfg.Scan.Workers = 4
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "memory"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 10_000
	}
	if cfg.Cache.RedisAddr == "" {
		cfg.Cache.RedisAddr = "localhost:6379"
	}
	if cfg.WalletAge.RateLimitRPS == 0 {
		cfg.WalletAge.RateLimitRPS = 5
	}
	if cfg.WalletAge.Burst == 0 {
		cfg.WalletAge.Burst = 1
	}
	if cfg.WalletAge.Timeout == 0 {
		cfg.WalletAge.Timeout = 10 * time.Second
	}
	if cfg.WalletAge.Retries == 0 {
		cfg.WalletAge.Retries = 3
	}
	if cfg.WalletAge.BreakerFailures == 0 {
		cfg.WalletAge.BreakerFailures = 5
	}
	if cfg.WalletAge.BreakerTimeout == 0 {
		cfg.WalletAge.BreakerTimeout = 30 * time.Second
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}
	if cfg.API.ReadTimeout == 0 {
		cfg.API.ReadTimeout = 10 * time.Second
	}
	if cfg.API.WriteTimeout == 0 {
		cfg.API.WriteTimeout = 15 * time.Second
	}
	if cfg.Feed.Source == "" {
		cfg.Feed.Source = "websocket"
	}
	if cfg.Feed.ReconnectMin == 0 {
		cfg.Feed.ReconnectMin = time.Second
	}
	if cfg.Feed.ReconnectMax == 0 {
		cfg.Feed.ReconnectMax = 30 * time.Second
	}
	if cfg.Feed.PingInterval == 0 {
		cfg.Feed.PingInterval = 20 * time.Second
	}
	if cfg.Feed.LagThreshold == 0 {
		cfg.Feed.LagThreshold = 30 * time.Second
	}
	if cfg.Feed.StaleTimeout == 0 {
		cfg.Feed.StaleTimeout = 2 * time.Minute
	}
	if cfg.Bus.GroupID == "" {
		cfg.Bus.GroupID = "scout"
	}
	if cfg.Bus.SnapshotTopic == "" {
		cfg.Bus.SnapshotTopic = "scout.snapshots"
	}
	if cfg.Bus.AlertTopic == "" {
		cfg.Bus.AlertTopic = "scout.alerts"
	}
	if cfg.Analytics.BatchSize == 0 {
		cfg.Analytics.BatchSize = 1000
	}
	if cfg.Analytics.FlushInterval == 0 {
		cfg.Analytics.FlushInterval = 5 * time.Second
	}
	if cfg.Audit.Buffer == 0 {
		cfg.Audit.Buffer = 500
	}
	if cfg.Scan.DedupeCapacity == 0 {
		cfg.Scan.DedupeCapacity = 10_000
	}
	applyEngineDefaults(cfg)
}

// applyEngineDefaults fills unset scoring engine constants field by field.
func applyEngineDefaults(cfg *Config) {
	rd := risk.DefaultConfig()
	if cfg.Risk.BaseScore == 0 {
		cfg.Risk.BaseScore = rd.BaseScore
	}
	if cfg.Risk.MediumFrom == 0 {
		cfg.Risk.MediumFrom = rd.MediumFrom
	}
	if cfg.Risk.HighFrom == 0 {
		cfg.Risk.HighFrom = rd.HighFrom
	}
	if cfg.Risk.FundingGraph.DustThreshold == 0 {
		cfg.Risk.FundingGraph.DustThreshold = rd.FundingGraph.DustThreshold
	}
	if cfg.Risk.FundingGraph.MaxDepth == 0 {
		cfg.Risk.FundingGraph.MaxDepth = rd.FundingGraph.MaxDepth
	}

	md := moonshot.DefaultConfig()
	if cfg.Moonshot.BaseScore == 0 {
		cfg.Moonshot.BaseScore = md.BaseScore
	}
	if len(cfg.Moonshot.Narratives) == 0 {
		cfg.Moonshot.Narratives = md.Narratives
	}
	if len(cfg.Moonshot.Exits.Tiers) == 0 {
		cfg.Moonshot.Exits.Tiers = md.Exits.Tiers
	}
	if len(cfg.Moonshot.Exits.TPLevels) == 0 {
		cfg.Moonshot.Exits.TPLevels = md.Exits.TPLevels
	}
	if cfg.Moonshot.Exits.StopLossPct == 0 {
		cfg.Moonshot.Exits.StopLossPct = md.Exits.StopLossPct
	}
	if cfg.Moonshot.Exits.TimeStopMinutes == 0 {
		cfg.Moonshot.Exits.TimeStopMinutes = md.Exits.TimeStopMinutes
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be memory or postgres", c.Store.Driver))
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.driver %q must be memory or redis", c.Cache.Driver))
	}
	if c.Scan.Workers < 0 {
		errs = append(errs, fmt.Errorf("scan.workers must be positive, got %d", c.Scan.Workers))
	}
	if c.WalletAge.Enabled && c.WalletAge.BaseURL == "" {
		errs = append(errs, errors.New("wallet_age.base_url is required when wallet_age is enabled"))
	}
	if c.Feed.ReconnectMax < c.Feed.ReconnectMin {
		errs = append(errs, errors.New("feed.reconnect_max must not be below feed.reconnect_min"))
	}
	switch c.Feed.Source {
	case "websocket":
	case "kafka":
		if len(c.Bus.Brokers) == 0 {
			errs = append(errs, errors.New("bus.brokers is required when feed.source is kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("feed.source %q must be websocket or kafka", c.Feed.Source))
	}
	if c.Risk.MediumFrom > c.Risk.HighFrom {
		errs = append(errs, fmt.Errorf("risk.medium_from %d must not exceed risk.high_from %d", c.Risk.MediumFrom, c.Risk.HighFrom))
	}
	if c.Risk.FundingGraph.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("risk.funding_graph.max_depth must be at least 1, got %d", c.Risk.FundingGraph.MaxDepth))
	}
	if sl := c.Moonshot.Exits.StopLossPct; sl <= 0 || sl >= 100 {
		errs = append(errs, fmt.Errorf("moonshot.exits.stop_loss_pct must be in (0, 100), got %g", sl))
	}
	if rp := c.Moonshot.Exits.RiskPct; rp < 0 || rp >= 100 {
		errs = append(errs, fmt.Errorf("moonshot.exits.risk_pct must be in [0, 100), got %g", rp))
	}
	for i, tier := range c.Moonshot.Exits.Tiers {
		if tier.MaxMultiple <= 1 {
			errs = append(errs, fmt.Errorf("moonshot.exits.tiers[%d].max_multiple must be above 1, got %g", i, tier.MaxMultiple))
		}
	}
	if c.Audit.Buffer < 0 {
		errs = append(errs, fmt.Errorf("audit.buffer must not be negative, got %d", c.Audit.Buffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

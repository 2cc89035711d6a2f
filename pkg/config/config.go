package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "GOLOS"

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	Node      NodeConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Server    ServerConfig
	Indexer   IndexerConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// DatabaseConfig holds the postgres mirror of governance and sync state.
// An empty URL runs without persistence.
type DatabaseConfig struct {
	URL string
}

// NodeConfig holds the upstream golosd connection
type NodeConfig struct {
	URL     string
	Timeout time.Duration
	Retries int
}

type RedisConfig struct {
	URL     string
	Enabled bool
}

// CacheConfig sizes the response cache
type CacheConfig struct {
	TTL         time.Duration
	LocalExpiry time.Duration
}

type ServerConfig struct {
	Port        int
	Host        string
	Websocket   bool
	CORSOrigins []string
	// Standalone runs without an upstream node. network_broadcast_api then
	// applies comment and governance operations to the local store.
	Standalone bool
}

type IndexerConfig struct {
	StartBlock   int
	TrailBlocks  int
	MaxBatch     int
	PollInterval time.Duration
}

type LoggingConfig struct {
	Level        string
	Format       string // "json" or "text"
	ScalyrFormat bool
}

type TelemetryConfig struct {
	Enabled           bool
	JaegerURL         string
	PrometheusEnabled bool
	PrometheusPort    int
	ServiceName       string
}

// Load reads configuration from the config file, GOLOS_* environment
// variables and any flags bound into viper.
func Load() (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.golosmind")
	viper.AddConfigPath("/etc/golosmind")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	redisURL := getString("redis_url", "")
	cfg := &Config{
		Database: DatabaseConfig{
			URL: getString("database_url", ""),
		},
		Node: NodeConfig{
			URL:     getString("golosd_url", "https://api.golos.id"),
			Timeout: GetDuration("golosd_timeout", 10*time.Second),
			Retries: getInt("golosd_retries", 3),
		},
		Redis: RedisConfig{
			URL:     redisURL,
			Enabled: redisURL != "",
		},
		Cache: CacheConfig{
			TTL:         GetDuration("cache_ttl", 3*time.Second),
			LocalExpiry: GetDuration("cache_local_expiry", time.Second),
		},
		Server: ServerConfig{
			Port:        getInt("http_server_port", 8090),
			Host:        getString("http_server_host", "0.0.0.0"),
			Websocket:   getBool("websocket_enabled", true),
			CORSOrigins: getList("cors_origins", []string{"*"}),
			Standalone:  getBool("standalone", false),
		},
		Indexer: IndexerConfig{
			StartBlock:   getInt("start_block", 1),
			TrailBlocks:  getInt("trail_blocks", 2),
			MaxBatch:     getInt("max_batch", 50),
			PollInterval: GetDuration("poll_interval", 3*time.Second),
		},
		Logging: LoggingConfig{
			Level:        getString("log_level", "INFO"),
			Format:       getString("log_format", "json"),
			ScalyrFormat: getBool("log_scalyr_format", true),
		},
		Telemetry: TelemetryConfig{
			Enabled:           getBool("telemetry_enabled", true),
			JaegerURL:         getString("jaeger_url", "http://localhost:14268/api/traces"),
			PrometheusEnabled: getBool("prometheus_enabled", true),
			PrometheusPort:    getInt("prometheus_port", 9090),
			ServiceName:       getString("service_name", "golosmind"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("golosd_url", "https://api.golos.id")
	viper.SetDefault("http_server_port", 8090)
	viper.SetDefault("http_server_host", "0.0.0.0")
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("log_scalyr_format", true)
	viper.SetDefault("trail_blocks", 2)
	viper.SetDefault("max_batch", 50)
	viper.SetDefault("telemetry_enabled", true)
	viper.SetDefault("prometheus_enabled", true)
	viper.SetDefault("prometheus_port", 9090)
	viper.SetDefault("service_name", "golosmind")
}

func envValue(key string) string {
	return os.Getenv(envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
}

func getString(key, defaultValue string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	if val := envValue(key); val != "" {
		return val
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	if val := envValue(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	if val := envValue(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

// getList accepts a yaml list or a comma separated string.
func getList(key string, defaultValue []string) []string {
	var raw []string
	switch {
	case viper.IsSet(key):
		if s, ok := viper.Get(key).(string); ok {
			raw = strings.Split(s, ",")
		} else {
			raw = viper.GetStringSlice(key)
		}
	case envValue(key) != "":
		raw = strings.Split(envValue(key), ",")
	default:
		return defaultValue
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Node.URL == "" {
		return fmt.Errorf("golosd_url is required")
	}
	if c.Node.Retries < 0 || c.Node.Retries > 10 {
		return fmt.Errorf("golosd_retries must be between 0 and 10")
	}
	if c.Indexer.MaxBatch <= 0 || c.Indexer.MaxBatch > 1000 {
		return fmt.Errorf("max_batch must be between 1 and 1000")
	}
	if c.Indexer.TrailBlocks < 0 || c.Indexer.TrailBlocks > 100 {
		return fmt.Errorf("trail_blocks must be between 0 and 100")
	}
	if c.Indexer.StartBlock < 1 {
		return fmt.Errorf("start_block must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("http_server_port must be a valid port")
	}
	return nil
}

// GetDuration returns a duration from config key, with default
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	if val := envValue(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}

// Package config loads harvester settings from the environment, an optional .env file and
// an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "HARVESTER"

// Supported store drivers.
const (
	StoreDriverBolt     = "bolt"
	StoreDriverPostgres = "postgres"
)

// Config holds every tunable of the harvester.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	FeedMinBytes  int           `mapstructure:"feed_min_bytes"`
	MaxHTMLBytes  int           `mapstructure:"max_html_bytes"`
	ImageDelay    time.Duration `mapstructure:"image_delay"`
	ImageWorkers  int           `mapstructure:"image_workers"`
	SourceWorkers int           `mapstructure:"source_workers"`
	ListingLimit  int           `mapstructure:"listing_limit"`

	SourcesFile    string `mapstructure:"sources_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	StoreDriver   string        `mapstructure:"store_driver"`
	BoltPath      string        `mapstructure:"bolt_path"`
	PostgresDSN   string        `mapstructure:"postgres_dsn"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	HTTPAddr      string        `mapstructure:"http_addr"`
	CronSpec      string        `mapstructure:"cron_spec"`
	CronSecret    string        `mapstructure:"cron_secret"`
	RunOnStartup  bool          `mapstructure:"run_on_startup"`
	QueryPageSize int           `mapstructure:"query_page_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("http_timeout", 10*time.Second)
	v.SetDefault("feed_min_bytes", 50)
	v.SetDefault("max_html_bytes", 1<<20)
	v.SetDefault("image_delay", 300*time.Millisecond)
	v.SetDefault("image_workers", 1)
	v.SetDefault("source_workers", 1)
	v.SetDefault("listing_limit", 10)
	v.SetDefault("sources_file", "")
	v.SetDefault("publishers_file", "")
	v.SetDefault("store_driver", StoreDriverBolt)
	v.SetDefault("bolt_path", "harvester.db")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("cron_spec", "*/30 * * * *")
	v.SetDefault("cron_secret", "")
	v.SetDefault("run_on_startup", false)
	v.SetDefault("query_page_size", 50)
}

// Load reads .env (when present), HARVESTER_* environment variables and the YAML file
// named by HARVESTER_CONFIG, in increasing order of precedence for env over file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("config")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) sanitize() {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.SourcesFile = strings.TrimSpace(c.SourcesFile)
	c.PublishersFile = strings.TrimSpace(c.PublishersFile)
	c.CronSpec = strings.TrimSpace(c.CronSpec)
	if c.ImageWorkers <= 0 {
		c.ImageWorkers = 1
	}
	if c.SourceWorkers <= 0 {
		c.SourceWorkers = 1
	}
	if c.ListingLimit <= 0 {
		c.ListingLimit = 10
	}
	if c.QueryPageSize <= 0 {
		c.QueryPageSize = 50
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.HTTPTimeout <= 0 {
		return errors.New("http_timeout must be positive")
	}
	if c.ImageDelay < 0 {
		return errors.New("image_delay must not be negative")
	}
	switch c.StoreDriver {
	case StoreDriverBolt:
		if strings.TrimSpace(c.BoltPath) == "" {
			return errors.New("bolt_path is required for the bolt store")
		}
	case StoreDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("postgres_dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("store_driver %q not supported", c.StoreDriver)
	}
	return nil
}

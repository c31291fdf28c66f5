package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FLOWSCOPE_HTTP_ADDR.
const EnvPrefix = "FLOWSCOPE"

// Config represents the application configuration
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Report    ReportConfig    `mapstructure:"report"`
	Retention RetentionConfig `mapstructure:"retention"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Seed      SeedConfig      `mapstructure:"seed"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Buffer int    `mapstructure:"buffer"`
}

type StoreConfig struct {
	Driver                string `mapstructure:"driver"`
	DSN                   string `mapstructure:"dsn"`
	MaxConns              int    `mapstructure:"max_conns"`
	EnforceUniqueUsername bool   `mapstructure:"enforce_unique_username"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
	Redis  RedisConfig   `mapstructure:"redis"`
}

type RemoteConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
	Token   string        `mapstructure:"token"`
}

type AnalysisConfig struct {
	Mode   string       `mapstructure:"mode"`
	Seed   int64        `mapstructure:"seed"`
	Remote RemoteConfig `mapstructure:"remote"`
}

type MessagesConfig struct {
	Critical   string `mapstructure:"critical"`
	Concerning string `mapstructure:"concerning"`
	Healthy    string `mapstructure:"healthy"`
	Emergency  string `mapstructure:"emergency"`
}

type ReportConfig struct {
	WindowSamples int            `mapstructure:"window_samples"`
	EmptyPolicy   string         `mapstructure:"empty_policy"`
	Messages      MessagesConfig `mapstructure:"messages"`
}

type RetentionConfig struct {
	Weeks    int           `mapstructure:"weeks"`
	Interval time.Duration `mapstructure:"interval"`
}

type NotifyConfig struct {
	Endpoints        []string      `mapstructure:"endpoints"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	BaseBackoff      time.Duration `mapstructure:"base_backoff"`
	MaxBackoff       time.Duration `mapstructure:"max_backoff"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	ProbeInterval    time.Duration `mapstructure:"probe_interval"`
	ProbePath        string        `mapstructure:"probe_path"`
}

// RateLimitConfig applies to the analyze, generate and chat endpoints.
// RPS <= 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type AssistantConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type SeedConfig struct {
	File string `mapstructure:"file"`
	Demo bool   `mapstructure:"demo"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_body_bytes", 1<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.buffer", 500)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.enforce_unique_username", false)

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("analysis.mode", "random")
	v.SetDefault("analysis.seed", 0)
	v.SetDefault("analysis.remote.url", "")
	v.SetDefault("analysis.remote.timeout", 10*time.Second)
	v.SetDefault("analysis.remote.retries", 2)
	v.SetDefault("analysis.remote.token", "")

	v.SetDefault("report.window_samples", 28)
	v.SetDefault("report.empty_policy", "report")
	v.SetDefault("report.messages.critical", "")
	v.SetDefault("report.messages.concerning", "")
	v.SetDefault("report.messages.healthy", "")
	v.SetDefault("report.messages.emergency", "")

	v.SetDefault("retention.weeks", 0)
	v.SetDefault("retention.interval", time.Hour)

	v.SetDefault("notify.endpoints", []string{})
	v.SetDefault("notify.timeout", 2*time.Second)
	v.SetDefault("notify.max_retries", 3)
	v.SetDefault("notify.base_backoff", 100*time.Millisecond)
	v.SetDefault("notify.max_backoff", 2*time.Second)
	v.SetDefault("notify.failure_threshold", 3)
	v.SetDefault("notify.success_threshold", 2)
	v.SetDefault("notify.probe_interval", 30*time.Second)
	v.SetDefault("notify.probe_path", "/healthz")

	v.SetDefault("ratelimit.rps", 5)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.model", "")
	v.SetDefault("assistant.base_url", "")

	v.SetDefault("seed.file", "")
	v.SetDefault("seed.demo", true)
}

// Load reads configPath (optional, YAML) and applies FLOWSCOPE_* overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown enum values and impossible sizes.
func (c *Config) Validate() error {
	var errs []error

	oneOf := func(key, val string, allowed ...string) {
		for _, a := range allowed {
			if val == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: %q is not one of %s", key, val, strings.Join(allowed, ", ")))
	}

	oneOf("log.level", c.Log.Level, "debug", "info", "warn", "error")
	oneOf("log.format", c.Log.Format, "json", "console")
	oneOf("store.driver", c.Store.Driver, "memory", "postgres")
	oneOf("cache.driver", c.Cache.Driver, "memory", "redis", "none")
	oneOf("analysis.mode", c.Analysis.Mode, "random", "rules", "remote")
	oneOf("report.empty_policy", c.Report.EmptyPolicy, "report", "error")

	if c.Report.WindowSamples <= 0 {
		errs = append(errs, fmt.Errorf("report.window_samples must be positive, got %d", c.Report.WindowSamples))
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required for the postgres driver"))
	}
	if c.Analysis.Mode == "remote" && c.Analysis.Remote.URL == "" {
		errs = append(errs, errors.New("analysis.remote.url is required for remote mode"))
	}
	if c.Retention.Weeks < 0 {
		errs = append(errs, fmt.Errorf("retention.weeks must not be negative, got %d", c.Retention.Weeks))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("http.max_body_bytes must be positive, got %d", c.HTTP.MaxBodyBytes))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	OpenAI OpenAIConfig `yaml:"openai" mapstructure:"openai"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Quota  QuotaConfig  `yaml:"quota" mapstructure:"quota"`
	Scrape ScrapeConfig `yaml:"scrape" mapstructure:"scrape"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
	IdleTimeoutSecs  int      `yaml:"idle_timeout_secs" mapstructure:"idle_timeout_secs"`
	Debug            bool     `yaml:"debug" mapstructure:"debug"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitRPS     float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst   int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	AdminKey         string   `yaml:"admin_key" mapstructure:"admin_key"`

	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" mapstructure:"trust_proxy_headers"`
}

// OpenAIConfig configures the completion API.
type OpenAIConfig struct {
	APIKey        string  `yaml:"api_key" mapstructure:"api_key"`
	Model         string  `yaml:"model" mapstructure:"model"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Temperature   float32 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens     int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryAttempts int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// StoreConfig selects the quota database. DSN wins over Database when set.
type StoreConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	DSN      string         `yaml:"dsn" mapstructure:"dsn"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Name     string `yaml:"name" mapstructure:"name"`
}

type QuotaConfig struct {
	DailyFreeLimit    int      `yaml:"daily_free_limit" mapstructure:"daily_free_limit"`
	DisableLimits     bool     `yaml:"disable_limits" mapstructure:"disable_limits"`
	UnlimitedPrefixes []string `yaml:"unlimited_prefixes" mapstructure:"unlimited_prefixes"`
	Timezone          string   `yaml:"timezone" mapstructure:"timezone"`
}

type ScrapeConfig struct {
	TimeoutSecs        int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent          string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes       int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxRelatedPages    int    `yaml:"max_related_pages" mapstructure:"max_related_pages"`
	MinContentChars    int    `yaml:"min_content_chars" mapstructure:"min_content_chars"`
	MaxContentChars    int    `yaml:"max_content_chars" mapstructure:"max_content_chars"`
	EnableDynamic      bool   `yaml:"enable_dynamic" mapstructure:"enable_dynamic"`
	DynamicTimeoutSecs int    `yaml:"dynamic_timeout_secs" mapstructure:"dynamic_timeout_secs"`
	BrowserURL         string `yaml:"browser_url" mapstructure:"browser_url"`

	// AllowPrivateNetworks lets the fetcher reach loopback and private addresses.
	AllowPrivateNetworks bool `yaml:"allow_private_networks" mapstructure:"allow_private_networks"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from path (optional, YAML) and FINEPRINT_* env vars.
// An empty path looks for ./config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FINEPRINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("openai.api_key", "FINEPRINT_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	v.SetDefault("server.port", 8001)
	v.SetDefault("server.read_timeout_secs", 15)
	v.SetDefault("server.write_timeout_secs", 240)
	v.SetDefault("server.idle_timeout_secs", 60)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.cors_origins", []string{"http://localhost:*", "http://127.0.0.1:*"})
	v.SetDefault("server.rate_limit_rps", 1.0)
	v.SetDefault("server.rate_limit_burst", 5)
	v.SetDefault("server.admin_key", "")
	v.SetDefault("server.trust_proxy_headers", false)
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.temperature", 0.3)
	v.SetDefault("openai.max_tokens", 2048)
	v.SetDefault("openai.timeout_secs", 60)
	v.SetDefault("openai.retry_attempts", 1)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "")
	v.SetDefault("quota.daily_free_limit", 1)
	v.SetDefault("quota.disable_limits", false)
	v.SetDefault("quota.unlimited_prefixes", []string{"admin_", "dev_"})
	v.SetDefault("quota.timezone", "UTC")
	v.SetDefault("scrape.timeout_secs", 20)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scrape.max_body_bytes", 4<<20)
	v.SetDefault("scrape.max_related_pages", 3)
	v.SetDefault("scrape.min_content_chars", 200)
	v.SetDefault("scrape.max_content_chars", 15000)
	v.SetDefault("scrape.enable_dynamic", false)
	v.SetDefault("scrape.dynamic_timeout_secs", 10)
	v.SetDefault("scrape.allow_private_networks", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := v.ReadInConfig(); err != nil {
				return nil, eris.Wrapf(err, "config: read %s", path)
			}
		} else if !os.IsNotExist(err) {
			return nil, eris.Wrapf(err, "config: stat %s", path)
		}
	} else if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no sensible fallback. A missing model key
// is not checked here; see RequireModelCredentials.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	switch c.Store.Driver {
	case "sqlite", "mysql", "postgres", "memory":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Quota.DailyFreeLimit < 0 {
		return eris.Errorf("config: quota.daily_free_limit must be >= 0, got %d", c.Quota.DailyFreeLimit)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return eris.Errorf("config: openai.temperature must be within [0,2], got %v", c.OpenAI.Temperature)
	}
	return nil
}

// RequireModelCredentials fails when no model API key is configured.
func (c *Config) RequireModelCredentials() error {
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return eris.New("config: openai.api_key is required (set OPENAI_API_KEY or FINEPRINT_OPENAI_API_KEY)")
	}
	return nil
}

// Location is the time zone that defines a quota "day".
func (c *Config) Location() (*time.Location, error) {
	tz := c.Quota.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, eris.Wrapf(err, "config: quota.timezone %q", tz)
	}
	return loc, nil
}

// DefaultSQLitePath is the sqlite database used when store.dsn is empty.
const DefaultSQLitePath = "fineprint.db"

// StoreDSN returns Store.DSN, or builds one from Store.Database for the
// relational drivers.
func (c *Config) StoreDSN() string {
	if c.Store.DSN != "" {
		return c.Store.DSN
	}
	d := c.Store.Database
	switch c.Store.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.Name)
	case "postgres":
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			d.User, d.Password, d.Host, d.Port, d.Name)
	case "sqlite":
		return DefaultSQLitePath
	}
	return ""
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

func (s ServerConfig) ReadTimeout() time.Duration { return secs(s.ReadTimeoutSecs) }

func (s ServerConfig) WriteTimeout() time.Duration { return secs(s.WriteTimeoutSecs) }

func (s ServerConfig) IdleTimeout() time.Duration { return secs(s.IdleTimeoutSecs) }

func (o OpenAIConfig) Timeout() time.Duration { return secs(o.TimeoutSecs) }

func (s ScrapeConfig) Timeout() time.Duration { return secs(s.TimeoutSecs) }

func (s ScrapeConfig) DynamicTimeout() time.Duration { return secs(s.DynamicTimeoutSecs) }

// PipelineBudget is the worst-case duration of one analysis with every fetch
// and model attempt running to its timeout. A render re-reads the related
// pages.
func (c *Config) PipelineBudget(retryBackoff time.Duration) time.Duration {
	d := c.Scrape.Timeout() * time.Duration(1+c.Scrape.MaxRelatedPages)
	if c.Scrape.EnableDynamic {
		d += c.Scrape.DynamicTimeout() + c.Scrape.Timeout()*time.Duration(c.Scrape.MaxRelatedPages)
	}
	attempts := max(c.OpenAI.RetryAttempts, 1)
	d += c.OpenAI.Timeout()*time.Duration(attempts) + retryBackoff*time.Duration(attempts-1)
	return d
}

const redacted = "********"

// Redacted renders the configuration as YAML with secrets masked.
func (c *Config) Redacted() (string, error) {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redacted
	}
	cp := *c
	cp.OpenAI.APIKey = mask(c.OpenAI.APIKey)
	cp.Server.AdminKey = mask(c.Server.AdminKey)
	cp.Store.Database.Password = mask(c.Store.Database.Password)
	if c.Store.Driver == "mysql" || c.Store.Driver == "postgres" {
		cp.Store.DSN = mask(c.Store.DSN)
	}

	out, err := yaml.Marshal(cp)
	if err != nil {
		return "", eris.Wrap(err, "config: marshal")
	}
	return string(out), nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

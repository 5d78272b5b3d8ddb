package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Mode     string  `yaml:"mode"` // polling | noop
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers"` // polling workers
	AdminIDs []int64 `yaml:"admin_ids"`
	Language string  `yaml:"language"` // reply locale, default en
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type AdminConfig struct {
	APIKey       string        `yaml:"api_key"`
	JWTSecret    string        `yaml:"jwt_secret"`
	CookieDomain string        `yaml:"cookie_domain"`
	SecureCookie bool          `yaml:"secure_cookie"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// DirectoryConfig selects where chat addresses are kept.
type DirectoryConfig struct {
	Backend string `yaml:"backend"` // memory | redis | postgres
	Cache   bool   `yaml:"cache"`   // redis read-through cache in front of postgres
}

type ServicesConfig struct {
	BookURL         string        `yaml:"book_url"`
	RateLimit       int           `yaml:"rate_limit"` // service requests per user per window
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
	SkipInitData    bool          `yaml:"skip_init_data"`    // accept requests without signed WebApp initData
	InitDataMaxAge  time.Duration `yaml:"init_data_max_age"` // oldest accepted auth_date
}

type NotifyConfig struct {
	Workers         int `yaml:"workers"`           // broadcast worker pool size
	BroadcastPerSec int `yaml:"broadcast_per_sec"` // Telegram allows ~30 msg/s
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Directory DirectoryConfig `yaml:"directory"`
	Services  ServicesConfig  `yaml:"services"`
	Notify    NotifyConfig    `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// LoadConfig reads the YAML file at path, fills defaults and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	cfg.Bot.Mode = strings.ToLower(cfg.Bot.Mode)
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "en"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Directory.Backend == "" {
		if cfg.Runtime.Dev {
			cfg.Directory.Backend = BackendMemory
		} else {
			cfg.Directory.Backend = BackendRedis
		}
	}
	cfg.Directory.Backend = strings.ToLower(cfg.Directory.Backend)
	if cfg.Services.RateLimit <= 0 {
		cfg.Services.RateLimit = 10
	}
	if cfg.Services.RateLimitWindow <= 0 {
		cfg.Services.RateLimitWindow = time.Minute
	}
	if cfg.Services.InitDataMaxAge <= 0 {
		cfg.Services.InitDataMaxAge = 24 * time.Hour
	}
	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 4
	}
	if cfg.Notify.BroadcastPerSec <= 0 {
		cfg.Notify.BroadcastPerSec = 25
	}
}

// Minimal validation
func (cfg *Config) validate() error {
	if cfg.Bot.Token == "" && !cfg.Runtime.Dev && cfg.Bot.Mode != "noop" {
		return errors.New("bot.token is required")
	}
	switch cfg.Directory.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("directory.backend %q is not one of memory|redis|postgres", cfg.Directory.Backend)
	}
	if cfg.Directory.Backend == BackendPostgres && cfg.Database.URL == "" {
		return errors.New("database.url is required for the postgres directory")
	}
	if cfg.NeedsRedis() && cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.Directory.Cache && cfg.Directory.Backend != BackendPostgres {
		return errors.New("directory.cache only applies to the postgres backend")
	}
	return nil
}

// NeedsRedis reports whether any configured component talks to Redis.
func (cfg *Config) NeedsRedis() bool {
	return cfg.Directory.Backend == BackendRedis || cfg.Directory.Cache
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

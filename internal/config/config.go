// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers"` // polling update workers
	AdminIDs []int64 `yaml:"admin_ids"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"` // bearer key for the status query API
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ProviderConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	CallbackURL string `yaml:"callback_url"` // advertised to the provider for out-of-band delivery
	Model       string `yaml:"model"`
}

type ProvidersConfig struct {
	Kling           ProviderConfig `yaml:"kling"`
	Veo             ProviderConfig `yaml:"veo"`
	DefaultProvider string         `yaml:"default"`
	DefaultCost     int64          `yaml:"default_cost"` // spend units reserved per request
}

type EnhancerConfig struct {
	OpenAIKey       string `yaml:"openai_key"`
	Model           string `yaml:"model"`
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`
}

type WorkerConfig struct {
	Interval           time.Duration `yaml:"interval"`
	PendingBatch       int           `yaml:"pending_batch"`
	PendingConcurrency int           `yaml:"pending_concurrency"`
	RetryBatch         int           `yaml:"retry_batch"`
	RetryConcurrency   int           `yaml:"retry_concurrency"`
	RetryEvery         int           `yaml:"retry_every"`  // run the retry sweep every Nth cycle
	ExpiryEvery        int           `yaml:"expiry_every"` // run the expiration sweep every Nth cycle
	MaxAttempts        int           `yaml:"max_attempts"`
	GenerationTimeout  time.Duration `yaml:"generation_timeout"` // per-attempt wall-clock budget
	JobTTL             time.Duration `yaml:"job_ttl"`            // absolute expiration offset from creation
	RetentionAge       time.Duration `yaml:"retention_age"`      // terminal jobs older than this get purged
	RetentionInterval  time.Duration `yaml:"retention_interval"`
	ToggleKey          string        `yaml:"toggle_key"`
}

type StorageConfig struct {
	Dir string `yaml:"dir"` // artifacts directory; empty = keep remote URLs
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Providers ProvidersConfig `yaml:"providers"`
	Enhancer  EnhancerConfig  `yaml:"enhancer"`
	Worker    WorkerConfig    `yaml:"worker"`
	Storage   StorageConfig   `yaml:"storage"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()

	// Minimal validation
	if cfg.Bot.Token == "" && !dev {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// ApplyDefaults fills every zero-valued knob with its documented default.
func (c *Config) ApplyDefaults() {
	if c.Bot.Workers <= 0 {
		c.Bot.Workers = 8
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Providers.DefaultProvider == "" {
		c.Providers.DefaultProvider = "kling"
	}
	if c.Providers.DefaultCost <= 0 {
		c.Providers.DefaultCost = 1000
	}
	if c.Enhancer.Model == "" {
		c.Enhancer.Model = "gpt-4o-mini"
	}
	if c.Enhancer.MaxPromptTokens <= 0 {
		c.Enhancer.MaxPromptTokens = 400
	}

	w := &c.Worker
	if w.Interval <= 0 {
		w.Interval = 30 * time.Second
	}
	if w.PendingBatch <= 0 {
		w.PendingBatch = 10
	}
	if w.PendingConcurrency <= 0 {
		w.PendingConcurrency = 5
	}
	if w.RetryBatch <= 0 {
		w.RetryBatch = 10
	}
	if w.RetryConcurrency <= 0 {
		w.RetryConcurrency = 3
	}
	if w.RetryEvery <= 0 {
		w.RetryEvery = 3
	}
	if w.ExpiryEvery <= 0 {
		w.ExpiryEvery = 10
	}
	if w.MaxAttempts <= 0 {
		w.MaxAttempts = 3
	}
	if w.GenerationTimeout <= 0 {
		w.GenerationTimeout = 600 * time.Second
	}
	if w.JobTTL <= 0 {
		w.JobTTL = 24 * time.Hour
	}
	if w.RetentionAge <= 0 {
		w.RetentionAge = 7 * 24 * time.Hour
	}
	if w.RetentionInterval <= 0 {
		w.RetentionInterval = time.Hour
	}
	if w.ToggleKey == "" {
		w.ToggleKey = "video_worker_enabled"
	}
}

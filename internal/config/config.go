package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	AMQP        AMQPConfig        `yaml:"amqp"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Quota       QuotaConfig       `yaml:"quota"`
	LLM         LLMConfig         `yaml:"llm"`
	ESP         ESPConfig         `yaml:"esp"`
	Unsubscribe UnsubscribeConfig `yaml:"unsubscribe"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	DefaultOrgID   string   `yaml:"default_org_id"`
	DevMode        bool     `yaml:"dev_mode"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// ConnLifetime returns the pool connection lifetime.
func (c DatabaseConfig) ConnLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

// RedisConfig holds the optional Redis connection used for locks and rate limits
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AMQPConfig holds the optional broker used for campaign lifecycle notifications
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// PipelineConfig controls batch sizes, pacing and the worker pool
type PipelineConfig struct {
	GenerateBatchSize   int `yaml:"generate_batch_size"`
	SendBatchSize       int `yaml:"send_batch_size"`
	SendDelayMillis     int `yaml:"send_delay_ms"`
	Workers             int `yaml:"workers"`
	PollIntervalMillis  int `yaml:"poll_interval_ms"`
	MaxAttempts         int `yaml:"max_attempts"`
	StaleAfterSeconds   int `yaml:"stale_after_seconds"`
	RecoveryIntervalSec int `yaml:"recovery_interval_seconds"`
	LockTTLSeconds      int `yaml:"lock_ttl_seconds"`
}

// SendDelay returns the pause inserted between consecutive send batches.
func (c PipelineConfig) SendDelay() time.Duration {
	return time.Duration(c.SendDelayMillis) * time.Millisecond
}

// PollInterval returns how long an idle worker waits before polling again.
func (c PipelineConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

// StaleAfter returns how long a job may run before recovery requeues it.
func (c PipelineConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterSeconds) * time.Second
}

// RecoveryInterval returns how often the recovery worker scans.
func (c PipelineConfig) RecoveryInterval() time.Duration {
	return time.Duration(c.RecoveryIntervalSec) * time.Second
}

// LockTTL returns the lifetime of a per-campaign lock.
func (c PipelineConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// QuotaConfig holds the monthly send budget defaults
type QuotaConfig struct {
	DefaultMonthly   int     `yaml:"default_monthly"`
	WarningThreshold float64 `yaml:"warning_threshold"`
	ResetSchedule    string  `yaml:"reset_schedule"`
	ReportSchedule   string  `yaml:"report_schedule"`
}

// LLMConfig selects and configures the text-generation model
type LLMConfig struct {
	Provider       string  `yaml:"provider"` // "bedrock" or "openai"
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Region         string  `yaml:"region"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	Attempts       int     `yaml:"attempts"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Timeout returns the per-call model timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ESPConfig selects and configures the delivery provider
type ESPConfig struct {
	Provider         string `yaml:"provider"` // "ses" or "resend"
	DefaultFromName  string `yaml:"default_from_name"`
	DefaultFromEmail string `yaml:"default_from_email"`
	RatePerSecond    int    `yaml:"rate_per_second"`
	RatePerMinute    int    `yaml:"rate_per_minute"`
	DailyLimit       int    `yaml:"daily_limit"`
	SESRegion        string `yaml:"ses_region"`
	SESAccessKey     string `yaml:"ses_access_key"`
	SESSecretKey     string `yaml:"ses_secret_key"`
	ResendAPIKey     string `yaml:"resend_api_key"`
	WebhookSecret    string `yaml:"webhook_secret"` // "whsec_..." signing secret; empty skips verification
}

// UnsubscribeConfig holds the signing key and link settings
type UnsubscribeConfig struct {
	BaseURL  string `yaml:"base_url"`
	Secret   string `yaml:"secret"`
	TTLHours int    `yaml:"ttl_hours"`
}

// TokenTTL returns how long unsubscribe links stay valid.
func (c UnsubscribeConfig) TokenTTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// LogConfig holds logger settings
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact returns whether PII redaction is on (default true).
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.AMQP.Exchange == "" {
		cfg.AMQP.Exchange = "campaign.events"
	}

	if cfg.Pipeline.GenerateBatchSize == 0 {
		cfg.Pipeline.GenerateBatchSize = 20
	}
	if cfg.Pipeline.SendBatchSize == 0 {
		cfg.Pipeline.SendBatchSize = 10
	}
	if cfg.Pipeline.SendDelayMillis == 0 {
		cfg.Pipeline.SendDelayMillis = 1000
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 4
	}
	if cfg.Pipeline.PollIntervalMillis == 0 {
		cfg.Pipeline.PollIntervalMillis = 500
	}
	if cfg.Pipeline.MaxAttempts == 0 {
		cfg.Pipeline.MaxAttempts = 3
	}
	if cfg.Pipeline.StaleAfterSeconds == 0 {
		cfg.Pipeline.StaleAfterSeconds = 300
	}
	if cfg.Pipeline.RecoveryIntervalSec == 0 {
		cfg.Pipeline.RecoveryIntervalSec = 120
	}
	if cfg.Pipeline.LockTTLSeconds == 0 {
		cfg.Pipeline.LockTTLSeconds = 300
	}

	if cfg.Quota.DefaultMonthly == 0 {
		cfg.Quota.DefaultMonthly = 1000
	}
	if cfg.Quota.WarningThreshold == 0 {
		cfg.Quota.WarningThreshold = 0.8
	}
	if cfg.Quota.ResetSchedule == "" {
		cfg.Quota.ResetSchedule = "0 0 1 * *"
	}
	if cfg.Quota.ReportSchedule == "" {
		cfg.Quota.ReportSchedule = "0 8 * * *"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "bedrock"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.LLM.Region == "" {
		cfg.LLM.Region = "us-east-1"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2000
	}
	if cfg.LLM.Attempts == 0 {
		cfg.LLM.Attempts = 3
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}

	if cfg.ESP.Provider == "" {
		cfg.ESP.Provider = "ses"
	}
	if cfg.ESP.DefaultFromName == "" {
		cfg.ESP.DefaultFromName = "Campaign"
	}
	if cfg.ESP.RatePerSecond == 0 {
		cfg.ESP.RatePerSecond = 10
	}
	if cfg.ESP.SESRegion == "" {
		cfg.ESP.SESRegion = "us-east-1"
	}

	if cfg.Unsubscribe.BaseURL == "" {
		cfg.Unsubscribe.BaseURL = "http://localhost:3000"
	}
	if cfg.Unsubscribe.TTLHours == 0 {
		cfg.Unsubscribe.TTLHours = 24 * 365
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars in deployment. A missing config
// file is not an error; defaults are used.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQP.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DEFAULT_ORG_ID"); v != "" {
		cfg.Server.DefaultOrgID = v
	}
	if os.Getenv("DEV_MODE") == "true" {
		cfg.Server.DevMode = true
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.LLM.Region = v
	}

	if v := os.Getenv("ESP_PROVIDER"); v != "" {
		cfg.ESP.Provider = v
	}
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		cfg.ESP.ResendAPIKey = v
	}
	if v := os.Getenv("RESEND_WEBHOOK_SECRET"); v != "" {
		cfg.ESP.WebhookSecret = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.ESP.SESAccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.ESP.SESSecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.ESP.SESRegion = v
	}
	if v := os.Getenv("DEFAULT_FROM_EMAIL"); v != "" {
		cfg.ESP.DefaultFromEmail = v
	}

	if v := os.Getenv("APP_URL"); v != "" {
		cfg.Unsubscribe.BaseURL = v
	}
	if v := os.Getenv("UNSUBSCRIBE_SECRET"); v != "" {
		cfg.Unsubscribe.Secret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
	// Dev relaxes the Secure flag on the session cookie.
	Dev bool `yaml:"dev"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the Postgres event store settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the Redis connection used by the report cache and locks.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig holds dashboard login settings.
type AuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// PasswordHash is a bcrypt hash; it takes precedence over Password.
	PasswordHash        string `yaml:"password_hash"`
	Secret              string `yaml:"secret"`
	CookieName          string `yaml:"cookie_name"`
	ShortSessionSeconds int    `yaml:"short_session_seconds"`
	RememberDays        int    `yaml:"remember_days"`
	LoginRatePerMinute  int    `yaml:"login_rate_per_minute"`
	LoginBurst          int    `yaml:"login_burst"`
}

// ShortSession is the token lifetime without "remember me".
func (c AuthConfig) ShortSession() time.Duration {
	return time.Duration(c.ShortSessionSeconds) * time.Second
}

// RememberSession is the token lifetime with "remember me".
func (c AuthConfig) RememberSession() time.Duration {
	return time.Duration(c.RememberDays) * 24 * time.Hour
}

// AnalyticsConfig holds reporting settings.
type AnalyticsConfig struct {
	Timezone string `yaml:"timezone"`
}

// IngestConfig holds the webhook and S3 import settings.
type IngestConfig struct {
	WebhookPublicKey  string `yaml:"webhook_public_key"`
	WebhookMaxEvents  int    `yaml:"webhook_max_events"`
	SuppressFromHooks bool   `yaml:"suppress_from_webhooks"`

	S3Bucket          string `yaml:"s3_bucket"`
	S3Prefix          string `yaml:"s3_prefix"`
	S3ProcessedPrefix string `yaml:"s3_processed_prefix"`
	S3Region          string `yaml:"s3_region"`
	S3Endpoint        string `yaml:"s3_endpoint"`
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`
	S3ForcePathStyle  bool   `yaml:"s3_force_path_style"`
	PollSeconds       int    `yaml:"poll_seconds"`
	LockTTLSeconds    int    `yaml:"lock_ttl_seconds"`
	// StaleAfterHours marks the event store degraded in health checks when
	// nothing has been ingested for this long.
	StaleAfterHours int `yaml:"stale_after_hours"`
}

// PollInterval returns how often the S3 importer runs.
func (c IngestConfig) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}

// StaleAfter returns the ingest gap after which the event store is stale.
func (c IngestConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterHours) * time.Hour
}

// LockTTL returns the import lock lease.
func (c IngestConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ArchiveConfig holds report snapshot storage settings.
type ArchiveConfig struct {
	Type          string `yaml:"type"` // "local", "aws" or empty
	LocalPath     string `yaml:"local_path"`
	S3Bucket      string `yaml:"s3_bucket"`
	S3Prefix      string `yaml:"s3_prefix"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"`
	RetentionDays int    `yaml:"retention_days"`
}

// GetAWSProfile returns the AWS profile, empty on ECS so the task role applies.
func (c ArchiveConfig) GetAWSProfile() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		return profile
	}
	return c.AWSProfile
}

// CacheConfig holds report cache settings.
type CacheConfig struct {
	Backend    string `yaml:"backend"` // "redis", "memory" or "none"
	TTLSeconds int    `yaml:"ttl_seconds"`
	MaxMB      int    `yaml:"max_mb"`
}

// TTL returns the report cache lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII bool   `yaml:"redact_pii"`
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

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 50
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "auth_token"
	}
	if cfg.Auth.ShortSessionSeconds == 0 {
		cfg.Auth.ShortSessionSeconds = 12 * 60 * 60
	}
	if cfg.Auth.RememberDays == 0 {
		cfg.Auth.RememberDays = 7
	}
	if cfg.Auth.LoginRatePerMinute == 0 {
		cfg.Auth.LoginRatePerMinute = 10
	}
	if cfg.Auth.LoginBurst == 0 {
		cfg.Auth.LoginBurst = 5
	}
	if cfg.Analytics.Timezone == "" {
		cfg.Analytics.Timezone = "Australia/Brisbane"
	}
	if cfg.Ingest.WebhookMaxEvents == 0 {
		cfg.Ingest.WebhookMaxEvents = 10000
	}
	if cfg.Ingest.S3ProcessedPrefix == "" {
		cfg.Ingest.S3ProcessedPrefix = "processed/"
	}
	if cfg.Ingest.S3Region == "" {
		cfg.Ingest.S3Region = "us-east-1"
	}
	if cfg.Ingest.PollSeconds == 0 {
		cfg.Ingest.PollSeconds = 300
	}
	if cfg.Ingest.LockTTLSeconds == 0 {
		cfg.Ingest.LockTTLSeconds = 600
	}
	if cfg.Ingest.StaleAfterHours == 0 {
		cfg.Ingest.StaleAfterHours = 48
	}
	if cfg.Archive.LocalPath == "" {
		cfg.Archive.LocalPath = "./data/snapshots"
	}
	if cfg.Archive.S3Prefix == "" {
		cfg.Archive.S3Prefix = "snapshots/"
	}
	if cfg.Archive.AWSRegion == "" {
		cfg.Archive.AWSRegion = "us-east-1"
	}
	if cfg.Archive.RetentionDays == 0 {
		cfg.Archive.RetentionDays = 90
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 300
	}
	if cfg.Cache.MaxMB == 0 {
		cfg.Cache.MaxMB = 64
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setInt(&cfg.Server.Port, "PORT")
	setBool(&cfg.Server.Dev, "DEV_MODE")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	// Credentials switch auth on; there is no anonymous default account.
	if v := os.Getenv("DASHBOARD_USERNAME"); v != "" {
		cfg.Auth.Username = v
		cfg.Auth.Enabled = true
	}
	setString(&cfg.Auth.Password, "DASHBOARD_PASSWORD")
	setString(&cfg.Auth.PasswordHash, "DASHBOARD_PASSWORD_HASH")
	setString(&cfg.Auth.Secret, "AUTH_SECRET")
	setInt(&cfg.Auth.ShortSessionSeconds, "SHORT_SESSION_SECONDS")

	setString(&cfg.Analytics.Timezone, "REPORT_TIMEZONE")

	setString(&cfg.Ingest.WebhookPublicKey, "SENDGRID_WEBHOOK_PUBLIC_KEY")
	setString(&cfg.Ingest.S3Bucket, "INGEST_S3_BUCKET")
	setString(&cfg.Ingest.S3Prefix, "INGEST_S3_PREFIX")
	setString(&cfg.Ingest.S3Region, "INGEST_S3_REGION")
	setString(&cfg.Ingest.S3Endpoint, "INGEST_S3_ENDPOINT")
	setString(&cfg.Ingest.S3AccessKeyID, "INGEST_S3_ACCESS_KEY_ID")
	setString(&cfg.Ingest.S3SecretAccessKey, "INGEST_S3_SECRET_ACCESS_KEY")

	setString(&cfg.Archive.Type, "ARCHIVE_TYPE")
	setString(&cfg.Archive.S3Bucket, "ARCHIVE_S3_BUCKET")
	setString(&cfg.Archive.DynamoDBTable, "ARCHIVE_DYNAMODB_TABLE")

	setString(&cfg.Cache.Backend, "CACHE_BACKEND")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setBool(&cfg.Logging.RedactPII, "LOG_REDACT_PII")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

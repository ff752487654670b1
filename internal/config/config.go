package config

import "time"

// ETLConfig is the root configuration for an ingest run.
type ETLConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Cache    CacheConfig    `yaml:"cache"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InstanceConfig identifies this job.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds CoinGecko API settings.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	MarketsPath  string        `yaml:"markets_path"`
	APIKey       string        `yaml:"api_key"` // Sent as x-cg-demo-api-key when set
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   *int          `yaml:"max_retries"` // Retries on HTTP 429 only; nil = default, 0 = never
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	RateLimit    int           `yaml:"rate_limit"`  // Calls allowed per RateWindow
	RateWindow   time.Duration `yaml:"rate_window"` // Sliding window length
	VsCurrency   string        `yaml:"vs_currency"`
	PerPage      int           `yaml:"per_page"`
	MaxPages     int           `yaml:"max_pages"` // 0 = until an empty page
}

// Retries returns the configured 429 retry count, or the default when unset.
func (c APIConfig) Retries() int {
	if c.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *c.MaxRetries
}

// DatabaseConfig holds the sink database connection.
type DatabaseConfig struct {
	Sink DBConfig `yaml:"sink"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// PipelineConfig controls projection, validation and deduplication.
type PipelineConfig struct {
	Table                 string   `yaml:"table"`
	Columns               []string `yaml:"columns"`         // API fields projected into the table
	RequiredFields        []string `yaml:"required_fields"` // Checked against the first record
	DedupeKeys            []string `yaml:"dedupe_keys"`     // Storage column names
	ReportColumn          string   `yaml:"report_column"`
	AbortOnSchemaMismatch bool     `yaml:"abort_on_schema_mismatch"`
	CreateTable           bool     `yaml:"create_table"`
}

// AlertsConfig holds email alert settings.
type AlertsConfig struct {
	Enabled  bool          `yaml:"enabled"`
	SMTPHost string        `yaml:"smtp_host"`
	SMTPPort int           `yaml:"smtp_port"`
	Username string        `yaml:"gmail_un"`
	Password string        `yaml:"gmail_pw"`
	From     string        `yaml:"from"`
	To       []string      `yaml:"to"`
	Throttle time.Duration `yaml:"throttle"` // Minimum gap between identical alerts (needs cache)
}

// CacheConfig holds the optional Redis connection used for alert throttling.
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// Enabled reports whether a Redis address is configured.
func (c CacheConfig) Enabled() bool {
	return c.RedisAddr != ""
}

// ArchiveConfig holds the optional S3-compatible raw archive settings.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// Enabled reports whether an archive endpoint is configured.
func (c ArchiveConfig) Enabled() bool {
	return c.Endpoint != ""
}

// MetricsConfig holds Prometheus Pushgateway settings.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// LoggingConfig holds slog handler settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

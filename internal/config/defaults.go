package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL       = "https://api.coingecko.com/api/v3"
	DefaultMarketsPath   = "/coins/markets"
	DefaultAPITimeout    = 30 * time.Second
	DefaultMaxRetries    = 3
	DefaultRetryBackoff  = 1 * time.Second
	DefaultRateLimit     = 40
	DefaultRateWindow    = 60 * time.Second
	DefaultVsCurrency    = "usd"
	DefaultPerPage       = 250
	DefaultDBPort        = 5432
	DefaultDBName        = "coingecko_data"
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 4
	DefaultMinConns      = 1
	DefaultTable         = "market_data"
	DefaultReportColumn  = "coin_id"
	DefaultSMTPHost      = "smtp.gmail.com"
	DefaultSMTPPort      = 587
	DefaultAlertThrottle = 1 * time.Hour
	DefaultArchivePrefix = "coins_markets"
	DefaultMetricsJob    = "cg_market_etl"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// DefaultColumns are the markets fields projected into the sink table.
var DefaultColumns = []string{
	"id",
	"symbol",
	"name",
	"current_price",
	"high_24h",
	"low_24h",
	"market_cap",
	"total_volume",
	"last_updated",
}

// DefaultDedupeKeys identify one coin per ingestion date.
var DefaultDedupeKeys = []string{"coin_id", "cg_date"}

func (c *ETLConfig) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.MarketsPath == "" {
		c.API.MarketsPath = DefaultMarketsPath
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == nil {
		retries := DefaultMaxRetries
		c.API.MaxRetries = &retries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = DefaultRateLimit
	}
	if c.API.RateWindow == 0 {
		c.API.RateWindow = DefaultRateWindow
	}
	if c.API.VsCurrency == "" {
		c.API.VsCurrency = DefaultVsCurrency
	}
	if c.API.PerPage == 0 {
		c.API.PerPage = DefaultPerPage
	}

	// Database defaults
	applyDBDefaults(&c.Database.Sink)

	// Pipeline defaults
	if c.Pipeline.Table == "" {
		c.Pipeline.Table = DefaultTable
	}
	if len(c.Pipeline.Columns) == 0 {
		c.Pipeline.Columns = append([]string(nil), DefaultColumns...)
	}
	if len(c.Pipeline.RequiredFields) == 0 {
		c.Pipeline.RequiredFields = append([]string(nil), c.Pipeline.Columns...)
	}
	if len(c.Pipeline.DedupeKeys) == 0 {
		c.Pipeline.DedupeKeys = append([]string(nil), DefaultDedupeKeys...)
	}
	if c.Pipeline.ReportColumn == "" {
		c.Pipeline.ReportColumn = DefaultReportColumn
	}

	// Alerts defaults
	if c.Alerts.SMTPHost == "" {
		c.Alerts.SMTPHost = DefaultSMTPHost
	}
	if c.Alerts.SMTPPort == 0 {
		c.Alerts.SMTPPort = DefaultSMTPPort
	}
	if c.Alerts.From == "" {
		c.Alerts.From = c.Alerts.Username
	}
	if c.Alerts.Throttle == 0 {
		c.Alerts.Throttle = DefaultAlertThrottle
	}

	// Archive defaults
	if c.Archive.Prefix == "" {
		c.Archive.Prefix = DefaultArchivePrefix
	}

	// Metrics defaults
	if c.Metrics.Job == "" {
		c.Metrics.Job = DefaultMetricsJob
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.Name == "" {
		db.Name = DefaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

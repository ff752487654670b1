package config

import (
	"errors"
	"fmt"
	"slices"
)

// Validate checks that all required fields are set and values are valid.
func (c *ETLConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.RateLimit < 1 {
		return errors.New("api.rate_limit must be >= 1")
	}
	if c.API.RateWindow <= 0 {
		return errors.New("api.rate_window must be > 0")
	}
	if c.API.PerPage < 1 || c.API.PerPage > 250 {
		return fmt.Errorf("api.per_page must be between 1 and 250, got %d", c.API.PerPage)
	}
	if c.API.Retries() < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.MaxPages < 0 {
		return errors.New("api.max_pages must be >= 0")
	}

	if err := c.Database.Sink.validate("database.sink"); err != nil {
		return err
	}

	if err := c.Pipeline.validate(); err != nil {
		return err
	}

	if c.Alerts.Enabled {
		if c.Alerts.Username == "" {
			return errors.New("alerts.gmail_un is required when alerts are enabled")
		}
		if c.Alerts.Password == "" {
			return errors.New("alerts.gmail_pw is required when alerts are enabled")
		}
		if len(c.Alerts.To) == 0 {
			return errors.New("alerts.to must list at least one recipient")
		}
	}

	if c.Archive.Enabled() && c.Archive.Bucket == "" {
		return errors.New("archive.bucket is required when archive.endpoint is set")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func (p *PipelineConfig) validate() error {
	if p.Table == "" {
		return errors.New("pipeline.table is required")
	}
	if len(p.Columns) == 0 {
		return errors.New("pipeline.columns must not be empty")
	}
	if !slices.Contains(p.Columns, "id") {
		return errors.New("pipeline.columns must include id")
	}
	if len(p.DedupeKeys) == 0 {
		return errors.New("pipeline.dedupe_keys must not be empty")
	}
	if p.ReportColumn == "" {
		return errors.New("pipeline.report_column is required")
	}
	return nil
}

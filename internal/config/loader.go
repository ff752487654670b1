package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads an ETLConfig from a YAML file. ${VAR} references are expanded
// from the environment before parsing, which is how the sink password and
// the gmail_un/gmail_pw alert credentials are supplied.
func Load(path string) (*ETLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read etl config %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg ETLConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads the ETL config and fills unset fields from the
// Default* constants.
func LoadWithDefaults(path string) (*ETLConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate is what cmd/ingest calls: load, apply defaults, validate.
func LoadAndValidate(path string) (*ETLConfig, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

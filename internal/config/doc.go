// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation,
// which is how credentials (database password, SMTP password, API key) are supplied.
// See configs/etl.example.yaml for a full example.
package config

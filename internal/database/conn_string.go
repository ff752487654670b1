package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/cg-market-etl/internal/config"
)

// BuildConnString builds the DSN for the database.sink section of the ETL
// config. Credentials usually arrive through ${VAR} expansion and may hold
// URL-reserved characters, so both are query-escaped.
func BuildConnString(cfg config.DBConfig) string {
	escapedUser := url.QueryEscape(cfg.User)
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		escapedUser,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}

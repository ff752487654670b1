// Package version reports build information for the ingest binary.
//
// Values are injected with ldflags:
//
//	go build -ldflags "-X github.com/rickgao/cg-market-etl/internal/version.Version=1.2.0 \
//	                   -X github.com/rickgao/cg-market-etl/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/cg-market-etl/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/ingest
package version

import (
	"log/slog"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns "version (commit) built time".
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// Attr returns build information as a single log attribute.
func Attr() slog.Attr {
	return slog.Group("build",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("built", BuildTime),
		slog.String("go", runtime.Version()),
	)
}

// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/widget-market/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/widget-market/internal/version.Commit=$(git rev-parse --short HEAD)" \
//	         ./cmd/widgetmarket
package version

import "runtime"

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime + " " + runtime.Version()
}

// Attrs returns the version as slog key/value pairs.
func Attrs() []any {
	return []any{"version", Version, "commit", Commit, "go", runtime.Version()}
}

// Package version provides build information for docsearch.
package version

import (
	"fmt"
	"runtime"
)

// Version is set via ldflags at build time:
// -X github.com/pankamp3004/Documents-Search-Project/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build metadata set via ldflags.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version the binary was built with.
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns the version with all build info on one line.
func String() string {
	return fmt.Sprintf("docsearch %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, GoVersion)
}

// Short returns just the version.
func Short() string {
	return Version
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

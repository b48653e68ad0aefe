/*
Package version provides build information for ric.

Values are set via ldflags during build:

	go build -ldflags "-X github.com/khanglvm/ric/internal/version.Version=v0.2.0 \
	  -X github.com/khanglvm/ric/internal/version.Commit=$(git rev-parse --short HEAD) \
	  -X github.com/khanglvm/ric/internal/version.Date=$(date -u +%Y-%m-%d)" ./cmd/ric

If not set, the build reports itself as "dev".
*/
package version

import "runtime"

// Version information (set via ldflags during build)
var (
	// Version is the release tag (e.g., v0.2.0)
	Version = "dev"
	// Commit is the git commit hash (short form)
	Commit = "none"
	// Date is the build date in UTC (YYYY-MM-DD)
	Date = "unknown"
)

// Info is the machine-readable build description.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
	}
}

// GetVersion returns version information as a formatted string
func GetVersion() string {
	return FormatVersion(Version, Commit, Date)
}

// FormatVersion formats version components into a display string
func FormatVersion(version, commit, date string) string {
	if version == "dev" {
		return version + " (development build)"
	}
	return version + " (commit: " + commit + ", built: " + date + ")"
}

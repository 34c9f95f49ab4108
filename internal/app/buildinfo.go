package app

import "fmt"

// Build information populated via -ldflags at release time.
var (
    BuildVersion = "0.0.0-dev"
    BuildCommit  = "unknown"
    // BuildDate is an RFC 3339 timestamp.
    BuildDate    = "unknown"
)

// VersionString renders the build information for -version.
func VersionString() string {
    return fmt.Sprintf("smsbackup %s (commit %s, built %s)", BuildVersion, BuildCommit, BuildDate)
}

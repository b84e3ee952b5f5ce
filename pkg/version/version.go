package version

import "fmt"

// Build information. Populated at build-time via -ldflags
var (
	// Version is the semantic version (e.g., "v1.0.0")
	Version = "dev"

	// GitCommit is the git commit hash
	GitCommit = "unknown"

	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// GetVersion returns a one-line version string:
// relay-server v1.0.0 (abc1234 2026-01-01T00:00:00Z)
func GetVersion(name string) string {
	return fmt.Sprintf("%s %s (%s %s)", name, Version, GitCommit, BuildTime)
}

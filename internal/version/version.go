package version

import "fmt"

var (
	// Version is the semantic version of the agent build, stamped via ldflags.
	Version = "1.0.0"
	// Commit is the short git SHA of the agent build (or "none" locally).
	Commit = "none"
	// BuildTime is the UTC timestamp the agent binary was built at.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full renders the agent version with commit and build time, the form
// logged at cycle start and printed by the version subcommand.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// -----------------------------------------------------------------------------
// Version Information
// -----------------------------------------------------------------------------
//
// This package holds version metadata for the version-info tool itself, set
// at build time via ldflags. It is unrelated to the headers the tool writes.
//
// Build Command:
//   go build \
//     -ldflags="-X github.com/afreidah/version-info/internal/version.Version=v1.0.0 \
//               -X github.com/afreidah/version-info/internal/version.Commit=abc123def \
//               -X github.com/afreidah/version-info/internal/version.BuildTime=2025-10-15T12:34:56Z"
//
// When the ldflags are absent, Commit and BuildTime fall back to the VCS
// stamp embedded by the Go toolchain.
//
// -----------------------------------------------------------------------------

package version

import (
	"runtime"
	"runtime/debug"
)

// Version is the semantic version of the tool.
var Version = "dev"

// Commit is the Git commit hash.
var Commit = "unknown"

// BuildTime is the timestamp when the binary was built.
var BuildTime = "unknown"

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" && s.Value != "" {
				Commit = s.Value
			}
		case "vcs.time":
			if BuildTime == "unknown" && s.Value != "" {
				BuildTime = s.Value
			}
		}
	}
}

// String returns a formatted version string.
// Example: "v1.0.0 (commit: abc123def, built: 2025-10-15T12:34:56Z, go1.25.1)"
func String() string {
	return Version + " (commit: " + Commit + ", built: " + BuildTime + ", " + runtime.Version() + ")"
}

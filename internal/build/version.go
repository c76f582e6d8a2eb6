// Package build carries build metadata and the logging plumbing shared by
// the troupe daemon and CLI: a fan-out btclog handler and a rotating log
// file writer.
package build

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// semanticVersion is the release version of the troupe binaries. Bumped as
// part of the release process.
const semanticVersion = "0.2.0"

// Version returns the release version.
func Version() string {
	return semanticVersion
}

// GoVersion is the version of the Go toolchain the binary was built with.
var GoVersion = runtime.Version()

// Commit returns the VCS revision baked into the binary by the Go toolchain,
// or "unknown" when building outside a checkout.
func Commit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}

	return "unknown"
}

// VersionString renders the full version banner used at daemon startup.
func VersionString() string {
	return fmt.Sprintf("troupe %s commit=%s go=%s",
		Version(), Commit(), GoVersion)
}

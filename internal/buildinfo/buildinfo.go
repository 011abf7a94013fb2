// Package buildinfo holds build-time metadata injected with -ldflags.
package buildinfo

import "fmt"

// Set at link time:
//
//	-ldflags "-X github.com/tphakala/fieldlog/internal/buildinfo.Version=v1.2.0"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// Release returns the release name reported to error tracking.
func Release() string {
	return fmt.Sprintf("fieldlog@%s", Version)
}

// String describes the build for --version output.
func String() string {
	return fmt.Sprintf("%s (built %s)", Version, BuildDate)
}

// Package build holds build-time metadata injected via ldflags.
package build

var (
	// Version is the release version of this binary.
	Version = "dev"

	// Commit is the git commit the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"

	// ProjectName is the canonical service name used in logs and telemetry.
	ProjectName = "mercato"
)

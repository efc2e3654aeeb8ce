// Package version carries the version identifiers shared by the CLI and the
// portal dev server.
package version

const (
	// Version is the release version of this build.
	Version = "0.1.0"

	// APIVersion is the portal API version this build speaks.
	APIVersion = "0.1.0"

	// MinServerVersion is the oldest server release the CLI accepts.
	MinServerVersion = "0.1.0"
)

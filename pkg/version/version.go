// Package version carries build metadata stamped in at link time via
// -ldflags "-X github.com/s3desk/s3desk/pkg/version.GitVersion=...".
package version

var (
	// GitVersion is the release tag or describe output of the build.
	GitVersion = "dev"
	// GitCommit is the git commit hash the binary was built from.
	GitCommit = "unknown"
)

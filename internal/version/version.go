package version

var (
	// Version is the release tag stamped into export provenance.
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the build metadata in the form written to sidecars.
func String() string {
	return Version + " (" + GitSHA + ", built " + BuildTime + ")"
}

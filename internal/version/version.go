// Package version carries build metadata, set with -ldflags at link time.
package version

import "fmt"

var (
	// Version is the release tag.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// Info is the JSON form of the build metadata.
type Info struct {
	Version   string `json:"version"`
	GitSHA    string `json:"gitSha"`
	BuildTime string `json:"buildTime"`
}

// Current returns the linked build metadata.
func Current() Info {
	return Info{Version: Version, GitSHA: GitSHA, BuildTime: BuildTime}
}

// String formats the metadata for a -version flag.
func String() string {
	return fmt.Sprintf("evacsim %s (%s, built %s)", Version, GitSHA, BuildTime)
}

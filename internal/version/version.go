// Package version carries build metadata for the binaries.
package version

// Version is set at build time: -ldflags "-X github.com/bukka/lrng/internal/version.Version=v1.2.3"
var Version = "dev"

func String() string {
	return Version
}

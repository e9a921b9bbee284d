// Package version carries the build version, set at link time.
package version

// Version is overridden via -ldflags "-X .../pkg/version.Version=v1.2.3".
var Version = "dev"

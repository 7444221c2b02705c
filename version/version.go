// Package version holds the module's build-time version stamp.
package version

// Version is the mrvm module version. Overridden at build time with
// -ldflags "-X github.com/ashel/mrvm/version.Version=...".
var Version = "dev"

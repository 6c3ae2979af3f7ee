// Package version provides build and version information for Storyforge.
package version

// Version is the current release version of Storyforge.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/JuggernautLabs/storyforge/internal/version.Version=x.y.z"
var Version = "0.1.0"

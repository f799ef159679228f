// Package version holds the build identity of unref.
package version

import (
	"runtime"
	"runtime/debug"
)

// Overridden at build time:
// go build -ldflags "-X unref/internal/version.Version=1.0.0 -X unref/internal/version.Commit=abc123"
var (
	Version   = "0.4.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info returns the version with an abbreviated commit when one is known.
func Info() string {
	commit := revision()
	if len(commit) > 7 {
		return Version + " (" + commit[:7] + ")"
	}
	return Version
}

// Full returns the version, commit, build date and platform, one per line.
func Full() string {
	return "unref version " + Version + "\n" +
		"Commit: " + revision() + "\n" +
		"Built: " + BuildDate + "\n" +
		"Platform: " + runtime.GOOS + "/" + runtime.GOARCH + " (" + runtime.Version() + ")"
}

// revision prefers the ldflags commit and falls back to the VCS stamp of
// the build.
func revision() string {
	if Commit != "unknown" && Commit != "" {
		return Commit
	}
	if info, ok := readBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return Commit
}

package version //nolint:revive // package name intentionally matches build-info convention

import (
	"fmt"
	"runtime/debug"
)

// Set at build time with
//
//	-ldflags "-X github.com/pitabwire/voiceverify/version.Version=${VERSION} ..."
//
//nolint:gochecknoglobals //version information is set at build time
var (
	Repository = "github.com/pitabwire/voiceverify"
	Version    string
	Commit     string
	Date       string
)

// Current returns Version, falling back to the module version recorded by the go tool.
func Current() string {
	if Version != "" {
		return Version
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// String renders the build information on a single line.
func String() string {
	commit := Commit
	if commit == "" {
		commit = "unknown"
	}
	date := Date
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s %s (commit %s, built %s)", Repository, Current(), commit, date)
}

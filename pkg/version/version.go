// Package version reports build information for the baw binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is set via ldflags:
//
//	-X github.com/vinhtt95/BAWorkbench-sub000/pkg/version.Version=v0.3.0
var Version = "dev"

var (
	// Commit is the short git revision. Falls back to the vcs.revision
	// recorded by the Go toolchain when not set via ldflags.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go toolchain used for the build.
	GoVersion = runtime.Version()
)

func init() {
	if Commit != "unknown" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			Commit = s.Value
			if len(Commit) > 7 {
				Commit = Commit[:7]
			}
		}
	}
}

// BuildInfo is the JSON shape printed by `baw version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a single-line description of the build.
func String() string {
	return fmt.Sprintf("baw %s (commit: %s, built: %s, go: %s, %s/%s)",
		Version, Commit, Date, GoVersion, runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version.
func Short() string {
	return Version
}

// GetInfo returns structured build information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

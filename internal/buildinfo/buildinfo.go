// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// Version is the semantic version or tag for this build.
// Inject via: -X github.com/openct/openct-cms/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA for this build.
// Inject via: -X github.com/openct/openct-cms/internal/buildinfo.Commit=...
var Commit = ""

// BuildDate is the RFC3339 build timestamp.
// Inject via: -X github.com/openct/openct-cms/internal/buildinfo.BuildDate=...
var BuildDate = ""

// Info is the printable form used by the version command.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Get returns build metadata, falling back to module info for `go install` builds.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, BuildDate: BuildDate}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
		if info.Version == "" && bi.Main.Version != "" {
			info.Version = bi.Main.Version
		}
		if info.Commit == "" {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					info.Commit = s.Value
				}
			}
		}
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	return info
}

// Release returns a Sentry-style release identifier.
func (i Info) Release() string {
	if i.Commit == "" {
		return "openct@" + i.Version
	}
	short := i.Commit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("openct@%s+%s", i.Version, short)
}

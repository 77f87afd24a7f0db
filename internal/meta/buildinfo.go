// Package meta reports build metadata of the running binary. It is shown by
// the version command and stamped into generated review reports.
package meta

import (
	"runtime/debug"
	"strings"
)

// Version is overridden at link time (-ldflags "-X .../meta.Version=v1.2.3").
var Version = ""

// Info contains a minimal summary of build metadata.
type Info struct {
	Module    string // main module path
	Version   string // release tag or pseudo-version, "(devel)" for local builds
	Commit    string // vcs.revision, shortened to 12 chars
	Modified  bool   // vcs.modified
	GoVersion string
}

// Detect reads build metadata embedded by the Go toolchain. Missing data
// yields zero fields rather than an error.
func Detect() Info {
	inf := Info{Version: Version}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		if inf.Version == "" {
			inf.Version = "(unknown)"
		}
		return inf
	}
	return fromBuildInfo(bi, inf)
}

func fromBuildInfo(bi *debug.BuildInfo, inf Info) Info {
	inf.Module = bi.Main.Path
	inf.GoVersion = bi.GoVersion
	if inf.Version == "" {
		inf.Version = firstNonEmpty(bi.Main.Version, "(devel)")
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			inf.Commit = s.Value
			if len(inf.Commit) > 12 {
				inf.Commit = inf.Commit[:12]
			}
		case "vcs.modified":
			inf.Modified = s.Value == "true"
		}
	}
	return inf
}

// String renders "version (commit[, dirty]) goX".
func (i Info) String() string {
	var sb strings.Builder
	sb.WriteString(i.Version)
	if i.Commit != "" {
		sb.WriteString(" (" + i.Commit)
		if i.Modified {
			sb.WriteString(", dirty")
		}
		sb.WriteString(")")
	}
	if i.GoVersion != "" {
		sb.WriteString(" " + i.GoVersion)
	}
	return sb.String()
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if s != "" {
			return s
		}
	}
	return ""
}

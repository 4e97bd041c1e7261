package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/dendrascience/archivefs/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info contains version information
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Package string `json:"package"`
}

// buildSetting returns the value of a VCS setting recorded by the Go
// toolchain, or "" when the binary carries no build info.
func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

func pick(linked, unset, fallback string) string {
	if linked != unset && linked != "" {
		return linked
	}
	if fallback != "" {
		return fallback
	}
	return unset
}

// GetVersion returns the version string, preferring the linked version.
func GetVersion() string {
	if Version != "dev" && Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "development"
}

// GetInfo returns complete version information
func GetInfo() Info {
	return Info{
		Version: GetVersion(),
		Commit:  pick(Commit, "unknown", buildSetting("vcs.revision")),
		Date:    pick(Date, "unknown", buildSetting("vcs.time")),
		Package: "archivefs",
	}
}

// GetFullVersion returns the version with the short commit and build date
// when they are known, e.g. "v0.3.0 (1a2b3c4, built 2025-01-02T03:04:05Z)".
func GetFullVersion() string {
	return GetInfo().String()
}

func (i Info) String() string {
	if i.Commit == "unknown" || len(i.Commit) <= 7 {
		return i.Version
	}
	if i.Date == "unknown" {
		return fmt.Sprintf("%s (%s)", i.Version, i.Commit[:7])
	}
	return fmt.Sprintf("%s (%s, built %s)", i.Version, i.Commit[:7], i.Date)
}

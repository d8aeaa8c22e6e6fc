package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	devVersion      = "0.1.0-dev"
	unknownRevision = "HEAD"
	unknownDate     = "unknown"
	revisionLength  = 7
)

// Set with -ldflags "-X github.com/openmined/photobox/internal/version.Version=..."
var (
	AppName   = "PhotoBox"
	Version   = devVersion
	Revision  = unknownRevision
	BuildDate = ""
)

// applyBuildInfo fills whatever ldflags left at its default from the module and VCS build settings
func applyBuildInfo(mainVersion string, settings map[string]string) {
	if Version == devVersion || Version == "" {
		if mainVersion != "" && mainVersion != "(devel)" {
			Version = strings.TrimPrefix(mainVersion, "v")
		}
	}

	if Revision == unknownRevision || Revision == "" {
		if r := settings["vcs.revision"]; r != "" {
			Revision = shortRevision(r, settings["vcs.modified"] == "true")
		}
	}

	if BuildDate == "" {
		BuildDate = settings["vcs.time"]
	}
}

func shortRevision(rev string, dirty bool) string {
	if len(rev) > revisionLength {
		rev = rev[:revisionLength]
	}
	if dirty {
		rev += "-dirty"
	}
	return rev
}

// Short - `0.1.0 (5e23a4f)`
func Short() string {
	return fmt.Sprintf("%s (%s)", Version, Revision)
}

// ShortWithApp - `PhotoBox 0.1.0 (5e23a4f)`
func ShortWithApp() string {
	return AppName + " " + Short()
}

// Detailed - `0.1.0 (5e23a4f; go1.23.6; linux/amd64; 2025-05-01T10:00:00Z)`
func Detailed() string {
	return fmt.Sprintf("%s (%s; %s; %s/%s; %s)", Version, Revision, runtime.Version(), runtime.GOOS, runtime.GOARCH, BuildDate)
}

// DetailedWithApp - `PhotoBox 0.1.0 (5e23a4f; go1.23.6; linux/amd64; 2025-05-01T10:00:00Z)`
func DetailedWithApp() string {
	return AppName + " " + Detailed()
}

// UserAgent identifies SDK requests - `PhotoBox/0.1.0 (5e23a4f; darwin/arm64)`
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s; %s/%s)", AppName, Version, Revision, runtime.GOOS, runtime.GOARCH)
}

func init() {
	if info, ok := debug.ReadBuildInfo(); ok && info != nil {
		settings := make(map[string]string, len(info.Settings))
		for _, s := range info.Settings {
			settings[s.Key] = s.Value
		}
		applyBuildInfo(info.Main.Version, settings)
	}
	if BuildDate == "" {
		BuildDate = unknownDate
	}
}

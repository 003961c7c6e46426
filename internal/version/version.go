// Package version reports the build of the switcher binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/switcher/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/switcher/internal/version.Commit=abc123"
//
// Unset values are filled from the VCS stamp of the build, or "dev".
var (
	Version = ""
	Commit  = ""
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		v, c := fromBuildInfo(info)
		if Version == "" {
			Version = v
		}
		if Commit == "" {
			Commit = c
		}
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromBuildInfo derives a dev version from the commit time and a short,
// dirty-marked commit hash. Either may be empty.
func fromBuildInfo(info *debug.BuildInfo) (version, commit string) {
	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	if rev := settings["vcs.revision"]; rev != "" {
		if len(rev) > 7 {
			rev = rev[:7]
		}
		commit = rev
		if settings["vcs.modified"] == "true" {
			commit += "-dirty"
		}
	}
	if t, err := time.Parse(time.RFC3339, settings["vcs.time"]); err == nil {
		version = "dev-" + t.Format("20060102")
	}
	return version, commit
}

// Info describes the running binary
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build information of the running binary
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Full returns the version with its commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent identifies the client to bridges
func UserAgent() string {
	return "switcher/" + Version
}

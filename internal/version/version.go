// Package version carries build identification, settable via ldflags:
//
//	go build -ldflags="-X github.com/joshp123/kumo2mqtt/internal/version.Version=v1.2.3"
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version != "" && Commit != "" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && Commit == "" {
				Commit = setting.Value
				if len(Commit) > 7 {
					Commit = Commit[:7]
				}
			}
		}
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// Full returns the version with the commit hash.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

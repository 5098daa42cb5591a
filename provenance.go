package launcher

import (
	"runtime/debug"
)

// Set at link time:
//
//	go build -ldflags "-X github.com/GoCodeAlone/launcher.Commit=$(git rev-parse HEAD) -X github.com/GoCodeAlone/launcher.BuildTime=$(date -u +%FT%TZ)"
var (
	Commit    string
	BuildTime string
)

const unknown = "unknown"

// Provenance identifies the running build.
type Provenance struct {
	Commit    string
	BuildTime string
	Modified  bool
}

// ReadProvenance returns the link-time values, falling back to the VCS
// information stamped by the Go toolchain.
func ReadProvenance() Provenance {
	p := Provenance{Commit: Commit, BuildTime: BuildTime}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if p.Commit == "" {
					p.Commit = s.Value
				}
			case "vcs.time":
				if p.BuildTime == "" {
					p.BuildTime = s.Value
				}
			case "vcs.modified":
				p.Modified = s.Value == "true"
			}
		}
	}
	if p.Commit == "" {
		p.Commit = unknown
	}
	if p.BuildTime == "" {
		p.BuildTime = unknown
	}
	return p
}

// Package version reports build identity for the daemon and the CLI.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/wzhhnet/esp32-mg-server/internal/version.Version=v0.3.0 \
//	                   -X github.com/wzhhnet/esp32-mg-server/internal/version.Commit=abc123"
//
// Otherwise they come from the VCS stamp in the build info, or fall back to a
// dev version.
var (
	Version = ""
	Commit  = ""
)

// built is the VCS commit time when known.
var built string

func init() {
	if Version == "" || Commit == "" {
		populateFromBuildInfo()
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func populateFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	var revision, modified string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value
		case "vcs.time":
			built = setting.Value
		}
	}

	if Commit == "" && revision != "" {
		Commit = shortRevision(revision)
		if modified == "true" {
			Commit += "-dirty"
		}
	}
	if Version == "" && built != "" {
		if t, err := time.Parse(time.RFC3339, built); err == nil {
			Version = "dev-" + t.Format("20060102")
		}
	}
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// Full returns the version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// Info describes the running build. It is the payload of sys.info.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built,omitempty"`
	GoVersion string `json:"go"`
	Platform  string `json:"platform"`
}

// Get returns the Info of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Built:     built,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders Info on one line.
func (i Info) String() string {
	return fmt.Sprintf("wifiprov %s (commit: %s, %s, %s)", i.Version, i.Commit, i.GoVersion, i.Platform)
}

// Package version reports the build version of symoffload binaries.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Version records symoffload version information.
type Version struct {
	Version string    `json:"version"`
	Commit  string    `json:"commit"`
	Date    time.Time `json:"date"`
	Dirty   bool      `json:"dirty"`
	Go      string    `json:"go"`
}

func (v Version) String() string {
	return v.Version
}

// V is the version of the running binary.
var V = FromBuildInfo(debug.ReadBuildInfo())

const develVersion = "(devel)"

// FromBuildInfo extracts version information recorded by the Go toolchain.
//
// A tagged module version is used as is. Otherwise, a pseudo-version is derived from VCS settings.
// Without VCS settings, the version is "development".
func FromBuildInfo(bi *debug.BuildInfo, ok bool) (v Version) {
	v = Version{
		Version: "development",
		Commit:  "unknown",
		Date:    time.Now(),
		Dirty:   true,
	}
	if !ok {
		return v
	}
	v.Go = bi.GoVersion

	vcs := map[string]string{}
	for _, kv := range bi.Settings {
		vcs[kv.Key] = kv.Value
	}
	date, e := time.Parse(time.RFC3339, vcs["vcs.time"])
	if hasVCS := vcs["vcs"] == "git" && len(vcs["vcs.revision"]) == 40 && e == nil; hasVCS {
		v.Commit, v.Date, v.Dirty = vcs["vcs.revision"], date, vcs["vcs.modified"] == "true"
		v.Version = fmt.Sprintf("v0.0.0-%s-%s", v.Date.UTC().Format("20060102150405"), v.Commit[:12])
		if v.Dirty {
			v.Version += "+dirty"
		}
	}

	if mv := bi.Main.Version; mv != "" && mv != develVersion {
		v.Version = mv
	}
	return v
}

// Package version reports the tofino-tm build version.
package version

import (
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// Version records build version information.
type Version struct {
	Version string    `json:"version"`
	Module  string    `json:"module"`
	Commit  string    `json:"commit"`
	Date    time.Time `json:"date"`
	Dirty   bool      `json:"dirty"`
}

func (v Version) String() string {
	return v.Version
}

// ZapField returns a zap.Field for logging.
func (v Version) ZapField(key string) zap.Field {
	return zap.String(key, v.Version)
}

// Get returns version information from the VCS stamp embedded by the Go toolchain.
// A binary built outside a repository reports "development".
func Get() (v Version) {
	v.Version, v.Commit = "development", "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	v.Module = info.Main.Path
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			v.Commit = setting.Value
		case "vcs.time":
			v.Date, _ = time.Parse(time.RFC3339, setting.Value)
		case "vcs.modified":
			v.Dirty = setting.Value == "true"
		}
	}

	switch {
	case info.Main.Version != "" && info.Main.Version != "(devel)":
		v.Version = info.Main.Version
	case len(v.Commit) >= 12 && !v.Date.IsZero():
		dirtySuffix := ""
		if v.Dirty {
			dirtySuffix = "-dirty"
		}
		v.Version = fmt.Sprintf("v0.0.0-%s-%s%s", v.Date.UTC().Format("20060102150405"), v.Commit[:12], dirtySuffix)
	}
	return
}

// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags -X at release build time. Development builds and
// test runs keep the defaults.
var (
	// Version is the semantic version, set manually for releases.
	Version = "0.1.0-dev"

	// Commit is the short git SHA of the build.
	Commit = "unknown"

	// Dirty is "true" when the build had uncommitted changes.
	Dirty = "false"

	// Date is the UTC timestamp of the build.
	Date = "unknown"
)

// Info is one resolved view of the build metadata.
type Info struct {
	Version string
	Commit  string
	Dirty   bool
	Date    string
}

// Current resolves the build metadata. When the commit was not
// stamped through ldflags it falls back to the VCS information the Go
// toolchain embeds in the binary.
func Current() Info {
	info := Info{
		Version: Version,
		Commit:  Commit,
		Dirty:   Dirty == "true",
		Date:    Date,
	}
	if info.Commit != "unknown" {
		return info
	}
	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			if len(setting.Value) >= 12 {
				info.Commit = setting.Value[:12]
			} else if setting.Value != "" {
				info.Commit = setting.Value
			}
		case "vcs.modified":
			info.Dirty = setting.Value == "true"
		case "vcs.time":
			info.Date = setting.Value
		}
	}
	return info
}

// String formats the metadata for --version output.
func (i Info) String() string {
	dirty := ""
	if i.Dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", i.Version, i.Commit, dirty, i.Date)
}

// Full returns the version line plus the Go toolchain and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Current(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

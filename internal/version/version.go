// Package version exposes build metadata for the corectl binary.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

var (
	// AppName is the name of the application.
	AppName = "corectl"

	// Version is the semantic version of the application.
	Version = "0.1.0-dev"

	// Revision is the VCS revision the binary was built from.
	Revision = "HEAD"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "0.1.0-dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = strings.TrimPrefix(info.Main.Version, "v")
	}

	for _, setting := range info.Settings {
		if setting.Key != "vcs.revision" || setting.Value == "" {
			continue
		}
		rev := setting.Value
		for _, dirty := range info.Settings {
			if dirty.Key == "vcs.modified" && dirty.Value == "true" {
				rev += "-dirty"
			}
		}
		Revision = rev
	}
}

// Detailed returns a one-line string suitable for --version output.
func Detailed() string {
	return fmt.Sprintf("%s %s (%s)", AppName, Version, Revision)
}

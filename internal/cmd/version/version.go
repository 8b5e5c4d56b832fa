// Package version prints the ucr binary's version/build metadata, kept as
// its own package (rather than inlined in cmd/version.go) so -ldflags can
// target it at release time without touching cobra wiring.
package version

import (
	"fmt"
	"runtime"
)

var (
	gitCommit = "unknown"
	version   = "dev"
	buildDate = "1970-01-01 00:00:00 +0000"
)

var goVersion = runtime.Version()
var osArch = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)

func generateOutput() string {
	return fmt.Sprintf(`ucr - %s

Git Commit: %s
Build date: %s
Go version: %s
OS / Arch : %s
`, version, gitCommit, buildDate, goVersion, osArch)
}

// Print writes the current version block to stdout.
func Print() {
	fmt.Println(generateOutput())
}

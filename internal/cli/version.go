package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time. When they are not, buildVersion falls back
// to what `go install` recorded in the binary.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		v, c := buildVersion()
		fmt.Printf("tether %s (commit: %s, built: %s)\n", v, c, BuildDate)
	},
}

func buildVersion() (version, commit string) {
	version, commit = Version, Commit
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && commit == "unknown" && len(s.Value) >= 7 {
			commit = s.Value[:7]
		}
	}
	return
}

// VersionString is reported by the health endpoint.
func VersionString() string {
	v, c := buildVersion()
	return fmt.Sprintf("%s (%s)", v, c)
}
